package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dkoval/facescout/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(Config{
		Type:       "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func TestAnalysisRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAnalysisRepository(db)
	ctx := context.Background()

	analysis := models.NewAnalysis("photo.jpg", "clip.mp4", "image/jpeg", "video/mp4", 2048)

	if err := repo.Insert(ctx, analysis); err != nil {
		t.Fatalf("Failed to insert analysis: %v", err)
	}

	t.Run("GetByID", func(t *testing.T) {
		got, err := repo.GetByID(ctx, analysis.ID)
		if err != nil {
			t.Fatalf("Failed to get analysis: %v", err)
		}

		if got.PhotoFilename != "photo.jpg" || got.VideoFilename != "clip.mp4" {
			t.Errorf("Filenames do not match: %s / %s", got.PhotoFilename, got.VideoFilename)
		}
		if got.Status != models.AnalysisPending {
			t.Errorf("Expected pending status, got %s", got.Status)
		}
		if got.VideoSize != 2048 {
			t.Errorf("Expected video size 2048, got %d", got.VideoSize)
		}
	})

	t.Run("GetByIDNotFound", func(t *testing.T) {
		if _, err := repo.GetByID(ctx, "no-such-id"); err == nil {
			t.Errorf("Expected error for missing analysis")
		}
	})

	t.Run("SetVerdict", func(t *testing.T) {
		confidence := 0.75
		verdictJSON := []byte(`{"is_present":true,"reason":"match at 2s"}`)

		err := repo.SetVerdict(ctx, analysis.ID, 12.5, models.AnalysisComplete, true, &confidence, "match at 2s", verdictJSON)
		if err != nil {
			t.Fatalf("Failed to set verdict: %v", err)
		}

		got, err := repo.GetByID(ctx, analysis.ID)
		if err != nil {
			t.Fatalf("Failed to get analysis: %v", err)
		}

		if !got.IsPresent {
			t.Errorf("Expected is_present true")
		}
		if got.Confidence == nil || *got.Confidence != 0.75 {
			t.Errorf("Expected confidence 0.75, got %v", got.Confidence)
		}
		if got.Duration != 12.5 {
			t.Errorf("Expected duration 12.5, got %f", got.Duration)
		}
		if got.Status != models.AnalysisComplete {
			t.Errorf("Expected complete status, got %s", got.Status)
		}
		if string(got.VerdictJSON) != string(verdictJSON) {
			t.Errorf("Verdict JSON does not round trip")
		}
	})

	t.Run("SetStatus", func(t *testing.T) {
		if err := repo.SetStatus(ctx, analysis.ID, models.AnalysisFailed); err != nil {
			t.Fatalf("Failed to set status: %v", err)
		}

		got, _ := repo.GetByID(ctx, analysis.ID)
		if got.Status != models.AnalysisFailed {
			t.Errorf("Expected failed status, got %s", got.Status)
		}
	})

	t.Run("List", func(t *testing.T) {
		second := models.NewAnalysis("p2.png", "v2.webm", "image/png", "video/webm", 100)
		if err := repo.Insert(ctx, second); err != nil {
			t.Fatalf("Failed to insert second analysis: %v", err)
		}

		analyses, err := repo.List(ctx, 10)
		if err != nil {
			t.Fatalf("Failed to list analyses: %v", err)
		}
		if len(analyses) != 2 {
			t.Errorf("Expected 2 analyses, got %d", len(analyses))
		}
	})
}

func TestSnapshotRepo(t *testing.T) {
	db := setupTestDB(t)
	analysisRepo := NewAnalysisRepository(db)
	snapshotRepo := NewSnapshotRepo(db)
	ctx := context.Background()

	analysis := models.NewAnalysis("photo.jpg", "clip.mp4", "image/jpeg", "video/mp4", 2048)
	if err := analysisRepo.Insert(ctx, analysis); err != nil {
		t.Fatalf("Failed to insert analysis: %v", err)
	}

	records := []models.SnapshotRecord{
		{AnalysisID: analysis.ID, Idx: 0, Timestamp: 2.0, Status: "extracted", Filename: "a.jpg"},
		{AnalysisID: analysis.ID, Idx: 1, Timestamp: 5.0, Status: "failed", Filename: "b.png", BoxJSON: []byte(`{"x_min":0.1,"y_min":0.1,"x_max":0.9,"y_max":0.9}`)},
	}

	for i := range records {
		if err := snapshotRepo.Create(ctx, &records[i]); err != nil {
			t.Fatalf("Failed to create snapshot %d: %v", i, err)
		}
	}

	got, err := snapshotRepo.GetByAnalysisID(ctx, analysis.ID)
	if err != nil {
		t.Fatalf("Failed to get snapshots: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("Expected 2 snapshots, got %d", len(got))
	}

	if got[0].Idx != 0 || got[1].Idx != 1 {
		t.Errorf("Snapshots not ordered by idx")
	}
	if got[0].BoxJSON != nil {
		t.Errorf("Expected no box on first snapshot")
	}
	if got[1].BoxJSON == nil {
		t.Errorf("Expected box JSON on second snapshot")
	}

	t.Run("ReplaceOnSameIdx", func(t *testing.T) {
		replacement := models.SnapshotRecord{
			AnalysisID: analysis.ID, Idx: 1, Timestamp: 5.0, Status: "extracted", Filename: "b2.jpg",
		}
		if err := snapshotRepo.Create(ctx, &replacement); err != nil {
			t.Fatalf("Failed to replace snapshot: %v", err)
		}

		got, _ := snapshotRepo.GetByAnalysisID(ctx, analysis.ID)
		if len(got) != 2 {
			t.Fatalf("Expected 2 snapshots after replace, got %d", len(got))
		}
		if got[1].Filename != "b2.jpg" {
			t.Errorf("Expected replaced filename b2.jpg, got %s", got[1].Filename)
		}
	})
}
