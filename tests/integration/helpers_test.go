package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/dkoval/facescout/internal/ai"
	"github.com/dkoval/facescout/internal/analysis"
	"github.com/dkoval/facescout/internal/api"
	"github.com/dkoval/facescout/internal/database"
	"github.com/dkoval/facescout/internal/mediaref"
	"github.com/dkoval/facescout/internal/storage"
)

type TestServer struct {
	Server       *httptest.Server
	App          *api.App
	DB           *database.DB
	AnalysisRepo *database.AnalysisRepository
	SnapshotRepo *database.SnapshotRepo
	Match        *stubMatchService
	Storage      storage.Storage
	TempDir      string
	OriginalDir  string
}

// stubMatchService stands in for the hosted model so tests never hit
// the network.
type stubMatchService struct {
	verdict *ai.RawVerdict
	err     error
	calls   int
}

func (s *stubMatchService) MatchPerson(ctx context.Context, photoRef, videoRef string, duration float64) (*ai.RawVerdict, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.verdict, nil
}

// stubExtractor fabricates snapshots without requiring ffmpeg on the
// test host.
type stubExtractor struct{}

func (stubExtractor) ExtractSnapshots(ctx context.Context, videoPath string, idents []analysis.Identification, progress analysis.ExtractProgress) []analysis.Snapshot {
	snapshots := make([]analysis.Snapshot, 0, len(idents))
	for i, ident := range idents {
		snapshots = append(snapshots, analysis.Snapshot{
			Timestamp: ident.Timestamp,
			ImageData: mediaref.Format("image/jpeg", []byte("jpeg-bytes")),
			Status:    analysis.StatusExtracted,
			Box:       ident.Box,
		})
		if progress != nil {
			progress(i+1, len(idents))
		}
	}
	return snapshots
}

func (stubExtractor) PlaceholderRef() string {
	return mediaref.Format("image/png", []byte("placeholder"))
}

func setupTestServer(t *testing.T) *TestServer {
	// Change to project root directory to find templates
	originalDir, _ := os.Getwd()
	projectRoot := filepath.Join(originalDir, "../..")
	if err := os.Chdir(projectRoot); err != nil {
		t.Fatalf("Failed to change to project root: %v", err)
	}

	tempDir, err := os.MkdirTemp("", "facescout_test_*")
	if err != nil {
		os.Chdir(originalDir)
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	uploadDir := filepath.Join(tempDir, "uploads")
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		os.Chdir(originalDir)
		t.Fatalf("Failed to create upload dir: %v", err)
	}

	localStorage, err := storage.NewLocalStorage(uploadDir)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	dbConfig := database.Config{
		Type:       "sqlite",
		SQLitePath: filepath.Join(tempDir, "test.db"),
	}

	db, err := database.NewDB(dbConfig)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}

	analysisRepo := database.NewAnalysisRepository(db)
	snapshotRepo := database.NewSnapshotRepo(db)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	match := &stubMatchService{
		verdict: &ai.RawVerdict{
			IsPresent: true,
			Reason:    "person appears near the start",
			Identifications: []ai.RawIdentification{
				{Timestamp: 0.5},
			},
		},
	}

	service := analysis.NewService(match, stubExtractor{}, analysisRepo, snapshotRepo,
		localStorage, analysis.Config{}, logger)

	app := &api.App{
		Storage:         localStorage,
		DB:              db,
		AnalysisRepo:    analysisRepo,
		SnapshotRepo:    snapshotRepo,
		AnalysisService: service,
		MaxUploadSize:   10 * 1024 * 1024,
		Logger:          logger,
	}

	router := api.NewRouter(app)
	server := httptest.NewServer(router)

	return &TestServer{
		Server:       server,
		App:          app,
		DB:           db,
		AnalysisRepo: analysisRepo,
		SnapshotRepo: snapshotRepo,
		Match:        match,
		Storage:      localStorage,
		TempDir:      tempDir,
		OriginalDir:  originalDir,
	}
}

func (ts *TestServer) Cleanup() {
	ts.Server.Close()
	ts.DB.Close()
	os.RemoveAll(ts.TempDir)
	os.Chdir(ts.OriginalDir)
}

// tinyJPEG is a minimal but decodable 1x1 white JPEG.
var tinyJPEG, _ = base64.StdEncoding.DecodeString(
	"/9j/4AAQSkZJRgABAQEAYABgAAD/2wBDAAgGBgcGBQgHBwcJCQgKDBQNDAsLDBkSEw8UHRofHh0a" +
		"HBwgJC4nICIsIxwcKDcpLDAxNDQ0Hyc5PTgyPC4zNDL/wAALCAABAAEBAREA/8QAFAABAAAAAAAA" +
		"AAAAAAAAAAAACf/EABQQAQAAAAAAAAAAAAAAAAAAAAD/2gAIAQEAAD8AVN//2Q==")

func createUpload(photoName string, photoContent []byte, photoType string,
	videoName string, videoContent []byte, videoType string) (*bytes.Buffer, string, error) {

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if photoName != "" {
		part, err := createFormFile(writer, "photo", photoName, photoType)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, bytes.NewReader(photoContent)); err != nil {
			return nil, "", err
		}
	}

	if videoName != "" {
		part, err := createFormFile(writer, "video", videoName, videoType)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, bytes.NewReader(videoContent)); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}

func createFormFile(writer *multipart.Writer, field, filename, contentType string) (io.Writer, error) {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		`form-data; name="`+field+`"; filename="`+filename+`"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return writer.CreatePart(header)
}

func uploadTestPair(t *testing.T, server string) *http.Response {
	body, contentType, err := createUpload(
		"face.jpg", tinyJPEG, "image/jpeg",
		"clip.mp4", []byte("fake mp4 content"), "video/mp4")
	if err != nil {
		t.Fatalf("Failed to create multipart upload: %v", err)
	}

	req, err := http.NewRequest("POST", server+"/upload", body)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to upload: %v", err)
	}

	return resp
}

func countAnalysesInDB(db *sql.DB) (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM analyses").Scan(&count)
	return count, err
}
