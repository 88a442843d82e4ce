package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dkoval/facescout/internal/models"
)

type AnalysisRepository struct {
	db *DB
}

func NewAnalysisRepository(db *DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) Insert(ctx context.Context, a *models.Analysis) error {
	query := `
		INSERT INTO analyses (
			id, photo_filename, video_filename, photo_content_type,
			video_content_type, video_size, duration, status,
			is_present, confidence, reason, verdict_json, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	if r.db.dbType == "sqlite" {
		query = `
		INSERT INTO analyses (
			id, photo_filename, video_filename, photo_content_type,
			video_content_type, video_size, duration, status,
			is_present, confidence, reason, verdict_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	}

	_, err := r.db.conn.ExecContext(ctx, query,
		a.ID, a.PhotoFilename, a.VideoFilename, a.PhotoContentType,
		a.VideoContentType, a.VideoSize, a.Duration, a.Status,
		a.IsPresent, a.Confidence, a.Reason, string(a.VerdictJSON), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) GetByID(ctx context.Context, id string) (*models.Analysis, error) {
	query := `
		SELECT id, photo_filename, video_filename, photo_content_type,
			   video_content_type, video_size, duration, status,
			   is_present, confidence, reason, verdict_json, created_at
		FROM analyses WHERE id = $1`

	if r.db.dbType == "sqlite" {
		query = `
		SELECT id, photo_filename, video_filename, photo_content_type,
			   video_content_type, video_size, duration, status,
			   is_present, confidence, reason, verdict_json, created_at
		FROM analyses WHERE id = ?`
	}

	a := &models.Analysis{}
	var verdictJSON string
	err := r.db.conn.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.PhotoFilename, &a.VideoFilename, &a.PhotoContentType,
		&a.VideoContentType, &a.VideoSize, &a.Duration, &a.Status,
		&a.IsPresent, &a.Confidence, &a.Reason, &verdictJSON, &a.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("analysis not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	a.VerdictJSON = []byte(verdictJSON)
	return a, nil
}

func (r *AnalysisRepository) List(ctx context.Context, limit int) ([]models.Analysis, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, photo_filename, video_filename, photo_content_type,
			   video_content_type, video_size, duration, status,
			   is_present, confidence, reason, verdict_json, created_at
		FROM analyses ORDER BY created_at DESC LIMIT $1`

	if r.db.dbType == "sqlite" {
		query = `
		SELECT id, photo_filename, video_filename, photo_content_type,
			   video_content_type, video_size, duration, status,
			   is_present, confidence, reason, verdict_json, created_at
		FROM analyses ORDER BY created_at DESC LIMIT ?`
	}

	rows, err := r.db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var analyses []models.Analysis
	for rows.Next() {
		var a models.Analysis
		var verdictJSON string
		if err := rows.Scan(
			&a.ID, &a.PhotoFilename, &a.VideoFilename, &a.PhotoContentType,
			&a.VideoContentType, &a.VideoSize, &a.Duration, &a.Status,
			&a.IsPresent, &a.Confidence, &a.Reason, &verdictJSON, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		a.VerdictJSON = []byte(verdictJSON)
		analyses = append(analyses, a)
	}

	return analyses, rows.Err()
}

// SetVerdict records the flow's outcome on the analysis row.
func (r *AnalysisRepository) SetVerdict(ctx context.Context, id string, duration float64, status string, isPresent bool, confidence *float64, reason string, verdictJSON []byte) error {
	query := `
		UPDATE analyses
		SET duration = $1, status = $2, is_present = $3,
			confidence = $4, reason = $5, verdict_json = $6
		WHERE id = $7`

	if r.db.dbType == "sqlite" {
		query = `
		UPDATE analyses
		SET duration = ?, status = ?, is_present = ?,
			confidence = ?, reason = ?, verdict_json = ?
		WHERE id = ?`
	}

	_, err := r.db.conn.ExecContext(ctx, query,
		duration, status, isPresent, confidence, reason, string(verdictJSON), id)
	if err != nil {
		return fmt.Errorf("failed to update analysis verdict: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) SetStatus(ctx context.Context, id, status string) error {
	query := `UPDATE analyses SET status = $1 WHERE id = $2`
	if r.db.dbType == "sqlite" {
		query = `UPDATE analyses SET status = ? WHERE id = ?`
	}

	_, err := r.db.conn.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update analysis status: %w", err)
	}
	return nil
}
