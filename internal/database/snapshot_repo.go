package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dkoval/facescout/internal/models"
)

type SnapshotRepo struct {
	db *DB
}

func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

func (r *SnapshotRepo) Create(ctx context.Context, s *models.SnapshotRecord) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}

	var boxJSON sql.NullString
	if len(s.BoxJSON) > 0 {
		boxJSON = sql.NullString{String: string(s.BoxJSON), Valid: true}
	}

	if r.db.dbType == "postgres" {
		query := `
			INSERT INTO snapshots (id, analysis_id, idx, timestamp, status, filename, box_json)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (analysis_id, idx)
			DO UPDATE SET
				timestamp = EXCLUDED.timestamp,
				status = EXCLUDED.status,
				filename = EXCLUDED.filename,
				box_json = EXCLUDED.box_json`

		_, err := r.db.conn.ExecContext(ctx, query,
			s.ID, s.AnalysisID, s.Idx, s.Timestamp, s.Status, s.Filename, boxJSON)
		if err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}
		return nil
	}

	query := `
		INSERT OR REPLACE INTO snapshots (id, analysis_id, idx, timestamp, status, filename, box_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.conn.ExecContext(ctx, query,
		s.ID, s.AnalysisID, s.Idx, s.Timestamp, s.Status, s.Filename, boxJSON)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepo) GetByAnalysisID(ctx context.Context, analysisID string) ([]models.SnapshotRecord, error) {
	query := `
		SELECT id, analysis_id, idx, timestamp, status, filename, box_json
		FROM snapshots WHERE analysis_id = $1 ORDER BY idx`

	if r.db.dbType == "sqlite" {
		query = `
		SELECT id, analysis_id, idx, timestamp, status, filename, box_json
		FROM snapshots WHERE analysis_id = ? ORDER BY idx`
	}

	rows, err := r.db.conn.QueryContext(ctx, query, analysisID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []models.SnapshotRecord
	for rows.Next() {
		var s models.SnapshotRecord
		var boxJSON sql.NullString
		if err := rows.Scan(&s.ID, &s.AnalysisID, &s.Idx, &s.Timestamp, &s.Status, &s.Filename, &boxJSON); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if boxJSON.Valid {
			s.BoxJSON = []byte(boxJSON.String)
		}
		snapshots = append(snapshots, s)
	}

	return snapshots, rows.Err()
}
