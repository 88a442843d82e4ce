// Package analysis sequences duration estimation, model invocation and
// snapshot extraction into one request/response cycle.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dkoval/facescout/internal/ai"
	"github.com/dkoval/facescout/internal/database"
	"github.com/dkoval/facescout/internal/mediaref"
	"github.com/dkoval/facescout/internal/models"
	"github.com/dkoval/facescout/internal/storage"
)

// ExtractProgress reports snapshot extraction progress as a
// completed/total pair.
type ExtractProgress func(completed, total int)

// SnapshotExtractor samples video frames at the identified timestamps.
// Given N identifications it must return exactly N snapshots in input
// order; per-frame failures surface as failed snapshots, never as a
// shorter list.
type SnapshotExtractor interface {
	ExtractSnapshots(ctx context.Context, videoPath string, idents []Identification, progress ExtractProgress) []Snapshot
	PlaceholderRef() string
}

type Config struct {
	// PhotoMaxDim caps the reference photo's longest edge before it is
	// embedded into the model prompt.
	PhotoMaxDim int
	// SessionBuffer sizes each session's update channel.
	SessionBuffer int
	// SessionRetention is how long a finished session stays resolvable
	// before it is pruned from the session map.
	SessionRetention time.Duration
}

// Service owns the orchestration flow. The public Analyze boundary
// converts every internal failure into a degraded normal-shaped result;
// nothing throws across it.
type Service struct {
	match        ai.MatchService
	extractor    SnapshotExtractor
	analysisRepo *database.AnalysisRepository
	snapshotRepo *database.SnapshotRepo
	store        storage.Storage
	photoMaxDim  int
	sessionBuf   int
	sessionTTL   time.Duration
	logger       *slog.Logger

	sessions   map[string]*Session
	sessionsMu sync.RWMutex
}

func NewService(
	match ai.MatchService,
	extractor SnapshotExtractor,
	analysisRepo *database.AnalysisRepository,
	snapshotRepo *database.SnapshotRepo,
	store storage.Storage,
	config Config,
	logger *slog.Logger,
) *Service {
	if config.PhotoMaxDim == 0 {
		config.PhotoMaxDim = 1024
	}
	if config.SessionBuffer == 0 {
		config.SessionBuffer = 64
	}
	if config.SessionRetention == 0 {
		config.SessionRetention = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		match:        match,
		extractor:    extractor,
		analysisRepo: analysisRepo,
		snapshotRepo: snapshotRepo,
		store:        store,
		photoMaxDim:  config.PhotoMaxDim,
		sessionBuf:   config.SessionBuffer,
		sessionTTL:   config.SessionRetention,
		logger:       logger.With("component", "analysis"),
		sessions:     make(map[string]*Session),
	}
}

// Analyze is the public entry point for reference-based requests. It
// never returns an error: internal failures yield a degraded result
// with IsPresent=false and the error text in Reason.
func (s *Service) Analyze(ctx context.Context, req Request) *Result {
	result, err := s.analyze(ctx, req)
	if err != nil {
		s.logger.Error("analysis failed", "error", err)
		return degradedResult(err)
	}
	return result
}

func (s *Service) analyze(ctx context.Context, req Request) (*Result, error) {
	if s.match == nil {
		return nil, fmt.Errorf("model service not configured")
	}
	if req.PhotoRef == "" {
		return nil, fmt.Errorf("missing photo reference")
	}
	if req.VideoRef == "" {
		return nil, fmt.Errorf("missing video reference")
	}

	photo, err := mediaref.Parse(req.PhotoRef)
	if err != nil {
		return nil, fmt.Errorf("invalid photo reference: %w", err)
	}
	if !mediaref.IsAcceptedImage(photo.ContentType) {
		return nil, fmt.Errorf("unsupported photo type %s", photo.ContentType)
	}

	video, err := mediaref.Parse(req.VideoRef)
	if err != nil {
		return nil, fmt.Errorf("invalid video reference: %w", err)
	}
	if !mediaref.IsAcceptedVideo(video.ContentType) {
		return nil, fmt.Errorf("unsupported video type %s", video.ContentType)
	}

	tmp, err := os.CreateTemp("", "facescout-video-*.mp4")
	if err != nil {
		return nil, fmt.Errorf("failed to stage video: %w", err)
	}
	videoPath := tmp.Name()
	defer os.Remove(videoPath)

	if _, err := tmp.Write(video.Data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to stage video: %w", err)
	}
	tmp.Close()

	duration := s.resolveDuration(videoPath, int64(len(video.Data)))

	photoRef := mediaref.PreparePhoto(req.PhotoRef, s.photoMaxDim)

	raw, err := s.match.MatchPerson(ctx, photoRef, req.VideoRef, duration)
	if err != nil {
		return nil, fmt.Errorf("model invocation failed: %w", err)
	}

	verdict := NormalizeVerdict(raw, duration)

	snapshots := []Snapshot{}
	if verdict.IsPresent && len(verdict.Identifications) > 0 && s.extractor != nil {
		snapshots = s.extractor.ExtractSnapshots(ctx, videoPath, verdict.Identifications, nil)
	}

	return &Result{Verdict: verdict, Duration: duration, Snapshots: snapshots}, nil
}

// resolveDuration prefers the container's own metadata and falls back
// to the byte-length heuristic when the container cannot be probed.
func (s *Service) resolveDuration(videoPath string, size int64) float64 {
	if duration, err := ProbeDurationFile(videoPath); err == nil {
		return duration
	} else {
		s.logger.Debug("duration probe failed, using heuristic", "error", err)
	}
	return EstimateDurationFromSize(size)
}

// StartAnalysis launches the flow for a stored upload and returns a
// session whose Updates channel streams progress until completion.
func (s *Service) StartAnalysis(analysisID string) (*Session, error) {
	rec, err := s.analysisRepo.GetByID(context.Background(), analysisID)
	if err != nil {
		return nil, fmt.Errorf("getting analysis: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())

	session := &Session{
		ID:         uuid.New().String(),
		AnalysisID: analysisID,
		Status:     SessionAnalyzing,
		StartedAt:  time.Now(),
		Updates:    make(chan SessionUpdate, s.sessionBuf),
		CancelFunc: cancel,
	}

	s.sessionsMu.Lock()
	s.sessions[session.ID] = session
	s.sessionsMu.Unlock()

	go s.runAnalysisLoop(loopCtx, session, rec)

	return session, nil
}

func (s *Service) GetSession(sessionID string) (*Session, bool) {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()

	session, exists := s.sessions[sessionID]
	return session, exists
}

func (s *Service) removeSession(sessionID string) {
	s.sessionsMu.Lock()
	delete(s.sessions, sessionID)
	s.sessionsMu.Unlock()
}

func (s *Service) StopSession(sessionID string) error {
	s.sessionsMu.RLock()
	session, exists := s.sessions[sessionID]
	s.sessionsMu.RUnlock()

	if !exists {
		return fmt.Errorf("session not found")
	}

	if session.CancelFunc != nil {
		session.CancelFunc()
	}
	return nil
}

func (s *Service) runAnalysisLoop(ctx context.Context, session *Session, rec *models.Analysis) {
	defer close(session.Updates)
	// Finished sessions stay resolvable for late stream subscribers,
	// then get pruned so the map does not grow unbounded.
	defer time.AfterFunc(s.sessionTTL, func() { s.removeSession(session.ID) })

	s.logger.Info("starting analysis", "analysis_id", rec.ID, "session_id", session.ID)
	s.analysisRepo.SetStatus(ctx, rec.ID, models.AnalysisRunning)

	videoPath := s.store.FilePath(rec.VideoFilename)
	duration := s.resolveDuration(videoPath, rec.VideoSize)

	session.Updates <- SessionUpdate{
		Type: "duration",
		Data: map[string]interface{}{"session_id": session.ID, "duration": duration},
	}

	photoRef, videoRef, err := s.loadReferences(rec)
	if err == nil {
		photoRef = mediaref.PreparePhoto(photoRef, s.photoMaxDim)
	}

	var raw *ai.RawVerdict
	if err == nil && s.match == nil {
		err = fmt.Errorf("model service not configured")
	}
	if err == nil {
		raw, err = s.match.MatchPerson(ctx, photoRef, videoRef, duration)
	}
	if err != nil {
		s.finishFailed(ctx, session, rec, duration, err)
		return
	}

	verdict := NormalizeVerdict(raw, duration)
	session.Updates <- SessionUpdate{Type: "verdict", Data: verdict}

	snapshots := []Snapshot{}
	if verdict.IsPresent && len(verdict.Identifications) > 0 && s.extractor != nil {
		snapshots = s.extractor.ExtractSnapshots(ctx, videoPath, verdict.Identifications, func(completed, total int) {
			session.Updates <- SessionUpdate{
				Type: "progress",
				Data: ProgressData{
					SessionID: session.ID,
					Stage:     "extracting",
					Completed: completed,
					Total:     total,
					Fraction:  float64(completed) / float64(total),
				},
			}
		})
	}

	s.persistOutcome(ctx, rec, duration, verdict, snapshots)

	now := time.Now()
	session.CompletedAt = &now
	session.Status = SessionComplete

	session.Updates <- SessionUpdate{
		Type: "complete",
		Data: map[string]interface{}{
			"session_id":  session.ID,
			"analysis_id": rec.ID,
			"result":      Result{Verdict: verdict, Duration: duration, Snapshots: snapshots},
			"elapsed":     time.Since(session.StartedAt).Seconds(),
		},
	}

	s.logger.Info("analysis complete",
		"analysis_id", rec.ID,
		"is_present", verdict.IsPresent,
		"identifications", len(verdict.Identifications),
		"elapsed", time.Since(session.StartedAt))
}

func (s *Service) loadReferences(rec *models.Analysis) (photoRef, videoRef string, err error) {
	photoData, err := os.ReadFile(s.store.FilePath(rec.PhotoFilename))
	if err != nil {
		return "", "", fmt.Errorf("failed to read photo: %w", err)
	}

	videoData, err := os.ReadFile(s.store.FilePath(rec.VideoFilename))
	if err != nil {
		return "", "", fmt.Errorf("failed to read video: %w", err)
	}

	return mediaref.Format(rec.PhotoContentType, photoData),
		mediaref.Format(rec.VideoContentType, videoData), nil
}

func (s *Service) finishFailed(ctx context.Context, session *Session, rec *models.Analysis, duration float64, cause error) {
	s.logger.Error("analysis failed", "analysis_id", rec.ID, "error", cause)

	verdict := degradedVerdict(cause)
	verdictJSON, _ := json.Marshal(verdict)
	s.analysisRepo.SetVerdict(ctx, rec.ID, duration, models.AnalysisFailed,
		false, nil, verdict.Reason, verdictJSON)

	session.Status = SessionFailed
	session.Updates <- SessionUpdate{Type: "failed", Data: verdict}
}

func (s *Service) persistOutcome(ctx context.Context, rec *models.Analysis, duration float64, verdict Verdict, snapshots []Snapshot) {
	verdictJSON, err := json.Marshal(verdict)
	if err != nil {
		s.logger.Error("failed to marshal verdict", "error", err)
	}

	if err := s.analysisRepo.SetVerdict(ctx, rec.ID, duration, models.AnalysisComplete,
		verdict.IsPresent, verdict.Confidence, verdict.Reason, verdictJSON); err != nil {
		s.logger.Error("failed to persist verdict", "analysis_id", rec.ID, "error", err)
	}

	for i, snapshot := range snapshots {
		record := models.SnapshotRecord{
			AnalysisID: rec.ID,
			Idx:        i,
			Timestamp:  snapshot.Timestamp,
			Status:     snapshot.Status,
		}

		if snapshot.Box != nil {
			record.BoxJSON, _ = json.Marshal(snapshot.Box)
		}

		if ref, err := mediaref.Parse(snapshot.ImageData); err == nil {
			ext := ".jpg"
			if ref.ContentType == "image/png" {
				ext = ".png"
			}
			filename, err := s.store.SaveBytes(ref.Data, ext)
			if err != nil {
				s.logger.Error("failed to save snapshot image", "error", err)
			} else {
				record.Filename = filename
			}
		}

		if err := s.snapshotRepo.Create(ctx, &record); err != nil {
			s.logger.Error("failed to persist snapshot", "analysis_id", rec.ID, "idx", i, "error", err)
		}
	}
}

func degradedVerdict(cause error) Verdict {
	return Verdict{
		IsPresent:       false,
		Reason:          fmt.Sprintf("analysis error: %v", cause),
		Identifications: []Identification{},
	}
}

func degradedResult(cause error) *Result {
	return &Result{
		Verdict:   degradedVerdict(cause),
		Snapshots: []Snapshot{},
	}
}
