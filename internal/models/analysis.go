package models

import (
	"time"

	"github.com/google/uuid"
)

// Analysis statuses.
const (
	AnalysisPending  = "pending"
	AnalysisRunning  = "running"
	AnalysisComplete = "complete"
	AnalysisFailed   = "failed"
)

// Analysis is one uploaded photo/video pair and, once the flow has run,
// its verdict.
type Analysis struct {
	ID               string
	PhotoFilename    string
	VideoFilename    string
	PhotoContentType string
	VideoContentType string
	VideoSize        int64
	Duration         float64
	Status           string
	IsPresent        bool
	Confidence       *float64
	Reason           string
	VerdictJSON      []byte
	CreatedAt        time.Time
}

func NewAnalysis(photoFilename, videoFilename, photoContentType, videoContentType string, videoSize int64) *Analysis {
	return &Analysis{
		ID:               uuid.New().String(),
		PhotoFilename:    photoFilename,
		VideoFilename:    videoFilename,
		PhotoContentType: photoContentType,
		VideoContentType: videoContentType,
		VideoSize:        videoSize,
		Status:           AnalysisPending,
		CreatedAt:        time.Now(),
	}
}

// SnapshotRecord is an extracted frame stored on disk and indexed by its
// position in the identification list.
type SnapshotRecord struct {
	ID         string
	AnalysisID string
	Idx        int
	Timestamp  float64
	Status     string
	Filename   string
	BoxJSON    []byte
}
