package ai

import (
	"context"
	"time"
)

// MatchService asks a vision model whether the person in a reference
// photo appears in a video clip. Implementations return the model's
// verdict as-is; range filtering and box validation belong to the caller.
type MatchService interface {
	MatchPerson(ctx context.Context, photoRef, videoRef string, duration float64) (*RawVerdict, error)
}

// RawVerdict is the structured reply requested from the model.
type RawVerdict struct {
	IsPresent       bool                `json:"is_present"`
	Confidence      *float64            `json:"confidence,omitempty"`
	Reason          string              `json:"reason"`
	Identifications []RawIdentification `json:"identifications,omitempty"`
}

// RawIdentification is a model-reported sighting: a timestamp in seconds
// and an optional normalized bounding box.
type RawIdentification struct {
	Timestamp   float64 `json:"timestamp"`
	BoundingBox *RawBox `json:"bounding_box,omitempty"`
}

// RawBox uses fractional image coordinates in [0,1].
type RawBox struct {
	XMin float64 `json:"x_min"`
	YMin float64 `json:"y_min"`
	XMax float64 `json:"x_max"`
	YMax float64 `json:"y_max"`
}

type Config struct {
	APIKey             string
	BaseURL            string
	Model              string
	MaxIdentifications int
	RequestTimeout     time.Duration
}

func NewConfig() *Config {
	return &Config{
		BaseURL:            defaultBaseURL,
		Model:              defaultModel,
		MaxIdentifications: 3,
		RequestTimeout:     90 * time.Second,
	}
}
