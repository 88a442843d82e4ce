package analysis

import (
	"time"

	"github.com/dkoval/facescout/internal/ai"
)

// Request carries the user-supplied media for one analysis. Both fields
// are encoded-binary references (data URIs).
type Request struct {
	PhotoRef string
	VideoRef string
}

// NormalizedBox is a rectangle in fractional image coordinates,
// independent of pixel resolution. Valid when 0 <= XMin < XMax <= 1 and
// 0 <= YMin < YMax <= 1.
type NormalizedBox struct {
	XMin float64 `json:"x_min"`
	YMin float64 `json:"y_min"`
	XMax float64 `json:"x_max"`
	YMax float64 `json:"y_max"`
}

// Valid reports whether the box satisfies the normalized-box invariant.
func (b NormalizedBox) Valid() bool {
	return b.XMin >= 0 && b.YMin >= 0 &&
		b.XMax <= 1 && b.YMax <= 1 &&
		b.XMin < b.XMax && b.YMin < b.YMax
}

// Identification is a model-reported sighting of the person.
type Identification struct {
	Timestamp float64        `json:"timestamp"`
	Box       *NormalizedBox `json:"bounding_box,omitempty"`
}

// Verdict is the normalized analysis outcome. After normalization,
// identifications are sorted ascending, deduplicated, within
// [0, duration], and carry only valid boxes. IsPresent=false implies
// an empty identification list.
type Verdict struct {
	IsPresent       bool             `json:"is_present"`
	Confidence      *float64         `json:"confidence,omitempty"`
	Reason          string           `json:"reason"`
	Identifications []Identification `json:"identifications"`
}

// Snapshot statuses.
const (
	StatusExtracted = "extracted"
	StatusFailed    = "failed"
)

// Snapshot is a still image sampled from the video at an identification's
// timestamp. Failed snapshots carry the configured placeholder image.
type Snapshot struct {
	Timestamp float64        `json:"timestamp"`
	ImageData string         `json:"image_data"`
	Status    string         `json:"status"`
	Box       *NormalizedBox `json:"bounding_box,omitempty"`
}

// Result is the composite returned by the public entry point.
type Result struct {
	Verdict   Verdict    `json:"verdict"`
	Duration  float64    `json:"duration"`
	Snapshots []Snapshot `json:"snapshots"`
}

// Session statuses.
const (
	SessionAnalyzing = "analyzing"
	SessionComplete  = "complete"
	SessionFailed    = "failed"
)

// Session tracks one in-flight analysis for the web tier. Progress is
// pushed to the Updates channel and relayed to the browser over SSE.
type Session struct {
	ID          string
	AnalysisID  string
	Status      string
	StartedAt   time.Time
	CompletedAt *time.Time
	Updates     chan SessionUpdate
	CancelFunc  func()
}

type SessionUpdate struct {
	Type string
	Data interface{}
}

// ProgressData reports extraction progress as a completed/total pair.
type ProgressData struct {
	SessionID string  `json:"session_id"`
	Stage     string  `json:"stage"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Fraction  float64 `json:"fraction"`
}

func toIdentifications(raw []ai.RawIdentification) []Identification {
	idents := make([]Identification, 0, len(raw))
	for _, r := range raw {
		ident := Identification{Timestamp: r.Timestamp}
		if r.BoundingBox != nil {
			ident.Box = &NormalizedBox{
				XMin: r.BoundingBox.XMin,
				YMin: r.BoundingBox.YMin,
				XMax: r.BoundingBox.XMax,
				YMax: r.BoundingBox.YMax,
			}
		}
		idents = append(idents, ident)
	}
	return idents
}
