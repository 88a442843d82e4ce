package analysis

import (
	"fmt"
	"io"
	"os"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/dkoval/facescout/internal/mediaref"
)

const (
	// Heuristic bitrate assumed when no container metadata is readable.
	assumedBytesPerSecond = 500_000

	minDurationSeconds = 1.0
	maxDurationSeconds = 120.0
)

// EstimateDuration approximates a video's playable duration from the
// decoded byte length of its encoded reference, assuming a constant
// bitrate, clamped to [1s, 120s]. It is a pure function of byte length
// and is not accurate; it only gives the model a duration figure for
// prompt context when the container cannot be probed.
func EstimateDuration(videoRef string) float64 {
	size := mediaref.PayloadSize(videoRef)
	return clampDuration(float64(size) / assumedBytesPerSecond)
}

// EstimateDurationFromSize is EstimateDuration for callers that already
// know the raw byte length.
func EstimateDurationFromSize(size int64) float64 {
	return clampDuration(float64(size) / assumedBytesPerSecond)
}

func clampDuration(seconds float64) float64 {
	if seconds < minDurationSeconds {
		return minDurationSeconds
	}
	if seconds > maxDurationSeconds {
		return maxDurationSeconds
	}
	return seconds
}

// ProbeDuration reads the authoritative duration from MP4 container
// metadata. Returns an error for non-MP4 input or containers without a
// movie header; callers fall back to the heuristic.
func ProbeDuration(r io.Reader) (float64, error) {
	f, err := mp4.DecodeFile(r)
	if err != nil {
		return 0, fmt.Errorf("failed to decode container: %w", err)
	}

	if f.Moov == nil || f.Moov.Mvhd == nil {
		return 0, fmt.Errorf("container has no movie header")
	}

	mvhd := f.Moov.Mvhd
	if mvhd.Timescale == 0 || mvhd.Duration == 0 {
		return 0, fmt.Errorf("container reports no duration")
	}

	return float64(mvhd.Duration) / float64(mvhd.Timescale), nil
}

// ProbeDurationFile probes the duration of a video file on disk.
func ProbeDurationFile(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open video: %w", err)
	}
	defer f.Close()

	return ProbeDuration(f)
}
