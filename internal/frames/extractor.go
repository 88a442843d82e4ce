// Package frames samples still images from a video at requested
// timestamps via ffmpeg seek-and-capture.
package frames

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dkoval/facescout/internal/analysis"
	"github.com/dkoval/facescout/internal/mediaref"
)

type Config struct {
	// TempDir holds per-frame scratch files; defaults under os.TempDir().
	TempDir string
	// SeekTimeout bounds a single seek-and-capture attempt.
	SeekTimeout time.Duration
	// RetryDelay is the pause before the single retry when ffmpeg
	// produces an empty frame.
	RetryDelay time.Duration
	JPEGQuality int
	// DrawBoxes paints the identification's bounding box onto the
	// extracted frame.
	DrawBoxes bool
	// Placeholder substitutes for frames that could not be extracted.
	// Injected so tests can supply a distinguishable sentinel; when nil
	// a default is generated.
	Placeholder     []byte
	PlaceholderType string
}

// Extractor turns identifications into snapshots, one ffmpeg invocation
// per timestamp. Processing is strictly sequential: the batch shares one
// scratch directory and progress is reported per completed entry.
type Extractor struct {
	ffmpegPath     string
	tempDir        string
	seekTimeout    time.Duration
	retryDelay     time.Duration
	jpegQuality    int
	drawBoxes      bool
	placeholderRef string
	logger         *slog.Logger
}

func NewExtractor(config Config, logger *slog.Logger) (*Extractor, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	tempDir := config.TempDir
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "facescout-frames")
	}
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	seekTimeout := config.SeekTimeout
	if seekTimeout == 0 {
		seekTimeout = 3 * time.Second
	}

	retryDelay := config.RetryDelay
	if retryDelay == 0 {
		retryDelay = 120 * time.Millisecond
	}

	jpegQuality := config.JPEGQuality
	if jpegQuality == 0 {
		jpegQuality = 85
	}

	placeholder := config.Placeholder
	placeholderType := config.PlaceholderType
	if placeholder == nil {
		placeholder = DefaultPlaceholder()
		placeholderType = "image/png"
	}
	if placeholderType == "" {
		placeholderType = "image/png"
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Extractor{
		ffmpegPath:     ffmpegPath,
		tempDir:        tempDir,
		seekTimeout:    seekTimeout,
		retryDelay:     retryDelay,
		jpegQuality:    jpegQuality,
		drawBoxes:      config.DrawBoxes,
		placeholderRef: mediaref.Format(placeholderType, placeholder),
		logger:         logger.With("component", "frames"),
	}, nil
}

// PlaceholderRef returns the encoded placeholder image used for failed
// snapshots.
func (e *Extractor) PlaceholderRef() string {
	return e.placeholderRef
}

// ExtractSnapshots produces exactly one snapshot per identification,
// preserving input order and any carried bounding box. A per-frame
// failure (timeout, ffmpeg error, decode error) marks only that entry
// as failed with the placeholder image; the batch always continues.
func (e *Extractor) ExtractSnapshots(ctx context.Context, videoPath string, idents []analysis.Identification, progress analysis.ExtractProgress) []analysis.Snapshot {
	snapshots := make([]analysis.Snapshot, 0, len(idents))

	for i, ident := range idents {
		snapshot := analysis.Snapshot{
			Timestamp: ident.Timestamp,
			Box:       ident.Box,
		}

		imageRef, err := e.extractOne(ctx, videoPath, ident)
		if err != nil {
			e.logger.Warn("frame extraction failed",
				"timestamp", ident.Timestamp, "error", err)
			snapshot.Status = analysis.StatusFailed
			snapshot.ImageData = e.placeholderRef
		} else {
			snapshot.Status = analysis.StatusExtracted
			snapshot.ImageData = imageRef
		}

		snapshots = append(snapshots, snapshot)
		if progress != nil {
			progress(i+1, len(idents))
		}
	}

	return snapshots
}

func (e *Extractor) extractOne(parent context.Context, videoPath string, ident analysis.Identification) (string, error) {
	ctx, cancel := context.WithTimeout(parent, e.seekTimeout)
	defer cancel()

	frameData, err := e.captureFrame(ctx, videoPath, ident.Timestamp)
	if err != nil || len(frameData) == 0 {
		// The seek point may land before a decodable frame; give the
		// demuxer one more chance after a short delay.
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("seek timed out at %.2fs: %w", ident.Timestamp, ctx.Err())
		case <-time.After(e.retryDelay):
		}

		frameData, err = e.captureFrame(ctx, videoPath, ident.Timestamp)
		if err != nil {
			return "", err
		}
		if len(frameData) == 0 {
			return "", fmt.Errorf("empty frame at %.2fs", ident.Timestamp)
		}
	}

	img, _, err := image.Decode(bytes.NewReader(frameData))
	if err != nil {
		return "", fmt.Errorf("failed to decode frame: %w", err)
	}

	if e.drawBoxes && ident.Box != nil {
		img = DrawBox(img, *ident.Box)
	}

	return e.encodeFrame(img)
}

func (e *Extractor) captureFrame(ctx context.Context, videoPath string, timestamp float64) ([]byte, error) {
	tempFile := filepath.Join(e.tempDir, fmt.Sprintf("frame_%s.jpg", uuid.New().String()))
	defer os.Remove(tempFile)

	args := []string{
		"-y",
		"-ss", fmt.Sprintf("%.3f", timestamp),
		"-i", videoPath,
		"-vframes", "1",
		"-q:v", "2",
		"-f", "mjpeg",
		tempFile,
	}

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("seek timed out at %.2fs: %w", timestamp, ctx.Err())
		}
		e.logger.Debug("ffmpeg failed", "stderr", stderr.String())
		return nil, fmt.Errorf("failed to capture frame at %.2fs: %w", timestamp, err)
	}

	return os.ReadFile(tempFile)
}

// encodeFrame encodes JPEG first and falls back to lossless PNG when
// JPEG encoding errors or yields no bytes.
func (e *Extractor) encodeFrame(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.jpegQuality}); err == nil && buf.Len() > 0 {
		return mediaref.Format("image/jpeg", buf.Bytes()), nil
	}

	buf.Reset()
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode frame: %w", err)
	}

	return mediaref.Format("image/png", buf.Bytes()), nil
}

// Cleanup removes the scratch directory.
func (e *Extractor) Cleanup() error {
	return os.RemoveAll(e.tempDir)
}
