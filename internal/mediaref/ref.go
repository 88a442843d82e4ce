// Package mediaref handles encoded-binary media references: data URIs
// embedding a MIME type and a base64 payload.
package mediaref

import (
	"encoding/base64"
	"fmt"
	"strings"
)

var acceptedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/bmp":  true,
	"image/webp": true,
}

var acceptedVideoTypes = map[string]bool{
	"video/mp4":        true,
	"video/quicktime":  true,
	"video/x-msvideo":  true,
	"video/x-ms-wmv":   true,
	"video/webm":       true,
	"video/x-matroska": true,
}

// Ref is a decoded media reference.
type Ref struct {
	ContentType string
	Data        []byte
}

// Parse decodes a data URI of the form "data:<mime>;base64,<payload>".
func Parse(s string) (*Ref, error) {
	if !strings.HasPrefix(s, "data:") {
		return nil, fmt.Errorf("reference missing data: prefix")
	}

	rest := s[len("data:"):]
	sep := strings.Index(rest, ";base64,")
	if sep == -1 {
		return nil, fmt.Errorf("reference missing base64 marker")
	}

	contentType := rest[:sep]
	if contentType == "" {
		return nil, fmt.Errorf("reference missing content type")
	}

	data, err := base64.StdEncoding.DecodeString(rest[sep+len(";base64,"):])
	if err != nil {
		return nil, fmt.Errorf("failed to decode reference payload: %w", err)
	}

	return &Ref{ContentType: contentType, Data: data}, nil
}

// Format builds a data URI from raw bytes.
func Format(contentType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data))
}

// PayloadSize returns the decoded byte length of a reference without
// decoding it. Returns 0 for malformed references.
func PayloadSize(s string) int64 {
	sep := strings.Index(s, ";base64,")
	if sep == -1 {
		return 0
	}

	payload := s[sep+len(";base64,"):]
	return int64(base64.StdEncoding.DecodedLen(len(payload)))
}

// IsAcceptedImage reports whether the content type is an accepted
// reference photo format.
func IsAcceptedImage(contentType string) bool {
	return acceptedImageTypes[strings.ToLower(contentType)]
}

// IsAcceptedVideo reports whether the content type is an accepted
// video clip format.
func IsAcceptedVideo(contentType string) bool {
	return acceptedVideoTypes[strings.ToLower(contentType)]
}
