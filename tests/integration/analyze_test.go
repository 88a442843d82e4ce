package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/dkoval/facescout/internal/analysis"
	"github.com/dkoval/facescout/internal/mediaref"
)

func startAnalysis(t *testing.T, ts *TestServer) (analysisID, streamURL string) {
	resp := uploadTestPair(t, ts.Server.URL)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Upload failed with status %d", resp.StatusCode)
	}

	analyses, err := ts.AnalysisRepo.List(context.Background(), 1)
	if err != nil || len(analyses) == 0 {
		t.Fatalf("Failed to find uploaded analysis: %v", err)
	}
	analysisID = analyses[0].ID

	startResp, err := http.Post(ts.Server.URL+"/analyses/"+analysisID+"/start", "", nil)
	if err != nil {
		t.Fatalf("Failed to start analysis: %v", err)
	}
	defer startResp.Body.Close()

	if startResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(startResp.Body)
		t.Fatalf("Start returned status %d: %s", startResp.StatusCode, body)
	}

	var started struct {
		SessionID  string `json:"session_id"`
		AnalysisID string `json:"analysis_id"`
		StreamURL  string `json:"stream_url"`
	}
	if err := json.NewDecoder(startResp.Body).Decode(&started); err != nil {
		t.Fatalf("Failed to decode start response: %v", err)
	}
	if started.AnalysisID != analysisID {
		t.Errorf("Expected analysis ID %s, got %s", analysisID, started.AnalysisID)
	}

	return analysisID, started.StreamURL
}

// drainStream reads the SSE stream to completion. The server closes the
// stream once the analysis loop finishes, so this doubles as a wait.
func drainStream(t *testing.T, ts *TestServer, streamURL string) string {
	resp, err := http.Get(ts.Server.URL + streamURL)
	if err != nil {
		t.Fatalf("Failed to open stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected text/event-stream, got %s", ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read stream: %v", err)
	}
	return string(body)
}

func TestAnalysisFlow(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Cleanup()

	analysisID, streamURL := startAnalysis(t, ts)
	stream := drainStream(t, ts, streamURL)

	for _, event := range []string{"event: duration", "event: verdict", "event: progress", "event: complete"} {
		if !strings.Contains(stream, event) {
			t.Errorf("Stream missing %q:\n%s", event, stream)
		}
	}

	rec, err := ts.AnalysisRepo.GetByID(context.Background(), analysisID)
	if err != nil {
		t.Fatalf("Failed to load analysis: %v", err)
	}
	if rec.Status != "complete" {
		t.Errorf("Expected status complete, got %s", rec.Status)
	}
	if !rec.IsPresent {
		t.Error("Expected person to be marked present")
	}
	if rec.Duration <= 0 {
		t.Errorf("Expected positive duration, got %f", rec.Duration)
	}

	snapshots, err := ts.SnapshotRepo.GetByAnalysisID(context.Background(), analysisID)
	if err != nil {
		t.Fatalf("Failed to load snapshots: %v", err)
	}
	if len(snapshots) != 1 {
		t.Fatalf("Expected 1 snapshot, got %d", len(snapshots))
	}
	if snapshots[0].Filename == "" {
		t.Error("Expected snapshot image to be stored")
	}
	if snapshots[0].Status != "extracted" {
		t.Errorf("Expected snapshot status extracted, got %s", snapshots[0].Status)
	}

	if ts.Match.calls != 1 {
		t.Errorf("Expected exactly one model call, got %d", ts.Match.calls)
	}
}

func TestAnalysisFlowModelFailure(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Cleanup()

	ts.Match.err = errors.New("model unavailable")

	analysisID, streamURL := startAnalysis(t, ts)
	stream := drainStream(t, ts, streamURL)

	if !strings.Contains(stream, "event: failed") {
		t.Errorf("Stream missing failed event:\n%s", stream)
	}

	rec, err := ts.AnalysisRepo.GetByID(context.Background(), analysisID)
	if err != nil {
		t.Fatalf("Failed to load analysis: %v", err)
	}
	if rec.Status != "failed" {
		t.Errorf("Expected status failed, got %s", rec.Status)
	}
	if rec.IsPresent {
		t.Error("Expected is_present to be false on failure")
	}
	if !strings.Contains(rec.Reason, "analysis error") {
		t.Errorf("Expected degraded reason, got %q", rec.Reason)
	}
}

func TestStartUnknownAnalysis(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Cleanup()

	resp, err := http.Post(ts.Server.URL+"/analyses/no-such-id/start", "", nil)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", resp.StatusCode)
	}
}

func TestStreamUnknownSession(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Cleanup()

	resp, err := http.Get(ts.Server.URL + "/sessions/no-such-session/stream")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}
}

func TestAPIAnalyze(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Cleanup()

	photoRef := mediaref.Format("image/jpeg", tinyJPEG)
	videoRef := mediaref.Format("video/mp4", []byte("fake mp4 content"))

	payload, _ := json.Marshal(map[string]string{
		"photo_reference": photoRef,
		"video_reference": videoRef,
	})

	resp, err := http.Post(ts.Server.URL+"/api/analyze", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, body)
	}

	var result analysis.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}

	if !result.Verdict.IsPresent {
		t.Error("Expected person to be present")
	}
	if len(result.Snapshots) != 1 {
		t.Errorf("Expected 1 snapshot, got %d", len(result.Snapshots))
	}
	if result.Duration <= 0 {
		t.Errorf("Expected positive duration, got %f", result.Duration)
	}
}

func TestAPIAnalyzeMissingReference(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Cleanup()

	payload, _ := json.Marshal(map[string]string{
		"photo_reference": mediaref.Format("image/jpeg", tinyJPEG),
	})

	resp, err := http.Post(ts.Server.URL+"/api/analyze", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}
}

func TestAPIAnalyzeDegradesOnModelError(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Cleanup()

	ts.Match.err = errors.New("model unavailable")

	payload, _ := json.Marshal(map[string]string{
		"photo_reference": mediaref.Format("image/jpeg", tinyJPEG),
		"video_reference": mediaref.Format("video/mp4", []byte("fake mp4 content")),
	})

	resp, err := http.Post(ts.Server.URL+"/api/analyze", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected degraded result with status 200, got %d", resp.StatusCode)
	}

	var result analysis.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}

	if result.Verdict.IsPresent {
		t.Error("Expected degraded verdict to mark person absent")
	}
	if !strings.Contains(result.Verdict.Reason, "analysis error") {
		t.Errorf("Expected degraded reason, got %q", result.Verdict.Reason)
	}
	if len(result.Verdict.Identifications) != 0 {
		t.Errorf("Expected no identifications, got %d", len(result.Verdict.Identifications))
	}
}
