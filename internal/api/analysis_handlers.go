package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dkoval/facescout/internal/analysis"
)

func (app *App) StartAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	analysisID := chi.URLParam(r, "id")

	session, err := app.AnalysisService.StartAnalysis(analysisID)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to start analysis: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"session_id":  session.ID,
		"analysis_id": session.AnalysisID,
		"stream_url":  "/sessions/" + session.ID + "/stream",
	})
}

func (app *App) SessionStreamHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, exists := app.AnalysisService.GetSession(sessionID)
	if !exists {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	clientGone := r.Context().Done()

	for {
		select {
		case update, ok := <-session.Updates:
			if !ok {
				return
			}

			data, err := json.Marshal(update.Data)
			if err != nil {
				app.Logger.Error("failed to marshal session update", "error", err)
				continue
			}

			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", update.Type, string(data))
			flusher.Flush()

		case <-clientGone:
			return
		}
	}
}

func (app *App) StopSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := app.AnalysisService.StopSession(sessionID); err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type analyzeRequest struct {
	PhotoReference string `json:"photo_reference"`
	VideoReference string `json:"video_reference"`
}

// APIAnalyzeHandler is the JSON entry point for reference-based
// requests. Missing references are rejected up front; everything past
// that boundary comes back as a normal-shaped result, degraded or not.
func (app *App) APIAnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	if req.PhotoReference == "" {
		http.Error(w, "photo_reference is required", http.StatusBadRequest)
		return
	}
	if req.VideoReference == "" {
		http.Error(w, "video_reference is required", http.StatusBadRequest)
		return
	}

	result := app.AnalysisService.Analyze(r.Context(), analysis.Request{
		PhotoRef: req.PhotoReference,
		VideoRef: req.VideoReference,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
