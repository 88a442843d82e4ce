package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", app.HomeHandler)
	r.Get("/ping", PingHandler)

	r.Get("/upload", app.UploadPageHandler)
	r.Post("/upload", app.UploadHandler)

	r.Get("/analyses", app.ListAnalysesHandler)
	r.Get("/analyses/{id}", app.AnalysisPageHandler)
	r.Post("/analyses/{id}/start", app.StartAnalysisHandler)
	r.Get("/analyses/{id}/video", app.StreamVideoHandler)

	r.Get("/sessions/{sessionID}/stream", app.SessionStreamHandler)
	r.Post("/sessions/{sessionID}/stop", app.StopSessionHandler)

	r.Get("/media/{file}", app.ServeMediaHandler)

	r.Post("/api/analyze", app.APIAnalyzeHandler)

	fileServer := http.FileServer(http.Dir("./web/static"))
	r.Handle("/static/*", http.StripPrefix("/static", fileServer))

	return r
}
