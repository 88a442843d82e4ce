package api

import (
	"fmt"
	"html/template"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dkoval/facescout/internal/analysis"
	"github.com/dkoval/facescout/internal/database"
	"github.com/dkoval/facescout/internal/mediaref"
	"github.com/dkoval/facescout/internal/models"
	"github.com/dkoval/facescout/internal/storage"
)

type App struct {
	Storage         storage.Storage
	DB              *database.DB
	AnalysisRepo    *database.AnalysisRepository
	SnapshotRepo    *database.SnapshotRepo
	AnalysisService *analysis.Service
	MaxUploadSize   int64
	Logger          *slog.Logger
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

func (app *App) HomeHandler(w http.ResponseWriter, r *http.Request) {
	app.renderTemplate(w, "base.html", struct {
		Title   string
		Message string
	}{
		Title:   "FaceScout",
		Message: "Upload a reference photo and a clip to find out whether the person appears in it.",
	})
}

func (app *App) UploadPageHandler(w http.ResponseWriter, r *http.Request) {
	app.renderTemplate(w, "upload.html", nil)
}

func (app *App) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)

	if err := r.ParseMultipartForm(app.MaxUploadSize); err != nil {
		app.renderError(w, "File too large")
		return
	}

	photo, photoHeader, err := r.FormFile("photo")
	if err != nil {
		app.renderError(w, "A reference photo is required")
		return
	}
	defer photo.Close()

	video, videoHeader, err := r.FormFile("video")
	if err != nil {
		app.renderError(w, "A video clip is required")
		return
	}
	defer video.Close()

	photoType := uploadContentType(photoHeader)
	if !mediaref.IsAcceptedImage(photoType) {
		app.renderError(w, "Unsupported photo format")
		return
	}

	videoType := uploadContentType(videoHeader)
	if !mediaref.IsAcceptedVideo(videoType) {
		app.renderError(w, "Unsupported video format")
		return
	}

	photoFilename, err := app.Storage.SaveFile(photo, storage.FileInfo{
		Filename:    photoHeader.Filename,
		ContentType: photoType,
		Size:        photoHeader.Size,
	})
	if err != nil {
		app.renderError(w, "Failed to save photo")
		return
	}

	videoFilename, err := app.Storage.SaveFile(video, storage.FileInfo{
		Filename:    videoHeader.Filename,
		ContentType: videoType,
		Size:        videoHeader.Size,
	})
	if err != nil {
		app.Storage.DeleteFile(photoFilename)
		app.renderError(w, "Failed to save video")
		return
	}

	rec := models.NewAnalysis(photoFilename, videoFilename, photoType, videoType, videoHeader.Size)
	if err := app.AnalysisRepo.Insert(r.Context(), rec); err != nil {
		app.Storage.DeleteFile(photoFilename)
		app.Storage.DeleteFile(videoFilename)
		app.renderError(w, "Failed to save analysis")
		return
	}

	w.Header().Set("HX-Redirect", "/analyses/"+rec.ID)
	app.renderSuccess(w, "Upload received")
}

func (app *App) ListAnalysesHandler(w http.ResponseWriter, r *http.Request) {
	analyses, err := app.AnalysisRepo.List(r.Context(), 50)
	if err != nil {
		http.Error(w, "Error loading analyses", http.StatusInternalServerError)
		return
	}

	app.renderTemplate(w, "list.html", struct {
		Analyses []models.Analysis
	}{
		Analyses: analyses,
	})
}

func (app *App) AnalysisPageHandler(w http.ResponseWriter, r *http.Request) {
	analysisID := chi.URLParam(r, "id")
	if analysisID == "" {
		http.NotFound(w, r)
		return
	}

	rec, err := app.AnalysisRepo.GetByID(r.Context(), analysisID)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	snapshots, err := app.SnapshotRepo.GetByAnalysisID(r.Context(), analysisID)
	if err != nil {
		http.Error(w, "Error loading snapshots", http.StatusInternalServerError)
		return
	}

	app.renderTemplate(w, "analysis.html", struct {
		Analysis      *models.Analysis
		Snapshots     []models.SnapshotRecord
		FormattedSize string
	}{
		Analysis:      rec,
		Snapshots:     snapshots,
		FormattedSize: formatFileSize(rec.VideoSize),
	})
}

func (app *App) StreamVideoHandler(w http.ResponseWriter, r *http.Request) {
	analysisID := chi.URLParam(r, "id")
	if analysisID == "" {
		http.NotFound(w, r)
		return
	}

	rec, err := app.AnalysisRepo.GetByID(r.Context(), analysisID)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	app.serveStoredFile(w, r, rec.VideoFilename, rec.VideoContentType)
}

func (app *App) ServeMediaHandler(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	if file == "" {
		http.NotFound(w, r)
		return
	}

	app.serveStoredFile(w, r, file, contentTypeForExt(filepath.Ext(file)))
}

func (app *App) serveStoredFile(w http.ResponseWriter, r *http.Request, filename, contentType string) {
	file, err := app.Storage.OpenFile(filename)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer file.Close()

	// Not every Storage backend hands out *os.File; ServeContent only
	// needs Stat for the modification time, so fall back to the zero
	// time when it is unavailable.
	var modTime time.Time
	if statter, ok := file.(interface{ Stat() (os.FileInfo, error) }); ok {
		if stat, err := statter.Stat(); err == nil {
			modTime = stat.ModTime()
		}
	}

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	// ServeContent handles Range requests, Accept-Ranges and 206 replies.
	http.ServeContent(w, r, filename, modTime, file)
}

func (app *App) renderTemplate(w http.ResponseWriter, name string, data interface{}) {
	tmplPath := filepath.Join("web", "templates", name)
	tmpl, err := template.ParseFiles(tmplPath)
	if err != nil {
		http.Error(w, "Error loading template", http.StatusInternalServerError)
		return
	}

	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Error rendering template", http.StatusInternalServerError)
	}
}

func (app *App) renderError(w http.ResponseWriter, message string) {
	w.WriteHeader(http.StatusBadRequest)
	fmt.Fprintf(w, `<div class="alert alert-error">%s</div>`, template.HTMLEscapeString(message))
}

func (app *App) renderSuccess(w http.ResponseWriter, message string) {
	fmt.Fprintf(w, `<div class="alert alert-success">%s</div>`, template.HTMLEscapeString(message))
}

func uploadContentType(header *multipart.FileHeader) string {
	contentType := header.Header.Get("Content-Type")
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	return contentTypeForExt(filepath.Ext(header.Filename))
}

func contentTypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".avi":
		return "video/x-msvideo"
	case ".wmv":
		return "video/x-ms-wmv"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	default:
		return ""
	}
}

func formatFileSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case size >= GB:
		return fmt.Sprintf("%.2f GB", float64(size)/float64(GB))
	case size >= MB:
		return fmt.Sprintf("%.2f MB", float64(size)/float64(MB))
	case size >= KB:
		return fmt.Sprintf("%.2f KB", float64(size)/float64(KB))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
