package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nijaru/mcp-video/db"
	apperrors "github.com/nijaru/mcp-video/errors"
	"github.com/nijaru/mcp-video/media"
	"github.com/nijaru/mcp-video/middleware"
	"github.com/nijaru/mcp-video/models"
	"github.com/nijaru/mcp-video/utils"
	"github.com/nijaru/mcp-video/validation"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// MediaService is the part of media.Service the HTTP surface drives.
type MediaService interface {
	DownloadVideo(ctx context.Context, url string) (media.DownloadResult, error)
	DownloadAudio(ctx context.Context, url string) (media.DownloadResult, error)
	Transcribe(ctx context.Context, path string) (string, error)
	ProcessVideo(ctx context.Context, url string) (string, error)
	ModelName() string
	TempDir() string
}

type JobStore interface {
	Create(ctx context.Context, job *models.Job) error
	Finish(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id string) (*models.Job, error)
	ListByURL(ctx context.Context, url string, limit int) ([]*models.Job, error)
}

type Archiver interface {
	SaveTranscription(ctx context.Context, job *models.Job) error
}

type Handler struct {
	service MediaService
	jobs    JobStore
	archive Archiver
	limiter *rate.Limiter
	timeout time.Duration
}

type Option func(*Handler)

// WithArchive uploads every completed transcription. A nil archiver is ignored.
func WithArchive(a Archiver) Option {
	return func(h *Handler) {
		if a != nil {
			h.archive = a
		}
	}
}

func WithRateLimiter(l *rate.Limiter) Option {
	return func(h *Handler) { h.limiter = l }
}

func New(service MediaService, jobs JobStore, timeout time.Duration, opts ...Option) *Handler {
	h := &Handler{
		service: service,
		jobs:    jobs,
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers every endpoint on a new mux. Pipeline endpoints sit
// behind the rate limiter when one is configured.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	limited := func(fn http.HandlerFunc) http.Handler {
		if h.limiter == nil {
			return fn
		}
		return middleware.Chain(fn, middleware.RateLimit(h.limiter))
	}

	mux.Handle("POST /transcribe", limited(h.TranscribeHandler))
	mux.Handle("POST /download", limited(h.DownloadVideoHandler))
	mux.Handle("POST /download/audio", limited(h.DownloadAudioHandler))
	mux.Handle("POST /extract-text", limited(h.ExtractTextHandler))
	mux.HandleFunc("GET /transcriptions", h.ListTranscriptionsHandler)
	mux.HandleFunc("GET /transcriptions/{id}", h.GetTranscriptionHandler)
	mux.HandleFunc("GET /health", h.HealthHandler)

	return middleware.Chain(mux, middleware.LoggingMiddleware)
}

type transcriptionResponse struct {
	ID            string `json:"id,omitempty"`
	Transcription string `json:"transcription"`
	ModelName     string `json:"model_name"`
}

type pathResponse struct {
	Path string `json:"path"`
}

func (h *Handler) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.timeout)
}

func (h *Handler) requireURL(w http.ResponseWriter, r *http.Request) (string, bool) {
	url := strings.TrimSpace(r.FormValue("url"))
	if err := validation.ValidateURL(url); err != nil {
		middleware.GetLogger(r.Context()).WithError(err).Warn("URL validation failed")
		utils.HandleError(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return url, true
}

// TranscribeHandler runs the full pipeline and records the run as a job.
func (h *Handler) TranscribeHandler(w http.ResponseWriter, r *http.Request) {
	log := middleware.GetLogger(r.Context())

	url, ok := h.requireURL(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	job := models.NewJob(url, h.service.ModelName())
	if err := h.jobs.Create(ctx, job); err != nil {
		log.WithError(err).Error("Failed to record job")
		utils.RespondWithError(w, apperrors.Internal("handlers.Transcribe", err, "failed to record job"))
		return
	}

	text, err := h.service.ProcessVideo(ctx, url)
	// The request context may already be done; the job outcome is still recorded.
	recordCtx := context.WithoutCancel(ctx)
	if err != nil {
		job.Fail(err)
		if ferr := h.jobs.Finish(recordCtx, job); ferr != nil {
			log.WithError(ferr).WithField("job_id", job.ID).Error("Failed to record job failure")
		}
		if ctx.Err() != nil {
			utils.HandleError(w, "Request timed out", http.StatusGatewayTimeout)
			return
		}
		utils.RespondWithError(w, err)
		return
	}

	job.Complete(text)
	if err := h.jobs.Finish(recordCtx, job); err != nil {
		log.WithError(err).WithField("job_id", job.ID).Error("Failed to record job completion")
	}

	if h.archive != nil {
		if err := h.archive.SaveTranscription(recordCtx, job); err != nil {
			log.WithError(err).WithField("job_id", job.ID).Warn("Failed to archive transcription")
		}
	}

	log.WithFields(logrus.Fields{
		"url":    url,
		"job_id": job.ID,
	}).Info("Transcription successful")

	utils.RespondWithJSON(w, http.StatusOK, transcriptionResponse{
		ID:            job.ID,
		Transcription: text,
		ModelName:     job.ModelName,
	})
}

func (h *Handler) DownloadVideoHandler(w http.ResponseWriter, r *http.Request) {
	url, ok := h.requireURL(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	result, err := h.service.DownloadVideo(ctx, url)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	if !result.Found() {
		utils.HandleError(w, "no video file produced", http.StatusNotFound)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, pathResponse{Path: result.Artifact.Path})
}

// DownloadAudioHandler moves the audio out of its scratch directory so the
// returned path outlives the request.
func (h *Handler) DownloadAudioHandler(w http.ResponseWriter, r *http.Request) {
	url, ok := h.requireURL(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	result, err := h.service.DownloadAudio(ctx, url)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	if !result.Found() {
		utils.HandleError(w, "no audio track", http.StatusNotFound)
		return
	}

	path, err := result.Artifact.Keep(h.service.TempDir())
	if err != nil {
		result.Artifact.Release()
		utils.RespondWithError(w, apperrors.Internal("handlers.DownloadAudio", err, "failed to keep audio file"))
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, pathResponse{Path: path})
}

func (h *Handler) ExtractTextHandler(w http.ResponseWriter, r *http.Request) {
	path := r.FormValue("path")
	if path == "" {
		utils.HandleError(w, "path is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	text, err := h.service.Transcribe(ctx, path)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, transcriptionResponse{
		Transcription: text,
		ModelName:     h.service.ModelName(),
	})
}

func (h *Handler) ListTranscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		utils.HandleError(w, "url is required", http.StatusBadRequest)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			utils.HandleError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	jobs, err := h.jobs.ListByURL(r.Context(), url, limit)
	if err != nil {
		utils.RespondWithError(w, apperrors.Internal("handlers.ListTranscriptions", err, "failed to list transcriptions"))
		return
	}
	if jobs == nil {
		jobs = []*models.Job{}
	}

	utils.RespondWithJSON(w, http.StatusOK, jobs)
}

func (h *Handler) GetTranscriptionHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	job, err := h.jobs.Get(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		utils.HandleError(w, "transcription not found", http.StatusNotFound)
		return
	}
	if err != nil {
		utils.RespondWithError(w, apperrors.Internal("handlers.GetTranscription", err, "failed to load transcription"))
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, job)
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"model":  h.service.ModelName(),
	})
}
