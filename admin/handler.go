package admin

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/pnptv/broadcastq/core/logger"
	"github.com/pnptv/broadcastq/core/queue"
)

// defaultListLimit bounds job listings when the client does not ask for a
// specific page size.
const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Handler exposes the queue control surface as a JSON HTTP API. All
// operations delegate to the queue service; the handler only does transport
// concerns.
type Handler struct {
	service *queue.Service
	logger  *slog.Logger
}

// NewHandler creates the admin API handler.
func NewHandler(service *queue.Service, opts ...HandlerOption) (*Handler, error) {
	if service == nil {
		return nil, ErrServiceNil
	}

	h := &Handler{
		service: service,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h, nil
}

// HandlerOption is a functional option for configuring the handler.
type HandlerOption func(*Handler)

// WithHandlerLogger configures structured logging for admin operations.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// Router builds the chi router with all admin routes mounted.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Get("/status", h.status)
	r.Get("/statistics", h.statistics)

	r.Route("/queues/{name}", func(r chi.Router) {
		r.Get("/", h.queueStatus)
		r.Get("/jobs", h.queueJobs)
		r.Get("/failed", h.queueFailed)
		r.Post("/cleanup", h.queueCleanup)
	})

	r.Route("/jobs/{id}", func(r chi.Router) {
		r.Get("/", h.job)
		r.Post("/retry", h.retryJob)
	})

	r.Post("/worker/concurrency", h.setConcurrency)

	r.Get("/broadcasts/failed", h.failedBroadcasts)
	r.Post("/broadcasts/{id}/retry", h.retryBroadcast)

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	// A saturated worker is still healthy for load balancer purposes; only a
	// stopped processing loop makes the service unavailable.
	if !h.service.IsWorkerRunning() {
		h.respond(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}

	h.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Queues []queue.QueueStatus `json:"queues"`
	Worker workerStatus        `json:"worker"`
}

type workerStatus struct {
	Running     bool `json:"running"`
	ActiveJobs  int  `json:"active_jobs"`
	Concurrency int  `json:"concurrency"`
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.service.AllQueueStatuses(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, statusResponse{
		Queues: statuses,
		Worker: workerStatus{
			Running:     h.service.IsWorkerRunning(),
			ActiveJobs:  h.service.ActiveJobs(),
			Concurrency: h.service.Worker().Concurrency(),
		},
	})
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, stats)
}

func (h *Handler) queueStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.QueueStatus(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, status)
}

func (h *Handler) queueJobs(w http.ResponseWriter, r *http.Request) {
	status := queue.Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		h.badRequest(w, "invalid status filter")
		return
	}

	jobs, err := h.service.JobsByQueue(r.Context(), chi.URLParam(r, "name"), status, listLimit(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (h *Handler) queueFailed(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.FailedJobs(r.Context(), chi.URLParam(r, "name"), listLimit(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (h *Handler) queueCleanup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DaysOld int `json:"days_old"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	if req.DaysOld < 0 {
		h.badRequest(w, "days_old cannot be negative")
		return
	}

	deleted, err := h.service.ClearCompletedJobs(r.Context(), chi.URLParam(r, "name"), req.DaysOld)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func (h *Handler) job(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobID(w, r)
	if !ok {
		return
	}

	job, err := h.service.Job(r.Context(), jobID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, job)
}

func (h *Handler) retryJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobID(w, r)
	if !ok {
		return
	}

	if err := h.service.RetryJob(r.Context(), jobID); err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, map[string]string{"status": "pending"})
}

func (h *Handler) setConcurrency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Concurrency int `json:"concurrency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	if err := h.service.SetConcurrency(req.Concurrency); err != nil {
		h.respondError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "worker concurrency updated",
		slog.Int("concurrency", req.Concurrency))

	h.respond(w, http.StatusOK, map[string]int{"concurrency": req.Concurrency})
}

// broadcastQueues are the queues whose jobs the broadcast-scoped endpoints
// operate on.
var broadcastQueues = []string{queue.QueueBroadcasts, queue.QueueSegmentBroadcasts}

func (h *Handler) failedBroadcasts(w http.ResponseWriter, r *http.Request) {
	limit := listLimit(r)

	var jobs []*queue.Job
	for _, q := range broadcastQueues {
		failed, err := h.service.FailedJobs(r.Context(), q, limit)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		jobs = append(jobs, failed...)
	}
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}

	h.respond(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (h *Handler) retryBroadcast(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobID(w, r)
	if !ok {
		return
	}

	job, err := h.service.Job(r.Context(), jobID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	isBroadcast := false
	for _, q := range broadcastQueues {
		if job.Queue == q {
			isBroadcast = true
			break
		}
	}
	if !isBroadcast {
		h.respond(w, http.StatusNotFound, errorResponse{Error: "not a broadcast job"})
		return
	}

	if err := h.service.RetryJob(r.Context(), jobID); err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, map[string]string{"status": "pending"})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.badRequest(w, "invalid job id")
		return uuid.Nil, false
	}
	return jobID, true
}

func (h *Handler) respond(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", logger.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, queue.ErrJobNotFound):
		h.respond(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, queue.ErrJobNotRetryable):
		h.respond(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, queue.ErrInvalidConcurrency):
		h.respond(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		h.logger.ErrorContext(r.Context(), "admin request failed",
			slog.String("path", r.URL.Path),
			logger.Error(err))
		h.respond(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string) {
	h.respond(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func listLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
