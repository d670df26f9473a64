package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"rezoning/internal/api/v1/dto"
	"rezoning/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const defaultDeadLetterLimit = 100

type QueueHandler struct {
	queueService   service.QueueService
	archiveService service.ArchiveService
	validate       *validator.Validate
	logger         zerolog.Logger
}

// NewQueueHandler builds the operator handler. archiveService may be nil when
// no archive bucket is configured; export then answers 503.
func NewQueueHandler(queueService service.QueueService, archiveService service.ArchiveService, v *validator.Validate, logger zerolog.Logger) *QueueHandler {
	return &QueueHandler{
		queueService:   queueService,
		archiveService: archiveService,
		validate:       v,
		logger:         logger,
	}
}

// RegisterRoutes mounts v1 queue routes
func (h *QueueHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("GET /queues", authMw(http.HandlerFunc(h.listQueues)))
	mux.Handle("GET /queues/{name}", authMw(http.HandlerFunc(h.getQueue)))
	mux.Handle("GET /queues/{name}/dead-letters", authMw(http.HandlerFunc(h.listDeadLetters)))
	mux.Handle("DELETE /queues/{name}/dead-letters", authMw(http.HandlerFunc(h.purgeDeadLetters)))
	mux.Handle("POST /queues/{name}/dead-letters/redrive", authMw(http.HandlerFunc(h.redrive)))
	mux.Handle("POST /queues/{name}/dead-letters/export", authMw(http.HandlerFunc(h.exportDeadLetters)))
	mux.Handle("DELETE /queues/{name}/messages/{id}", authMw(http.HandlerFunc(h.removeMessage)))
}

func (h *QueueHandler) listQueues(w http.ResponseWriter, r *http.Request) {
	stats := make([]service.QueueStats, 0)
	for _, name := range h.queueService.Names() {
		s, err := h.queueService.Stats(r.Context(), name)
		if err != nil {
			h.writeServiceError(w, "Failed to read queue stats", err)
			return
		}
		stats = append(stats, s)
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *QueueHandler) getQueue(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queueService.Stats(r.Context(), r.PathValue("name"))
	if err != nil {
		h.writeServiceError(w, "Failed to read queue stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *QueueHandler) listDeadLetters(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	limit := defaultDeadLetterLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "Invalid limit: must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	letters, err := h.queueService.ListDeadLetters(r.Context(), name, limit)
	if err != nil {
		h.writeServiceError(w, "Failed to list dead letters", err)
		return
	}

	resp := dto.DeadLetterListResponse{Queue: name, DeadLetters: make([]dto.DeadLetterDTO, 0, len(letters))}
	for _, dl := range letters {
		resp.DeadLetters = append(resp.DeadLetters, dto.DeadLetterDTO{
			ID:          dl.ID,
			QueueName:   dl.QueueName,
			Payload:     service.RawJSON(dl.Payload),
			Attempts:    dl.Attempts,
			CreatedAt:   dl.CreatedAt,
			LastAttempt: dl.LastAttempt,
			MovedAt:     dl.MovedAt,
			ErrorText:   dl.ErrorText,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *QueueHandler) redrive(w http.ResponseWriter, r *http.Request) {
	var req dto.RedriveRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	name := r.PathValue("name")
	moved, err := h.queueService.Redrive(r.Context(), name, req.Limit)
	if err != nil {
		h.writeServiceError(w, "Failed to redrive dead letters", err)
		return
	}
	h.logger.Info().Str("queue", name).Int("moved", moved).Msg("Redrove dead letters")
	writeJSON(w, http.StatusOK, dto.RedriveResponse{Moved: moved})
}

func (h *QueueHandler) purgeDeadLetters(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	purged, err := h.queueService.PurgeDeadLetters(r.Context(), name)
	if err != nil {
		h.writeServiceError(w, "Failed to purge dead letters", err)
		return
	}
	h.logger.Info().Str("queue", name).Int64("purged", purged).Msg("Purged dead letters")
	writeJSON(w, http.StatusOK, dto.PurgeResponse{Purged: purged})
}

func (h *QueueHandler) exportDeadLetters(w http.ResponseWriter, r *http.Request) {
	if h.archiveService == nil {
		http.Error(w, "Dead-letter archive is not configured", http.StatusServiceUnavailable)
		return
	}
	result, err := h.archiveService.Export(r.Context(), r.PathValue("name"))
	if err != nil {
		h.writeServiceError(w, "Failed to export dead letters", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *QueueHandler) removeMessage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid message ID", http.StatusBadRequest)
		return
	}
	if err := h.queueService.Remove(r.Context(), r.PathValue("name"), id); err != nil {
		h.writeServiceError(w, "Failed to remove message", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *QueueHandler) writeServiceError(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, service.ErrUnknownQueue) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	h.logger.Error().Err(err).Msg(msg)
	http.Error(w, msg+": "+err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
