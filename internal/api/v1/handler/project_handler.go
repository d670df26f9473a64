package handler

import (
	"encoding/json"
	"net/http"

	"rezoning/internal/api/v1/dto"
	"rezoning/internal/model"
	"rezoning/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type ProjectHandler struct {
	projectService service.ProjectService
	queueName      string
	validate       *validator.Validate
	logger         zerolog.Logger
}

func NewProjectHandler(projectService service.ProjectService, queueName string, v *validator.Validate, logger zerolog.Logger) *ProjectHandler {
	return &ProjectHandler{projectService: projectService, queueName: queueName, validate: v, logger: logger}
}

// RegisterRoutes mounts v1 project routes
func (h *ProjectHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("POST /projects", authMw(http.HandlerFunc(h.enqueueProject)))
}

func (h *ProjectHandler) enqueueProject(w http.ResponseWriter, r *http.Request) {
	var project model.Project
	if err := json.NewDecoder(r.Body).Decode(&project); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&project); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.projectService.Enqueue(r.Context(), project)
	if err != nil {
		h.logger.Error().Err(err).Str("project_id", project.ID).Msg("Failed to enqueue project")
		http.Error(w, "Failed to enqueue project: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if !res.Queued {
		h.logger.Debug().Str("project_id", project.ID).Msg("Project unchanged, skipped")
		writeJSON(w, http.StatusOK, dto.ProjectEnqueueResponse{Status: dto.ProjectStatusUnchanged, Queue: h.queueName})
		return
	}

	h.logger.Info().Str("project_id", project.ID).Int64("msg_id", res.MessageID).Msg("Project queued for summarizing")
	writeJSON(w, http.StatusAccepted, dto.ProjectEnqueueResponse{
		Status:    dto.ProjectStatusQueued,
		MessageID: res.MessageID,
		Queue:     h.queueName,
	})
}
