// projects.go — endpoints данных проектов Local Contexts Hub.
//
//	GET /api/v1/nodes/{nodeID}/project
//	GET /api/v1/entities/{entityType}/{entityID}/project
//	GET /api/v1/projects/{projectID}
//
// Все три отвечают 200 и записью проекта (возможно, пустой): ошибки Hub,
// отсутствие сущности или поля не являются ошибками API.
// Параметр ?display=both|name_only управляет выводом label_text.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/tklabels-module/internal/api/errors"
	"github.com/bigkaa/goartstore/tklabels-module/internal/domain/model"
	"github.com/bigkaa/goartstore/tklabels-module/internal/repository"
)

// GetNodeProject — GET /api/v1/nodes/{nodeID}/project.
func (h *APIHandler) GetNodeProject(w http.ResponseWriter, r *http.Request) {
	h.serveEntityProject(w, r, model.EntityTypeNode, chi.URLParam(r, "nodeID"))
}

// GetEntityProject — GET /api/v1/entities/{entityType}/{entityID}/project.
// Для сущностей, отличных от node, возвращается пустая запись.
func (h *APIHandler) GetEntityProject(w http.ResponseWriter, r *http.Request) {
	h.serveEntityProject(w, r, chi.URLParam(r, "entityType"), chi.URLParam(r, "entityID"))
}

// GetProject — GET /api/v1/projects/{projectID}.
func (h *APIHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	display, ok := displayOption(w, r)
	if !ok {
		return
	}

	projectID := strings.TrimSpace(chi.URLParam(r, "projectID"))
	if projectID == "" {
		apierrors.ValidationError(w, "Пустой идентификатор проекта")
		return
	}

	record := h.projects.FetchProjectByID(r.Context(), projectID, h.settings.Current(r.Context()))
	writeJSON(w, http.StatusOK, model.ApplyDisplayOption(record, display))
}

// serveEntityProject загружает сущность и запускает pipeline данных проекта.
func (h *APIHandler) serveEntityProject(w http.ResponseWriter, r *http.Request, entityType, entityID string) {
	display, ok := displayOption(w, r)
	if !ok {
		return
	}

	// entity остаётся nil-интерфейсом, если сущность не загружена
	var entity model.Entity
	node, err := h.entities.GetByID(r.Context(), entityType, entityID)
	switch {
	case err == nil:
		if node != nil {
			entity = node
		}
	case errors.Is(err, repository.ErrNotFound):
		h.logger.Debug("Сущность не найдена",
			slog.String("entity_type", entityType),
			slog.String("entity_id", entityID),
		)
	default:
		h.logger.Error("Ошибка загрузки сущности",
			slog.String("entity_type", entityType),
			slog.String("entity_id", entityID),
			slog.String("error", err.Error()),
		)
	}

	record := h.projects.FetchProjectData(r.Context(), entity, h.settings.Current(r.Context()))
	writeJSON(w, http.StatusOK, model.ApplyDisplayOption(record, display))
}

// displayOption читает ?display; при недопустимом значении пишет 400.
func displayOption(w http.ResponseWriter, r *http.Request) (string, bool) {
	display := r.URL.Query().Get("display")
	if !model.ValidDisplayOption(display) {
		apierrors.ValidationError(w, fmt.Sprintf("Недопустимое значение display %q, допустимые: %s, %s",
			display, model.DisplayBoth, model.DisplayNameOnly))
		return "", false
	}
	if display == "" {
		display = model.DisplayBoth
	}
	return display, true
}
