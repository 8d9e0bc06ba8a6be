// cache.go — административные endpoints кэша проектов.
// Защищены JWT (роль admin или scope cache:write) на уровне middleware.
package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/tklabels-module/internal/api/errors"
	"github.com/bigkaa/goartstore/tklabels-module/internal/api/middleware"
)

// InvalidateProject — DELETE /api/v1/cache/projects/{projectID}.
func (h *APIHandler) InvalidateProject(w http.ResponseWriter, r *http.Request) {
	projectID := strings.TrimSpace(chi.URLParam(r, "projectID"))
	if projectID == "" {
		apierrors.ValidationError(w, "Пустой идентификатор проекта")
		return
	}

	if err := h.projects.InvalidateProject(r.Context(), projectID); err != nil {
		h.logger.Error("Ошибка удаления проекта из кэша",
			slog.String("project_id", projectID),
			slog.String("subject", middleware.SubjectFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Не удалось удалить проект из кэша")
		return
	}

	h.logger.Info("Проект удалён из кэша по запросу",
		slog.String("project_id", projectID),
		slog.String("subject", middleware.SubjectFromContext(r.Context())),
	)
	w.WriteHeader(http.StatusNoContent)
}

// InvalidateAllProjects — DELETE /api/v1/cache/projects.
func (h *APIHandler) InvalidateAllProjects(w http.ResponseWriter, r *http.Request) {
	if err := h.projects.InvalidateAll(r.Context()); err != nil {
		h.logger.Error("Ошибка инвалидации кэша проектов",
			slog.String("subject", middleware.SubjectFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Не удалось инвалидировать кэш проектов")
		return
	}

	h.logger.Info("Кэш проектов инвалидирован по запросу",
		slog.String("subject", middleware.SubjectFromContext(r.Context())),
	)
	w.WriteHeader(http.StatusNoContent)
}
