// handler.go — основной обработчик HTTP API TK Labels Module.
// Делегирует запросы в сервисный слой; маршруты регистрируются в server.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bigkaa/goartstore/tklabels-module/internal/domain/model"
)

// ProjectService — pipeline данных проектов (service.ProjectDataService).
type ProjectService interface {
	FetchProjectData(ctx context.Context, entity model.Entity, settings model.Settings) model.ProjectRecord
	FetchProjectByID(ctx context.Context, projectID string, settings model.Settings) model.ProjectRecord
	InvalidateProject(ctx context.Context, projectID string) error
	InvalidateAll(ctx context.Context) error
}

// EntityLoader — загрузка сущностей CMS (repository.EntityRepository).
type EntityLoader interface {
	GetByID(ctx context.Context, entityType, entityID string) (*model.Node, error)
}

// SettingsReader — текущие настройки Hub (service.SettingsService).
type SettingsReader interface {
	Current(ctx context.Context) model.Settings
}

// APIHandler — обработчик API проектов и администрирования кэша.
type APIHandler struct {
	projects ProjectService
	entities EntityLoader
	settings SettingsReader
	logger   *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	projects ProjectService,
	entities EntityLoader,
	settings SettingsReader,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		projects: projects,
		entities: entities,
		settings: settings,
		logger:   logger.With(slog.String("component", "api_handler")),
	}
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
