// project.go — ProjectDataService: pipeline получения данных проекта для сущности.
// Сущность → поле с идентификатором проекта → кэш → Local Contexts Hub → фильтрация → кэш.
// Все ошибки логируются и превращаются в пустую запись: потребитель
// (рендеринг) никогда не получает ошибку.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/tklabels-module/internal/domain/model"
	"github.com/bigkaa/goartstore/tklabels-module/internal/hubclient"
)

// Ключи и теги кэша проектов.
const (
	// ProjectCacheKeyPrefix — префикс ключа кэша: "project:" + project_id.
	ProjectCacheKeyPrefix = "project:"
	// ProjectCacheTag — тег всех записей проектов (массовая инвалидация).
	ProjectCacheTag = "local_contexts_project"
	// DefaultProjectCacheTTL — TTL записи кэша по умолчанию (7 дней).
	DefaultProjectCacheTTL = 7 * 24 * time.Hour
)

// Ошибки разрешения сущности и поля.
var (
	// ErrMissingEntity — сущность отсутствует в контексте запроса.
	ErrMissingEntity = errors.New("сущность не найдена в контексте")
	// ErrInvalidEntityType — сущность не является node.
	ErrInvalidEntityType = errors.New("неподдерживаемый тип сущности")
	// ErrMissingField — у сущности нет настроенного поля или оно пустое.
	ErrMissingField = errors.New("поле идентификатора проекта отсутствует или пустое")
)

// Prometheus-метрики pipeline.
var projectFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "lc_project_fetch_total",
	Help: "Общее количество запросов данных проекта (по результату).",
}, []string{"result"})

// ProjectFetcher — источник необработанных данных проекта (hubclient.Client).
type ProjectFetcher interface {
	GetProject(ctx context.Context, settings model.Settings, projectID string) (hubclient.RawProject, error)
}

// ProjectDataService — получение, фильтрация и кэширование данных проектов Hub.
type ProjectDataService struct {
	fetcher ProjectFetcher
	cache   ProjectCache
	ttl     time.Duration
	logger  *slog.Logger
}

// NewProjectDataService создаёт сервис данных проектов.
// ttl <= 0 заменяется на DefaultProjectCacheTTL.
func NewProjectDataService(fetcher ProjectFetcher, cache ProjectCache, ttl time.Duration, logger *slog.Logger) *ProjectDataService {
	if ttl <= 0 {
		ttl = DefaultProjectCacheTTL
	}
	return &ProjectDataService{
		fetcher: fetcher,
		cache:   cache,
		ttl:     ttl,
		logger:  logger.With(slog.String("component", "project_service")),
	}
}

// ProjectCacheKey возвращает ключ кэша проекта.
func ProjectCacheKey(projectID string) string {
	return ProjectCacheKeyPrefix + projectID
}

// FetchProjectData возвращает данные проекта, указанного в поле сущности.
//
// Pipeline:
//  1. Проверить сущность (nil → ErrMissingEntity, не node → ErrInvalidEntityType)
//  2. Прочитать settings.FieldIdentifier из сущности (нет/пусто → ErrMissingField)
//  3. Кэш project:{id} — при hit вернуть запись как есть
//  4. Запрос к Hub; при ошибке — пустая запись, в кэш ничего не пишется
//  5. Фильтрация; пустой результат не кэшируется
//  6. Сохранение в кэш с TTL и тегом
//
// Всегда возвращает запись (возможно, пустую); ошибки только логируются.
func (s *ProjectDataService) FetchProjectData(ctx context.Context, entity model.Entity, settings model.Settings) model.ProjectRecord {
	projectID, err := s.resolveProjectID(entity, settings)
	if err != nil {
		s.logResolveError(entity, settings, err)
		projectFetchTotal.WithLabelValues(resultLabel(err)).Inc()
		return model.EmptyProjectRecord()
	}

	return s.FetchProjectByID(ctx, projectID, settings)
}

// FetchProjectByID выполняет шаги 3-6 pipeline для известного идентификатора проекта.
func (s *ProjectDataService) FetchProjectByID(ctx context.Context, projectID string, settings model.Settings) model.ProjectRecord {
	record, err := s.lookup(ctx, projectID, settings)
	if err != nil {
		s.logger.Error("Ошибка получения данных проекта из Hub",
			slog.String("project_id", projectID),
			slog.String("error", err.Error()),
		)
		projectFetchTotal.WithLabelValues(resultLabel(err)).Inc()
		return model.EmptyProjectRecord()
	}
	return record
}

// InvalidateProject удаляет проект из кэша.
func (s *ProjectDataService) InvalidateProject(ctx context.Context, projectID string) error {
	if err := s.cache.Delete(ctx, ProjectCacheKey(projectID)); err != nil {
		return fmt.Errorf("удаление проекта %s из кэша: %w", projectID, err)
	}
	s.logger.Info("Проект удалён из кэша", slog.String("project_id", projectID))
	return nil
}

// InvalidateAll инвалидирует все проекты в кэше по тегу.
func (s *ProjectDataService) InvalidateAll(ctx context.Context) error {
	if err := s.cache.InvalidateTags(ctx, ProjectCacheTag); err != nil {
		return fmt.Errorf("инвалидация кэша проектов: %w", err)
	}
	s.logger.Info("Кэш проектов инвалидирован", slog.String("tag", ProjectCacheTag))
	return nil
}

// resolveProjectID проверяет сущность и читает идентификатор проекта из настроенного поля.
func (s *ProjectDataService) resolveProjectID(entity model.Entity, settings model.Settings) (string, error) {
	if entity == nil {
		return "", ErrMissingEntity
	}
	if entity.EntityType() != model.EntityTypeNode {
		return "", fmt.Errorf("%w: %s", ErrInvalidEntityType, entity.EntityType())
	}
	if settings.FieldIdentifier == "" {
		return "", fmt.Errorf("%w: не задан идентификатор поля", hubclient.ErrNotConfigured)
	}
	if !entity.HasField(settings.FieldIdentifier) {
		return "", ErrMissingField
	}
	projectID, ok := entity.FieldValue(settings.FieldIdentifier)
	projectID = strings.TrimSpace(projectID)
	if !ok || projectID == "" {
		return "", ErrMissingField
	}
	return projectID, nil
}

// lookup — read-through кэш вокруг запроса к Hub.
func (s *ProjectDataService) lookup(ctx context.Context, projectID string, settings model.Settings) (model.ProjectRecord, error) {
	key := ProjectCacheKey(projectID)

	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		// Недоступный кэш не должен ломать pipeline — идём в Hub
		s.logger.Warn("Ошибка чтения кэша проектов",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
	if ok && cached != nil {
		s.logger.Debug("Cache HIT", slog.String("project_id", projectID))
		projectFetchTotal.WithLabelValues("cache_hit").Inc()
		return *cached, nil
	}

	raw, err := s.fetcher.GetProject(ctx, settings, projectID)
	if err != nil {
		return model.ProjectRecord{}, err
	}

	record := FilterAPIResponse(raw)
	if record.IsEmpty() {
		s.logger.Warn("Hub вернул пустые или некорректные данные проекта",
			slog.String("project_id", projectID),
		)
		projectFetchTotal.WithLabelValues("empty").Inc()
		return record, nil
	}

	if err := s.cache.Set(ctx, key, &record, s.ttl, []string{ProjectCacheTag}); err != nil {
		s.logger.Warn("Ошибка записи в кэш проектов",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
	projectFetchTotal.WithLabelValues("fetched").Inc()

	return record, nil
}

// logResolveError логирует ошибку разрешения сущности/поля с контекстом.
// Отсутствие сущности и неверный тип различаются сообщением.
func (s *ProjectDataService) logResolveError(entity model.Entity, settings model.Settings, err error) {
	switch {
	case errors.Is(err, ErrMissingEntity):
		s.logger.Warn("Сущность не найдена в контексте запроса")
	case errors.Is(err, ErrInvalidEntityType):
		s.logger.Warn("Сущность в контексте не является node",
			slog.String("entity_type", entity.EntityType()),
			slog.String("entity_id", entity.EntityID()),
		)
	case errors.Is(err, ErrMissingField):
		s.logger.Warn("У сущности нет поля идентификатора проекта или оно пустое",
			slog.String("entity_id", entity.EntityID()),
			slog.String("field", settings.FieldIdentifier),
		)
	default:
		s.logger.Error("Сервис Local Contexts не настроен",
			slog.String("error", err.Error()),
		)
	}
}

// resultLabel — значение лейбла result для метрики lc_project_fetch_total.
func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrMissingEntity):
		return "missing_entity"
	case errors.Is(err, ErrInvalidEntityType):
		return "invalid_entity_type"
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, hubclient.ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, hubclient.ErrInvalidURL):
		return "invalid_url"
	case errors.Is(err, hubclient.ErrTransport), errors.Is(err, hubclient.ErrUpstreamStatus):
		return "upstream_error"
	case errors.Is(err, hubclient.ErrMalformedResponse):
		return "malformed_response"
	default:
		return "error"
	}
}

// FilterAPIResponse проецирует ответ Hub на фиксированный набор полей.
// unique_id, title, date_added, date_modified — nil, если ключ отсутствует или null;
// строки копируются, числа сохраняют исходную запись (json.Number),
// объекты и массивы сохраняются как JSON-текст.
// tk_labels — только элементы-объекты; по умолчанию пустой срез.
// Все остальные ключи отбрасываются.
func FilterAPIResponse(raw hubclient.RawProject) model.ProjectRecord {
	return model.ProjectRecord{
		UniqueID:     stringField(raw, "unique_id"),
		Title:        stringField(raw, "title"),
		DateAdded:    stringField(raw, "date_added"),
		DateModified: stringField(raw, "date_modified"),
		TKLabels:     labelsField(raw, "tk_labels"),
	}
}

// stringField возвращает значение ключа как *string.
func stringField(raw hubclient.RawProject, key string) *string {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil
	}

	var s string
	switch val := v.(type) {
	case string:
		s = val
	case json.Number:
		s = val.String()
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return nil
		}
		s = string(b)
	}
	return &s
}

// labelsField возвращает метки из массива объектов.
// Элементы-не-объекты и значение, не являющееся массивом, намеренно отбрасываются:
// потребители ожидают у каждой метки поля объекта.
func labelsField(raw hubclient.RawProject, key string) []model.Label {
	labels := []model.Label{}

	items, ok := raw[key].([]any)
	if !ok {
		return labels
	}
	for _, item := range items {
		if obj, isObj := item.(map[string]any); isObj {
			labels = append(labels, model.Label(obj))
		}
	}
	return labels
}
