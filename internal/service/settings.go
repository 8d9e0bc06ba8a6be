package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bigkaa/goartstore/tklabels-module/internal/domain/model"
)

// Имена настроек, переопределяемых в базе данных.
const (
	settingAPIURL          = "api_url"
	settingAPIKey          = "api_key"
	settingFieldIdentifier = "field_identifier"
)

// SettingsProvider — источник переопределений настроек (repository.SettingsRepository).
type SettingsProvider interface {
	Get(ctx context.Context) (map[string]string, error)
}

// SettingsService — текущие настройки Hub: значения окружения,
// поверх которых накладываются непустые значения из базы данных.
type SettingsService struct {
	defaults model.Settings
	provider SettingsProvider
	logger   *slog.Logger
}

// NewSettingsService создаёт сервис настроек.
// provider может быть nil — тогда используются только значения окружения.
func NewSettingsService(defaults model.Settings, provider SettingsProvider, logger *slog.Logger) *SettingsService {
	return &SettingsService{
		defaults: defaults,
		provider: provider,
		logger:   logger.With(slog.String("component", "settings_service")),
	}
}

// Current возвращает настройки на момент вызова.
// Ошибка чтения базы не фатальна: логируется, используются значения окружения.
func (s *SettingsService) Current(ctx context.Context) model.Settings {
	settings := s.defaults
	if s.provider == nil {
		return settings
	}

	overrides, err := s.provider.Get(ctx)
	if err != nil {
		s.logger.Warn("Не удалось прочитать настройки из БД, используются значения окружения",
			slog.String("error", err.Error()),
		)
		return settings
	}

	if v := strings.TrimSpace(overrides[settingAPIURL]); v != "" {
		settings.APIURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(overrides[settingAPIKey]); v != "" {
		settings.APIKey = v
	}
	if v := strings.TrimSpace(overrides[settingFieldIdentifier]); v != "" {
		settings.FieldIdentifier = v
	}
	return settings
}

// HubReadinessChecker — проверка полноты настроек Hub для readiness probe.
// Без URL или ключа сервис работает, но отдаёт только пустые записи.
type HubReadinessChecker struct {
	settings *SettingsService
}

// NewHubReadinessChecker создаёт проверку настроек Hub.
func NewHubReadinessChecker(settings *SettingsService) *HubReadinessChecker {
	return &HubReadinessChecker{settings: settings}
}

// CheckReady возвращает "degraded", если Hub не настроен.
func (c *HubReadinessChecker) CheckReady() (status, message string) {
	s := c.settings.Current(context.Background())
	switch {
	case s.APIURL == "":
		return "degraded", "не задан URL API Local Contexts Hub"
	case s.APIKey == "":
		return "degraded", "не задан ключ API Local Contexts Hub"
	case s.FieldIdentifier == "":
		return "degraded", "не задан идентификатор поля проекта"
	}
	return "ok", "настройки Hub заданы"
}
