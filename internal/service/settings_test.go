package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bigkaa/goartstore/tklabels-module/internal/domain/model"
)

// mockSettingsProvider — мок SettingsProvider.
type mockSettingsProvider struct {
	getFn func(ctx context.Context) (map[string]string, error)
}

func (m *mockSettingsProvider) Get(ctx context.Context) (map[string]string, error) {
	return m.getFn(ctx)
}

func envSettings() model.Settings {
	return model.Settings{
		APIURL:          "https://sandbox.localcontextshub.org/api/v2",
		APIKey:          "env-key",
		FieldIdentifier: "field_project_id",
	}
}

func TestSettingsService_Current(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]string
		err       error
		want      model.Settings
	}{
		{
			name: "без переопределений",
			want: envSettings(),
		},
		{
			name: "переопределение из БД",
			overrides: map[string]string{
				"api_url":          "https://localcontextshub.org/api/v2/",
				"api_key":          "db-key",
				"field_identifier": "field_lc_project",
			},
			want: model.Settings{
				APIURL:          "https://localcontextshub.org/api/v2",
				APIKey:          "db-key",
				FieldIdentifier: "field_lc_project",
			},
		},
		{
			name:      "пустые значения не переопределяют",
			overrides: map[string]string{"api_key": "  ", "api_url": ""},
			want:      envSettings(),
		},
		{
			name: "ошибка БД — значения окружения",
			err:  errors.New("connection refused"),
			want: envSettings(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockSettingsProvider{getFn: func(context.Context) (map[string]string, error) {
				return tt.overrides, tt.err
			}}
			logger, _ := captureLogger()
			svc := NewSettingsService(envSettings(), provider, logger)

			if got := svc.Current(context.Background()); got != tt.want {
				t.Errorf("Current() = %+v, ожидалось %+v", got, tt.want)
			}
		})
	}
}

func TestSettingsService_NilProvider(t *testing.T) {
	logger, _ := captureLogger()
	svc := NewSettingsService(envSettings(), nil, logger)
	if got := svc.Current(context.Background()); got != envSettings() {
		t.Errorf("Current() = %+v", got)
	}
}

func TestHubReadinessChecker(t *testing.T) {
	logger, _ := captureLogger()

	ready := NewHubReadinessChecker(NewSettingsService(envSettings(), nil, logger))
	if status, _ := ready.CheckReady(); status != "ok" {
		t.Errorf("status = %q, ожидался ok", status)
	}

	noKey := envSettings()
	noKey.APIKey = ""
	degraded := NewHubReadinessChecker(NewSettingsService(noKey, nil, logger))
	if status, msg := degraded.CheckReady(); status != "degraded" {
		t.Errorf("status = %q (%s), ожидался degraded", status, msg)
	}
}
