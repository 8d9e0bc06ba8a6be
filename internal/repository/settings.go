package repository

import (
	"context"
	"fmt"
)

// SettingsRepository — чтение переопределений настроек Hub.
// Таблица заполняется хост-системой; сервис её только читает.
type SettingsRepository interface {
	// Get возвращает все настройки (name → value).
	Get(ctx context.Context) (map[string]string, error)
}

type settingsRepo struct {
	db DBTX
}

// NewSettingsRepository создаёт репозиторий настроек.
func NewSettingsRepository(db DBTX) SettingsRepository {
	return &settingsRepo{db: db}
}

// Get возвращает все настройки из lc_settings.
func (r *settingsRepo) Get(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.Query(ctx, `SELECT name, value FROM lc_settings`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения lc_settings: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("ошибка сканирования lc_settings: %w", err)
		}
		result[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации lc_settings: %w", err)
	}
	return result, nil
}
