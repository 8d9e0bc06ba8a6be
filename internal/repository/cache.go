package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/tklabels-module/internal/domain/model"
)

// CacheRepository — персистентный кэш проектов в таблице cache_local_contexts.
// Запись считается действительной, пока expire > now; инвалидация сдвигает
// expire в текущий момент, физическое удаление выполняет DeleteExpired.
type CacheRepository struct {
	db  DBTX
	now func() time.Time
}

// NewCacheRepository создаёт репозиторий кэша.
func NewCacheRepository(db DBTX) *CacheRepository {
	return &CacheRepository{db: db, now: time.Now}
}

// Get возвращает действительную запись; (nil, false, nil) при промахе.
func (r *CacheRepository) Get(ctx context.Context, key string) (*model.ProjectRecord, bool, error) {
	var data []byte
	err := r.db.QueryRow(ctx,
		`SELECT data FROM cache_local_contexts WHERE cid = $1 AND expire > $2`,
		key, r.now(),
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("ошибка чтения кэша %s: %w", key, err)
	}

	record := &model.ProjectRecord{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, false, fmt.Errorf("ошибка декодирования кэша %s: %w", key, err)
	}
	if record.TKLabels == nil {
		record.TKLabels = []model.Label{}
	}
	return record, true, nil
}

// Set создаёт или перезаписывает запись (последняя запись побеждает).
func (r *CacheRepository) Set(ctx context.Context, key string, record *model.ProjectRecord, ttl time.Duration, tags []string) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("ошибка кодирования записи кэша %s: %w", key, err)
	}
	if tags == nil {
		tags = []string{}
	}

	now := r.now()
	_, err = r.db.Exec(ctx, `
		INSERT INTO cache_local_contexts (cid, data, expire, created, tags)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cid) DO UPDATE
		SET data = EXCLUDED.data,
			expire = EXCLUDED.expire,
			created = EXCLUDED.created,
			tags = EXCLUDED.tags`,
		key, data, now.Add(ttl), now, tags,
	)
	if err != nil {
		return fmt.Errorf("ошибка записи кэша %s: %w", key, err)
	}
	return nil
}

// Delete удаляет запись.
func (r *CacheRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM cache_local_contexts WHERE cid = $1`, key); err != nil {
		return fmt.Errorf("ошибка удаления кэша %s: %w", key, err)
	}
	return nil
}

// Invalidate помечает запись истёкшей.
func (r *CacheRepository) Invalidate(ctx context.Context, key string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE cache_local_contexts SET expire = $2 WHERE cid = $1 AND expire > $2`,
		key, r.now(),
	)
	if err != nil {
		return fmt.Errorf("ошибка инвалидации кэша %s: %w", key, err)
	}
	return nil
}

// InvalidateTags помечает истёкшими все записи с любым из тегов.
func (r *CacheRepository) InvalidateTags(ctx context.Context, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx,
		`UPDATE cache_local_contexts SET expire = $2 WHERE tags && $1 AND expire > $2`,
		tags, r.now(),
	)
	if err != nil {
		return fmt.Errorf("ошибка инвалидации кэша по тегам %v: %w", tags, err)
	}
	return nil
}

// DeleteExpired физически удаляет истёкшие записи. Возвращает количество удалённых.
func (r *CacheRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM cache_local_contexts WHERE expire <= $1`, r.now())
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки кэша: %w", err)
	}
	return tag.RowsAffected(), nil
}
