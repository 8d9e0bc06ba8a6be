package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/tklabels-module/internal/domain/model"
)

// EntityRepository — чтение сущностей CMS и значений их полей.
type EntityRepository interface {
	// GetByID возвращает сущность с полями или ErrNotFound.
	GetByID(ctx context.Context, entityType, entityID string) (*model.Node, error)
}

type entityRepo struct {
	db DBTX
}

// NewEntityRepository создаёт репозиторий сущностей.
func NewEntityRepository(db DBTX) EntityRepository {
	return &entityRepo{db: db}
}

// GetByID загружает сущность и первое значение (delta = 0) каждого поля.
func (r *entityRepo) GetByID(ctx context.Context, entityType, entityID string) (*model.Node, error) {
	node := &model.Node{ID: entityID, Type: entityType, Fields: make(map[string]string)}

	err := r.db.QueryRow(ctx,
		`SELECT bundle FROM content_entities WHERE entity_type = $1 AND entity_id = $2`,
		entityType, entityID,
	).Scan(&node.BundleName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения сущности %s/%s: %w", entityType, entityID, err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT ON (field_name) field_name, COALESCE(value, '')
		FROM content_entity_fields
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY field_name, delta`,
		entityType, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения полей сущности %s/%s: %w", entityType, entityID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("ошибка сканирования поля: %w", err)
		}
		node.Fields[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации полей: %w", err)
	}

	return node, nil
}
