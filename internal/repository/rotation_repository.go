package repository

import (
	"context"
	"time"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

type rotationRepository struct {
	q querier
}

func (r *rotationRepository) Lock(ctx context.Context, key string) (*domain.RotationPointer, error) {
	const insert = `
        INSERT INTO rotation_pointers (rotation_key, current_index, updated_at)
        VALUES ($1, 0, NOW())
        ON CONFLICT (rotation_key) DO NOTHING`
	if _, err := r.q.Exec(ctx, insert, key); err != nil {
		return nil, err
	}
	const query = `
        SELECT rotation_key, current_index, updated_at
        FROM rotation_pointers WHERE rotation_key=$1 FOR UPDATE`
	var pointer domain.RotationPointer
	if err := r.q.QueryRow(ctx, query, key).Scan(&pointer.Key, &pointer.Index, &pointer.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &pointer, nil
}

func (r *rotationRepository) Save(ctx context.Context, pointer *domain.RotationPointer) error {
	if pointer.UpdatedAt.IsZero() {
		pointer.UpdatedAt = time.Now().UTC()
	}
	const query = `
        UPDATE rotation_pointers SET current_index=$1, updated_at=$2
        WHERE rotation_key=$3`
	cmd, err := r.q.Exec(ctx, query, pointer.Index, pointer.UpdatedAt, pointer.Key)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
