package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

type ownershipChangeRepository struct {
	q querier
}

func (r *ownershipChangeRepository) Create(ctx context.Context, change *domain.OwnershipChange) error {
	if change.ID == "" {
		change.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO ownership_changes (id, work_unit_id, old_owner_id, new_owner_id, changed_by_id, reason, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.q.Exec(ctx, query,
		change.ID,
		change.WorkUnitID,
		change.OldOwnerID,
		change.NewOwnerID,
		change.ChangedByID,
		change.Reason,
		change.CreatedAt,
	)
	return err
}

func (r *ownershipChangeRepository) ListByWorkUnit(ctx context.Context, workUnitID string) ([]domain.OwnershipChange, error) {
	const query = `
        SELECT id, work_unit_id, old_owner_id, new_owner_id, changed_by_id, reason, created_at
        FROM ownership_changes WHERE work_unit_id=$1 ORDER BY created_at ASC`
	rows, err := r.q.Query(ctx, query, workUnitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.OwnershipChange
	for rows.Next() {
		var change domain.OwnershipChange
		if err := rows.Scan(
			&change.ID,
			&change.WorkUnitID,
			&change.OldOwnerID,
			&change.NewOwnerID,
			&change.ChangedByID,
			&change.Reason,
			&change.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, change)
	}
	return result, rows.Err()
}
