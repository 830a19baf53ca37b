package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

type workItemRepository struct {
	q querier
}

const workItemColumns = `id, work_unit_id, role, assignee_id, assigned_on_step_id, origin, notes,
               transferred_to_id, transferred_by_id, target_resolution, acted_on, created_at`

var terminalStatuses = []string{
	string(domain.WorkItemResolved),
	string(domain.WorkItemReassigned),
	string(domain.WorkItemEscalated),
	string(domain.WorkItemBreached),
}

func (r *workItemRepository) Create(ctx context.Context, item *domain.WorkItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO work_items (id, work_unit_id, role, assignee_id, assigned_on_step_id, origin, notes,
            transferred_to_id, transferred_by_id, target_resolution, acted_on, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := r.q.Exec(ctx, query,
		item.ID,
		item.WorkUnitID,
		item.Role,
		item.AssigneeID,
		item.AssignedOnStepID,
		item.Origin,
		item.Notes,
		item.TransferredToID,
		item.TransferredByID,
		item.TargetResolution,
		item.ActedOn,
		item.CreatedAt,
	)
	return err
}

func (r *workItemRepository) Update(ctx context.Context, item *domain.WorkItem) error {
	const query = `
        UPDATE work_items SET notes=$1, transferred_to_id=$2, transferred_by_id=$3, acted_on=$4
        WHERE id=$5`
	cmd, err := r.q.Exec(ctx, query,
		item.Notes,
		item.TransferredToID,
		item.TransferredByID,
		item.ActedOn,
		item.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *workItemRepository) GetByID(ctx context.Context, id string) (*domain.WorkItem, error) {
	query := `SELECT ` + workItemColumns + ` FROM work_items WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *workItemRepository) GetForUpdate(ctx context.Context, id string) (*domain.WorkItem, error) {
	query := `SELECT ` + workItemColumns + ` FROM work_items WHERE id=$1 FOR UPDATE`
	return r.fetchSingle(ctx, query, id)
}

func (r *workItemRepository) ListByWorkUnit(ctx context.Context, workUnitID string) ([]domain.WorkItem, error) {
	query := `SELECT ` + workItemColumns + ` FROM work_items WHERE work_unit_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.q.Query(ctx, query, workUnitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWorkItems(rows)
}

// ListOpenByAssignee relies on terminal entries being final: an item is open
// exactly when it has no terminal ledger entry.
func (r *workItemRepository) ListOpenByAssignee(ctx context.Context, assigneeID string) ([]domain.WorkItem, error) {
	query := `SELECT ` + workItemColumns + ` FROM work_items wi
        WHERE wi.assignee_id=$1
          AND NOT EXISTS (
              SELECT 1 FROM assignment_ledger l
              WHERE l.work_item_id = wi.id AND l.status = ANY($2))
        ORDER BY wi.created_at ASC, wi.id ASC`
	rows, err := r.q.Query(ctx, query, assigneeID, terminalStatuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWorkItems(rows)
}

func (r *workItemRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.WorkItem, error) {
	rows, err := r.q.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items, err := scanWorkItems(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return &items[0], nil
}

func scanWorkItems(rows pgx.Rows) ([]domain.WorkItem, error) {
	var result []domain.WorkItem
	for rows.Next() {
		var item domain.WorkItem
		if err := rows.Scan(
			&item.ID,
			&item.WorkUnitID,
			&item.Role,
			&item.AssigneeID,
			&item.AssignedOnStepID,
			&item.Origin,
			&item.Notes,
			&item.TransferredToID,
			&item.TransferredByID,
			&item.TargetResolution,
			&item.ActedOn,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}
