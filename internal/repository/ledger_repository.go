package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

type ledgerRepository struct {
	q querier
}

func (r *ledgerRepository) Append(ctx context.Context, entry *domain.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO assignment_ledger (id, work_item_id, status, created_at)
        VALUES ($1,$2,$3,$4)
        RETURNING seq`
	return r.q.QueryRow(ctx, query,
		entry.ID,
		entry.WorkItemID,
		entry.Status,
		entry.CreatedAt,
	).Scan(&entry.Seq)
}

func (r *ledgerRepository) ListByWorkItem(ctx context.Context, workItemID string) ([]domain.LedgerEntry, error) {
	const query = `
        SELECT id, seq, work_item_id, status, created_at
        FROM assignment_ledger WHERE work_item_id=$1 ORDER BY created_at ASC, seq ASC`
	rows, err := r.q.Query(ctx, query, workItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.LedgerEntry
	for rows.Next() {
		var entry domain.LedgerEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.Seq,
			&entry.WorkItemID,
			&entry.Status,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *ledgerRepository) LatestStatuses(ctx context.Context, workItemIDs []string) (map[string]domain.WorkItemStatus, error) {
	result := make(map[string]domain.WorkItemStatus, len(workItemIDs))
	for _, id := range workItemIDs {
		result[id] = domain.WorkItemNew
	}
	if len(workItemIDs) == 0 {
		return result, nil
	}
	const query = `
        SELECT DISTINCT ON (work_item_id) work_item_id, status
        FROM assignment_ledger WHERE work_item_id = ANY($1)
        ORDER BY work_item_id, created_at DESC, seq DESC`
	rows, err := r.q.Query(ctx, query, workItemIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id     string
			status domain.WorkItemStatus
		)
		if err := rows.Scan(&id, &status); err != nil {
			return nil, err
		}
		result[id] = status
	}
	return result, rows.Err()
}

func (r *ledgerRepository) RoleHasStatus(ctx context.Context, workUnitID, role string, status domain.WorkItemStatus) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM assignment_ledger l
            JOIN work_items wi ON wi.id = l.work_item_id
            WHERE wi.work_unit_id=$1 AND wi.role=$2 AND l.status=$3)`
	var exists bool
	if err := r.q.QueryRow(ctx, query, workUnitID, role, status).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
