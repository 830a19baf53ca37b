package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

type workUnitRepository struct {
	q querier
}

const workUnitColumns = `id, ticket_id, workflow_id, workflow_version, workflow_snapshot, current_step_id,
               status, target_resolution, resolved_at, owner_id, created_at, updated_at`

func (r *workUnitRepository) Create(ctx context.Context, unit *domain.WorkUnit) error {
	if unit.ID == "" {
		unit.ID = uuid.NewString()
	}
	snapshot, err := marshalSnapshot(unit.WorkflowSnapshot)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO work_units (id, ticket_id, workflow_id, workflow_version, workflow_snapshot, current_step_id,
            status, target_resolution, resolved_at, owner_id, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err = r.q.Exec(ctx, query,
		unit.ID,
		unit.TicketID,
		unit.WorkflowID,
		unit.WorkflowVersion,
		snapshot,
		unit.CurrentStepID,
		unit.Status,
		unit.TargetResolution,
		unit.ResolvedAt,
		unit.OwnerID,
		unit.CreatedAt,
		unit.UpdatedAt,
	)
	return err
}

// Update never touches target_resolution: it is immutable once the unit exists.
func (r *workUnitRepository) Update(ctx context.Context, unit *domain.WorkUnit) error {
	const query = `
        UPDATE work_units SET current_step_id=$1, status=$2, resolved_at=$3, owner_id=$4, updated_at=$5
        WHERE id=$6`
	cmd, err := r.q.Exec(ctx, query,
		unit.CurrentStepID,
		unit.Status,
		unit.ResolvedAt,
		unit.OwnerID,
		unit.UpdatedAt,
		unit.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *workUnitRepository) GetByID(ctx context.Context, id string) (*domain.WorkUnit, error) {
	query := `SELECT ` + workUnitColumns + ` FROM work_units WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *workUnitRepository) GetForUpdate(ctx context.Context, id string) (*domain.WorkUnit, error) {
	query := `SELECT ` + workUnitColumns + ` FROM work_units WHERE id=$1 FOR UPDATE`
	return r.fetchSingle(ctx, query, id)
}

func (r *workUnitRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.WorkUnit, error) {
	var (
		unit     domain.WorkUnit
		snapshot []byte
	)
	if err := r.q.QueryRow(ctx, query, arg).Scan(
		&unit.ID,
		&unit.TicketID,
		&unit.WorkflowID,
		&unit.WorkflowVersion,
		&snapshot,
		&unit.CurrentStepID,
		&unit.Status,
		&unit.TargetResolution,
		&unit.ResolvedAt,
		&unit.OwnerID,
		&unit.CreatedAt,
		&unit.UpdatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	if len(snapshot) > 0 {
		var wf domain.Workflow
		if err := json.Unmarshal(snapshot, &wf); err != nil {
			return nil, fmt.Errorf("decode workflow snapshot: %w", err)
		}
		unit.WorkflowSnapshot = &wf
	}
	return &unit, nil
}

func marshalSnapshot(wf *domain.Workflow) ([]byte, error) {
	if wf == nil {
		return nil, nil
	}
	raw, err := json.Marshal(wf)
	if err != nil {
		return nil, fmt.Errorf("encode workflow snapshot: %w", err)
	}
	return raw, nil
}
