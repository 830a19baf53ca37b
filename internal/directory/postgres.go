package directory

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

// Postgres reads the directory tables that live next to the engine schema.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres instantiates the directory.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) GetWorkflow(ctx context.Context, id string) (*domain.Workflow, error) {
	const query = `SELECT id, name, version FROM workflows WHERE id=$1`

	var wf domain.Workflow
	if err := p.pool.QueryRow(ctx, query, id).Scan(&wf.ID, &wf.Name, &wf.Version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	const stepsQuery = `
        SELECT id, workflow_id, name, role, escalation_role, position
        FROM workflow_steps WHERE workflow_id=$1 ORDER BY position ASC, id ASC`
	rows, err := p.pool.Query(ctx, stepsQuery, id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var step domain.Step
		if err := rows.Scan(
			&step.ID,
			&step.WorkflowID,
			&step.Name,
			&step.Role,
			&step.EscalationRole,
			&step.Position,
		); err != nil {
			rows.Close()
			return nil, err
		}
		wf.Steps = append(wf.Steps, step)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const transitionsQuery = `
        SELECT from_step_id, to_step_id FROM workflow_transitions WHERE workflow_id=$1`
	rows, err = p.pool.Query(ctx, transitionsQuery, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var t domain.Transition
		if err := rows.Scan(&t.FromStepID, &t.ToStepID); err != nil {
			return nil, err
		}
		wf.Transitions = append(wf.Transitions, t)
	}
	return &wf, rows.Err()
}

func (p *Postgres) GetMember(ctx context.Context, id string) (*domain.Member, error) {
	const query = `
        SELECT id, name, email, is_admin, active_flag, created_at, updated_at
        FROM directory_users WHERE id=$1`

	var member domain.Member
	if err := p.pool.QueryRow(ctx, query, id).Scan(
		&member.ID,
		&member.Name,
		&member.Email,
		&member.Admin,
		&member.Active,
		&member.CreatedAt,
		&member.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	const rolesQuery = `SELECT system_name, role FROM role_memberships WHERE user_id=$1 ORDER BY system_name, role`
	rows, err := p.pool.Query(ctx, rolesQuery, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var grant domain.RoleGrant
		if err := rows.Scan(&grant.System, &grant.Role); err != nil {
			return nil, err
		}
		member.Roles = append(member.Roles, grant)
	}
	return &member, rows.Err()
}

func (p *Postgres) ActiveMembers(ctx context.Context, system, role string) ([]domain.Member, error) {
	const query = `
        SELECT u.id, u.name, u.email, u.is_admin, u.active_flag, u.created_at, u.updated_at
        FROM directory_users u
        JOIN role_memberships m ON m.user_id = u.id
        WHERE m.system_name=$1 AND m.role=$2 AND u.active_flag = TRUE
        ORDER BY u.id ASC`
	rows, err := p.pool.Query(ctx, query, system, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Member
	for rows.Next() {
		var member domain.Member
		if err := rows.Scan(
			&member.ID,
			&member.Name,
			&member.Email,
			&member.Admin,
			&member.Active,
			&member.CreatedAt,
			&member.UpdatedAt,
		); err != nil {
			return nil, err
		}
		member.Roles = []domain.RoleGrant{{System: system, Role: role}}
		result = append(result, member)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (p *Postgres) TicketExists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM tickets WHERE id=$1)`
	var exists bool
	if err := p.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
