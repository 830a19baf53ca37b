package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/assignment-engine/internal/domain"
	"github.com/spec-kit/assignment-engine/internal/repository"
	apperrors "github.com/spec-kit/assignment-engine/pkg/util/errorutil"
)

// AssignmentService drives work units through their workflow and handles the
// per-item lifecycle commands that do not create successors.
type AssignmentService struct {
	core
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps Dependencies) *AssignmentService {
	return &AssignmentService{core: newCore(deps)}
}

// StartWorkUnitInput describes a new work unit.
type StartWorkUnitInput struct {
	TicketID         string
	WorkflowID       string
	InitialStepID    string
	TargetResolution *time.Time
}

// WorkUnitDetail is a work unit with its items and their derived statuses.
type WorkUnitDetail struct {
	Unit  domain.WorkUnit
	Items []domain.WorkItemView
}

// StartWorkUnit freezes the workflow on a new unit for the ticket, assigns the
// initial owner and advances to the initial step.
func (s *AssignmentService) StartWorkUnit(ctx context.Context, input StartWorkUnitInput, actor *domain.Member) (detail *WorkUnitDetail, err error) {
	defer func() { s.observe("start_work_unit", err) }()

	input.TicketID = strings.TrimSpace(input.TicketID)
	input.WorkflowID = strings.TrimSpace(input.WorkflowID)
	input.InitialStepID = strings.TrimSpace(input.InitialStepID)
	if input.TicketID == "" || input.WorkflowID == "" || input.InitialStepID == "" {
		return nil, apperrors.NewValidationError("ticket_id, workflow_id and initial_step_id are required", nil)
	}
	if actor != nil && !actor.Admin && !actor.HasAnyRole(s.engine.RoleSystem) {
		return nil, apperrors.NewForbidden("only role members may start work units")
	}

	exists, err := s.tickets.TicketExists(ctx, input.TicketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !exists {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": input.TicketID})
	}
	workflow, err := s.workflows.GetWorkflow(ctx, input.WorkflowID)
	if err != nil {
		return nil, apperrors.MapError(notFound(err, "workflow", input.WorkflowID))
	}
	step, ok := workflow.Step(input.InitialStepID)
	if !ok {
		return nil, apperrors.NewValidationError("initial step does not belong to the workflow",
			map[string]any{"workflow_id": workflow.ID, "step_id": input.InitialStepID})
	}

	var unitID string
	err = s.run(ctx, func(ctx context.Context, repos repository.Repositories, fx *effects) error {
		now := s.now()
		unit := &domain.WorkUnit{
			TicketID:         input.TicketID,
			WorkflowID:       workflow.ID,
			WorkflowVersion:  workflow.Version,
			WorkflowSnapshot: workflow,
			Status:           domain.WorkUnitPending,
			TargetResolution: input.TargetResolution,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := repos.WorkUnits.Create(ctx, unit); err != nil {
			return err
		}
		unitID = unit.ID

		if s.engine.CoordinatorRole != "" {
			owner, err := s.rotate(ctx, repos, s.engine.OwnerRotationKey, nil)
			if err != nil {
				return err
			}
			if _, err := s.changeOwner(ctx, repos, fx, unit, owner, actorID(actor), "initial assignment"); err != nil {
				return err
			}
		}
		_, err := s.advanceTo(ctx, repos, fx, unit, step)
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("work unit started",
		zap.String("work_unit_id", unitID),
		zap.String("ticket_id", input.TicketID),
		zap.String("workflow_id", workflow.ID),
		zap.String("step_id", step.ID))
	return s.detail(ctx, unitID)
}

// Advance moves the unit to stepID and assigns the step's role. A nil actor
// is the system; otherwise the actor must be the unit owner or an admin.
func (s *AssignmentService) Advance(ctx context.Context, unitID, stepID string, actor *domain.Member) (detail *WorkUnitDetail, err error) {
	defer func() { s.observe("advance", err) }()

	if strings.TrimSpace(stepID) == "" {
		return nil, apperrors.NewValidationError("step_id is required", nil)
	}
	var created []domain.WorkItem
	err = s.run(ctx, func(ctx context.Context, repos repository.Repositories, fx *effects) error {
		unit, err := repos.WorkUnits.GetForUpdate(ctx, unitID)
		if err != nil {
			return notFound(err, "work unit", unitID)
		}
		if err := authorizeUnit(unit, actor); err != nil {
			return err
		}
		if unit.Status.IsTerminal() {
			return apperrors.NewConflict(fmt.Sprintf("work unit %s is %s", unit.ID, unit.Status),
				map[string]any{"work_unit_id": unit.ID})
		}
		step, ok := unit.WorkflowSnapshot.Step(stepID)
		if !ok {
			return apperrors.NewValidationError("step does not belong to the work unit's workflow",
				map[string]any{"work_unit_id": unit.ID, "step_id": stepID})
		}
		if unit.CurrentStepID != nil && *unit.CurrentStepID != step.ID &&
			!unit.WorkflowSnapshot.CanTransition(*unit.CurrentStepID, step.ID) {
			return apperrors.NewValidationError(
				fmt.Sprintf("workflow has no transition from %s to %s", *unit.CurrentStepID, step.ID),
				map[string]any{"from_step_id": *unit.CurrentStepID, "to_step_id": step.ID})
		}
		created, err = s.advanceTo(ctx, repos, fx, unit, step)
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("work unit advanced",
		zap.String("work_unit_id", unitID),
		zap.String("step_id", stepID),
		zap.Int("work_items_created", len(created)))
	return s.detail(ctx, unitID)
}

func (s *AssignmentService) advanceTo(ctx context.Context, repos repository.Repositories, fx *effects, unit *domain.WorkUnit, step *domain.Step) ([]domain.WorkItem, error) {
	created, err := s.assignRole(ctx, repos, fx, assignment{
		unit:   unit,
		stepID: step.ID,
		role:   step.Role,
		origin: domain.OriginSystem,
		kind:   domain.NotificationAssignment,
	})
	if err != nil {
		return nil, err
	}
	stepID := step.ID
	unit.CurrentStepID = &stepID
	if unit.Status == domain.WorkUnitPending {
		unit.Status = domain.WorkUnitInProgress
	}
	unit.UpdatedAt = s.now()
	if err := repos.WorkUnits.Update(ctx, unit); err != nil {
		return nil, err
	}
	return created, nil
}

// SetWorkUnitStatus changes the unit's lifecycle status. Terminal units refuse
// every change.
func (s *AssignmentService) SetWorkUnitStatus(ctx context.Context, unitID string, status domain.WorkUnitStatus, actor *domain.Member) (unit *domain.WorkUnit, err error) {
	defer func() { s.observe("set_work_unit_status", err) }()

	if !status.Valid() {
		return nil, apperrors.NewValidationError("unknown work unit status", map[string]any{"status": status})
	}
	err = s.run(ctx, func(ctx context.Context, repos repository.Repositories, fx *effects) error {
		current, err := repos.WorkUnits.GetForUpdate(ctx, unitID)
		if err != nil {
			return notFound(err, "work unit", unitID)
		}
		if err := authorizeUnit(current, actor); err != nil {
			return err
		}
		if current.Status.IsTerminal() {
			return apperrors.NewConflict(fmt.Sprintf("work unit %s is already %s", current.ID, current.Status),
				map[string]any{"work_unit_id": current.ID})
		}
		now := s.now()
		current.Status = status
		if status == domain.WorkUnitCompleted {
			current.ResolvedAt = &now
		}
		current.UpdatedAt = now
		if err := repos.WorkUnits.Update(ctx, current); err != nil {
			return err
		}
		unit = current
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("work unit status changed",
		zap.String("work_unit_id", unitID),
		zap.String("status", string(status)))
	return unit, nil
}

// Resolve records the holder's action on the item.
func (s *AssignmentService) Resolve(ctx context.Context, itemID string, actor *domain.Member, notes string) (view *domain.WorkItemView, err error) {
	defer func() { s.observe("resolve", err) }()

	if actor == nil {
		return nil, apperrors.NewUnauthorized("acting user required")
	}
	err = s.run(ctx, func(ctx context.Context, repos repository.Repositories, fx *effects) error {
		_, item, err := lockItem(ctx, repos, itemID)
		if err != nil {
			return err
		}
		if item.AssigneeID != actor.ID && !actor.Admin {
			return apperrors.NewForbidden("only the holder may resolve this work item")
		}
		if err := s.appendStatus(ctx, repos, fx, item, domain.WorkItemResolved); err != nil {
			return err
		}
		now := s.now()
		item.ActedOn = &now
		if notes = strings.TrimSpace(notes); notes != "" {
			item.Notes = notes
		}
		return repos.WorkItems.Update(ctx, item)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("work item resolved",
		zap.String("work_item_id", itemID),
		zap.String("actor_id", actor.ID))
	return loadView(ctx, s.store.Repositories(), itemID)
}

// MarkBreached appends the breached status reported by the SLA monitor.
func (s *AssignmentService) MarkBreached(ctx context.Context, itemID string) (view *domain.WorkItemView, err error) {
	defer func() { s.observe("mark_breached", err) }()

	err = s.run(ctx, func(ctx context.Context, repos repository.Repositories, fx *effects) error {
		_, item, err := lockItem(ctx, repos, itemID)
		if err != nil {
			return err
		}
		return s.appendStatus(ctx, repos, fx, item, domain.WorkItemBreached)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("work item breached", zap.String("work_item_id", itemID))
	return loadView(ctx, s.store.Repositories(), itemID)
}

func (s *AssignmentService) detail(ctx context.Context, unitID string) (*WorkUnitDetail, error) {
	detail, err := loadDetail(ctx, s.store.Repositories(), unitID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return detail, nil
}

// authorizeUnit admits the system (nil actor), admins and the unit owner.
func authorizeUnit(unit *domain.WorkUnit, actor *domain.Member) error {
	if actor == nil || actor.Admin {
		return nil
	}
	if unit.OwnerID != nil && *unit.OwnerID == actor.ID {
		return nil
	}
	return apperrors.NewForbidden("only the work unit owner or an admin may do this")
}

func loadView(ctx context.Context, repos repository.Repositories, itemID string) (*domain.WorkItemView, error) {
	item, err := repos.WorkItems.GetByID(ctx, itemID)
	if err != nil {
		return nil, apperrors.MapError(notFound(err, "work item", itemID))
	}
	history, err := repos.Ledger.ListByWorkItem(ctx, itemID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &domain.WorkItemView{
		Item:    *item,
		Status:  domain.CurrentStatus(history),
		History: history,
	}, nil
}

func loadDetail(ctx context.Context, repos repository.Repositories, unitID string) (*WorkUnitDetail, error) {
	unit, err := repos.WorkUnits.GetByID(ctx, unitID)
	if err != nil {
		return nil, notFound(err, "work unit", unitID)
	}
	items, err := repos.WorkItems.ListByWorkUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	statuses, err := repos.Ledger.LatestStatuses(ctx, ids)
	if err != nil {
		return nil, err
	}
	detail := &WorkUnitDetail{Unit: *unit}
	for _, item := range items {
		detail.Items = append(detail.Items, domain.WorkItemView{Item: item, Status: statuses[item.ID]})
	}
	return detail, nil
}
