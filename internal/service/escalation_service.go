package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/assignment-engine/internal/domain"
	"github.com/spec-kit/assignment-engine/internal/repository"
	apperrors "github.com/spec-kit/assignment-engine/pkg/util/errorutil"
)

// EscalationService hands a work item over to the escalation role of the
// unit's current step.
type EscalationService struct {
	core
}

// NewEscalationService creates the service.
func NewEscalationService(deps Dependencies) *EscalationService {
	return &EscalationService{core: newCore(deps)}
}

// EscalationResult is the closed source item and the items created for the
// escalation role.
type EscalationResult struct {
	Source  domain.WorkItemView
	Created []domain.WorkItem
}

// Escalate closes itemID as escalated and assigns the escalation role on the
// same step. Escalation happens at most once per role per work unit, and a
// role that was itself escalated cannot receive an escalation.
func (s *EscalationService) Escalate(ctx context.Context, itemID, reason string, actor *domain.Member) (result *EscalationResult, err error) {
	defer func() { s.observe("escalate", err) }()

	if actor == nil {
		return nil, apperrors.NewUnauthorized("acting user required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("escalation reason is required", nil)
	}

	var (
		created []domain.WorkItem
		target  string
	)
	err = s.run(ctx, func(ctx context.Context, repos repository.Repositories, fx *effects) error {
		unit, item, err := lockItem(ctx, repos, itemID)
		if err != nil {
			return err
		}
		if item.AssigneeID != actor.ID && !actor.Admin {
			return apperrors.NewForbidden("only the holder may escalate this work item")
		}

		var step *domain.Step
		if unit.CurrentStepID != nil {
			step, _ = unit.WorkflowSnapshot.Step(*unit.CurrentStepID)
		}
		if step == nil || step.EscalationRole == nil || *step.EscalationRole == "" {
			return apperrors.NewNotEscalatable("the current step has no escalation role",
				map[string]any{"work_unit_id": unit.ID, "step_id": unit.CurrentStepID})
		}
		target = *step.EscalationRole

		status, err := currentStatus(ctx, repos, item.ID)
		if err != nil {
			return err
		}
		switch {
		case status == domain.WorkItemEscalated:
			return apperrors.NewAlreadyEscalated(
				fmt.Sprintf("work item %s has already been escalated", item.ID),
				map[string]any{"work_item_id": item.ID})
		case status.IsTerminal():
			return apperrors.NewConflict(
				fmt.Sprintf("work item %s is already %s", item.ID, status),
				map[string]any{"work_item_id": item.ID, "status": status})
		}

		escalated, err := repos.Ledger.RoleHasStatus(ctx, unit.ID, item.Role, domain.WorkItemEscalated)
		if err != nil {
			return err
		}
		if escalated {
			return apperrors.NewAlreadyEscalated(
				fmt.Sprintf("role %s has already been escalated for work unit %s", item.Role, unit.ID),
				map[string]any{"work_unit_id": unit.ID, "role": item.Role})
		}
		escalated, err = repos.Ledger.RoleHasStatus(ctx, unit.ID, target, domain.WorkItemEscalated)
		if err != nil {
			return err
		}
		if escalated {
			return apperrors.NewAlreadyEscalated(
				fmt.Sprintf("escalation role %s has itself been escalated for work unit %s", target, unit.ID),
				map[string]any{"work_unit_id": unit.ID, "role": target})
		}

		if err := s.appendStatus(ctx, repos, fx, item, domain.WorkItemEscalated); err != nil {
			return err
		}
		now := s.now()
		notes := fmt.Sprintf("Escalated by %s: %s", displayName(actor), reason)
		if item.Notes != "" {
			notes += "\n" + item.Notes
		}
		item.Notes = notes
		item.ActedOn = &now
		if err := repos.WorkItems.Update(ctx, item); err != nil {
			return err
		}

		created, err = s.assignRole(ctx, repos, fx, assignment{
			unit:    unit,
			stepID:  item.AssignedOnStepID,
			role:    target,
			origin:  domain.OriginEscalation,
			notes:   notes,
			kind:    domain.NotificationEscalation,
			actorID: actorID(actor),
		})
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("work item escalated",
		zap.String("work_item_id", itemID),
		zap.String("actor_id", actor.ID),
		zap.String("escalation_role", target),
		zap.Int("work_items_created", len(created)))

	source, err := loadView(ctx, s.store.Repositories(), itemID)
	if err != nil {
		return nil, err
	}
	return &EscalationResult{Source: *source, Created: created}, nil
}
