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

// OwnershipService rotates work unit ownership across coordinators.
type OwnershipService struct {
	core
}

// NewOwnershipService creates the service.
func NewOwnershipService(deps Dependencies) *OwnershipService {
	return &OwnershipService{core: newCore(deps)}
}

// Next returns the next coordinator of the rotation and advances its pointer.
func (s *OwnershipService) Next(ctx context.Context, key string, exclude *string) (member *domain.Member, err error) {
	defer func() { s.observe("next_owner", err) }()

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, apperrors.NewValidationError("rotation key is required", nil)
	}
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		member, err = s.rotate(ctx, repos, key, exclude)
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("rotation advanced",
		zap.String("rotation_key", key),
		zap.String("selected_id", member.ID))
	return member, nil
}

// EscalateOwner hands ownership to the next coordinator other than the
// current owner and records the change.
func (s *OwnershipService) EscalateOwner(ctx context.Context, unitID string, actor *domain.Member, reason string) (change *domain.OwnershipChange, err error) {
	defer func() { s.observe("escalate_owner", err) }()

	if actor == nil {
		return nil, apperrors.NewUnauthorized("acting user required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("escalation reason is required", nil)
	}
	err = s.run(ctx, func(ctx context.Context, repos repository.Repositories, fx *effects) error {
		unit, err := repos.WorkUnits.GetForUpdate(ctx, unitID)
		if err != nil {
			return notFound(err, "work unit", unitID)
		}
		if unit.OwnerID == nil {
			return apperrors.NewConflict(fmt.Sprintf("work unit %s has no owner", unit.ID),
				map[string]any{"work_unit_id": unit.ID})
		}
		if *unit.OwnerID != actor.ID && !actor.Admin {
			return apperrors.NewForbidden("only the current owner or an admin may escalate ownership")
		}
		if unit.Status.IsTerminal() {
			return apperrors.NewConflict(fmt.Sprintf("work unit %s is %s", unit.ID, unit.Status),
				map[string]any{"work_unit_id": unit.ID})
		}
		next, err := s.rotate(ctx, repos, s.engine.OwnerEscalationRotationKey, unit.OwnerID)
		if err != nil {
			return err
		}
		change, err = s.changeOwner(ctx, repos, fx, unit, next, actorID(actor),
			fmt.Sprintf("Escalated by %s: %s", displayName(actor), reason))
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("ownership escalated",
		zap.String("work_unit_id", unitID),
		zap.String("new_owner_id", change.NewOwnerID),
		zap.String("actor_id", actor.ID))
	return change, nil
}

// TransferOwner sets a named coordinator as owner, bypassing rotation.
func (s *OwnershipService) TransferOwner(ctx context.Context, unitID, targetID string, actor *domain.Member, reason string) (change *domain.OwnershipChange, err error) {
	defer func() { s.observe("transfer_owner", err) }()

	if actor == nil {
		return nil, apperrors.NewUnauthorized("acting user required")
	}
	if !actor.Admin {
		return nil, apperrors.NewForbidden("only admins may transfer ownership")
	}
	target, err := s.directory.GetMember(ctx, targetID)
	if err != nil {
		return nil, apperrors.MapError(notFound(err, "user", targetID))
	}
	if !target.Active || !target.HasRole(s.engine.RoleSystem, s.engine.CoordinatorRole) {
		return nil, apperrors.NewNoEligibleCoordinator(
			fmt.Sprintf("%s is not an active %s", displayName(target), s.engine.CoordinatorRole),
			map[string]any{"user_id": targetID})
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "administrative transfer"
	}

	err = s.run(ctx, func(ctx context.Context, repos repository.Repositories, fx *effects) error {
		unit, err := repos.WorkUnits.GetForUpdate(ctx, unitID)
		if err != nil {
			return notFound(err, "work unit", unitID)
		}
		if unit.Status.IsTerminal() {
			return apperrors.NewConflict(fmt.Sprintf("work unit %s is %s", unit.ID, unit.Status),
				map[string]any{"work_unit_id": unit.ID})
		}
		if unit.OwnerID != nil && *unit.OwnerID == target.ID {
			return apperrors.NewNoOpTransfer(
				fmt.Sprintf("%s already owns work unit %s", displayName(target), unit.ID),
				map[string]any{"work_unit_id": unit.ID, "user_id": target.ID})
		}
		change, err = s.changeOwner(ctx, repos, fx, unit, target, actorID(actor), reason)
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("ownership transferred",
		zap.String("work_unit_id", unitID),
		zap.String("new_owner_id", target.ID),
		zap.String("actor_id", actor.ID))
	return change, nil
}

// GetOwner returns the unit's current owner, or nil when it has none.
func (s *OwnershipService) GetOwner(ctx context.Context, unitID string) (*domain.Member, error) {
	unit, err := s.store.Repositories().WorkUnits.GetByID(ctx, unitID)
	if err != nil {
		return nil, apperrors.MapError(notFound(err, "work unit", unitID))
	}
	if unit.OwnerID == nil {
		return nil, nil
	}
	owner, err := s.directory.GetMember(ctx, *unit.OwnerID)
	if err != nil {
		return nil, apperrors.MapError(notFound(err, "user", *unit.OwnerID))
	}
	return owner, nil
}

// History lists ownership changes of the unit, oldest first.
func (s *OwnershipService) History(ctx context.Context, unitID string) ([]domain.OwnershipChange, error) {
	repos := s.store.Repositories()
	if _, err := repos.WorkUnits.GetByID(ctx, unitID); err != nil {
		return nil, apperrors.MapError(notFound(err, "work unit", unitID))
	}
	changes, err := repos.Ownership.ListByWorkUnit(ctx, unitID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return changes, nil
}
