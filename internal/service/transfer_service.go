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

// TransferService moves a single work item from its holder to another user.
type TransferService struct {
	core
}

// NewTransferService creates the service.
func NewTransferService(deps Dependencies) *TransferService {
	return &TransferService{core: newCore(deps)}
}

// TransferResult is the reassigned source item and its single successor.
type TransferResult struct {
	Source    domain.WorkItemView
	Successor domain.WorkItem
}

// Transfer reassigns itemID to targetID. The holder transfers as
// Transferred; an admin acting on someone else's item as Admin Transfer.
func (s *TransferService) Transfer(ctx context.Context, itemID, targetID string, actor *domain.Member, notes string) (result *TransferResult, err error) {
	defer func() { s.observe("transfer", err) }()

	if actor == nil {
		return nil, apperrors.NewUnauthorized("acting user required")
	}
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return nil, apperrors.NewValidationError("target user is required", nil)
	}
	target, err := s.directory.GetMember(ctx, targetID)
	if err != nil {
		return nil, apperrors.MapError(notFound(err, "user", targetID))
	}
	if !target.Active || (!target.HasAnyRole(s.engine.RoleSystem) && !target.Admin) {
		return nil, apperrors.NewValidationError("target user is not an active role member",
			map[string]any{"user_id": targetID})
	}
	notes = strings.TrimSpace(notes)

	var successor domain.WorkItem
	err = s.run(ctx, func(ctx context.Context, repos repository.Repositories, fx *effects) error {
		unit, item, err := lockItem(ctx, repos, itemID)
		if err != nil {
			return err
		}

		origin := domain.OriginTransferred
		if item.AssigneeID != actor.ID {
			if !actor.Admin {
				return apperrors.NewForbidden("only the holder or an admin may transfer this work item")
			}
			origin = domain.OriginAdminTransfer
		}

		status, err := currentStatus(ctx, repos, item.ID)
		if err != nil {
			return err
		}
		if status.IsTerminal() {
			return apperrors.NewConflict(
				fmt.Sprintf("work item %s is already %s", item.ID, status),
				map[string]any{"work_item_id": item.ID, "status": status})
		}
		if item.AssigneeID == target.ID {
			return apperrors.NewNoOpTransfer(
				fmt.Sprintf("%s already holds work item %s", displayName(target), item.ID),
				map[string]any{"work_item_id": item.ID, "user_id": target.ID})
		}
		if unit.Status.IsTerminal() {
			return apperrors.NewConflict(fmt.Sprintf("work unit %s is %s", unit.ID, unit.Status),
				map[string]any{"work_unit_id": unit.ID})
		}

		now := s.now()
		previousHolder := item.AssigneeID
		item.TransferredToID = &target.ID
		item.TransferredByID = actorID(actor)
		item.Notes = notes
		item.ActedOn = &now
		if err := repos.WorkItems.Update(ctx, item); err != nil {
			return err
		}
		if err := s.appendStatus(ctx, repos, fx, item, domain.WorkItemReassigned); err != nil {
			return err
		}

		successor = domain.WorkItem{
			WorkUnitID:       unit.ID,
			Role:             item.Role,
			AssigneeID:       target.ID,
			AssignedOnStepID: item.AssignedOnStepID,
			Origin:           origin,
			Notes:            notes,
			TargetResolution: item.TargetResolution,
			CreatedAt:        now,
		}
		if err := repos.WorkItems.Create(ctx, &successor); err != nil {
			return err
		}
		if err := s.appendStatus(ctx, repos, fx, &successor, domain.WorkItemNew); err != nil {
			return err
		}

		fx.notify(s.newEvent(domain.NotificationTransfer, previousHolder,
			"Work item transferred",
			fmt.Sprintf("Your %s work on ticket %s was transferred to %s by %s.",
				item.Role, unit.TicketID, displayName(target), displayName(actor)),
			item.Role, unit.ID, &item.ID, actorID(actor)))
		fx.notify(s.newEvent(domain.NotificationTransfer, target.ID,
			"Work item transferred to you",
			fmt.Sprintf("%s transferred %s work on ticket %s to you.",
				displayName(actor), item.Role, unit.TicketID),
			item.Role, unit.ID, &successor.ID, actorID(actor)))
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("work item transferred",
		zap.String("work_item_id", itemID),
		zap.String("successor_id", successor.ID),
		zap.String("target_id", target.ID),
		zap.String("actor_id", actor.ID))

	source, err := loadView(ctx, s.store.Repositories(), itemID)
	if err != nil {
		return nil, err
	}
	return &TransferResult{Source: *source, Successor: successor}, nil
}

// AdminTransferToSelf lets an admin claim an item held by someone else.
func (s *TransferService) AdminTransferToSelf(ctx context.Context, itemID string, actor *domain.Member, notes string) (*TransferResult, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("acting user required")
	}
	if !actor.Admin {
		return nil, apperrors.NewForbidden("only admins may claim work items")
	}
	return s.Transfer(ctx, itemID, actor.ID, actor, notes)
}
