package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/assignment-engine/internal/config"
	"github.com/spec-kit/assignment-engine/internal/directory"
	"github.com/spec-kit/assignment-engine/internal/domain"
	"github.com/spec-kit/assignment-engine/internal/events"
	"github.com/spec-kit/assignment-engine/internal/observability"
	"github.com/spec-kit/assignment-engine/internal/repository"
	apperrors "github.com/spec-kit/assignment-engine/pkg/util/errorutil"
)

// Dependencies bundles collaborators shared by the engine services.
type Dependencies struct {
	Store     repository.Store
	Workflows directory.WorkflowCatalog
	Directory directory.RoleDirectory
	Tickets   directory.TicketLookup
	Notifier  *NotificationService
	Cache     *StatusCache
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Engine    config.EngineConfig
	Now       func() time.Time
}

// core carries the helpers every engine command needs.
type core struct {
	store     repository.Store
	workflows directory.WorkflowCatalog
	directory directory.RoleDirectory
	tickets   directory.TicketLookup
	notifier  *NotificationService
	cache     *StatusCache
	logger    *zap.Logger
	metrics   *observability.Metrics
	engine    config.EngineConfig
	clock     func() time.Time
}

func newCore(deps Dependencies) core {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Now
	if clock == nil {
		clock = time.Now
	}
	return core{
		store:     deps.Store,
		workflows: deps.Workflows,
		directory: deps.Directory,
		tickets:   deps.Tickets,
		notifier:  deps.Notifier,
		cache:     deps.Cache,
		logger:    logger,
		metrics:   deps.Metrics,
		engine:    deps.Engine,
		clock:     clock,
	}
}

func (c *core) now() time.Time {
	return c.clock().UTC()
}

// effects collects what a transaction wants done once it has committed.
type effects struct {
	events  []events.Event
	touched []string
}

func (fx *effects) notify(ev events.Event) {
	fx.events = append(fx.events, ev)
}

// run executes fn in one transaction. Notifications are dispatched and cached
// statuses dropped only after the commit; a rolled back command emits nothing.
func (c *core) run(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories, fx *effects) error) error {
	fx := &effects{}
	err := c.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		return fn(ctx, repos, fx)
	})
	if err != nil {
		return err
	}
	c.cache.Invalidate(fx.touched...)
	if c.notifier != nil && len(fx.events) > 0 {
		c.notifier.Dispatch(ctx, fx.events...)
	}
	return nil
}

func (c *core) observe(command string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = apperrors.ToDomainError(err).Code
	}
	c.metrics.RecordCommand(command, outcome)
}

// appendStatus records status for item unless the item is already terminal.
func (c *core) appendStatus(ctx context.Context, repos repository.Repositories, fx *effects, item *domain.WorkItem, status domain.WorkItemStatus) error {
	current, err := currentStatus(ctx, repos, item.ID)
	if err != nil {
		return err
	}
	if current.IsTerminal() {
		return apperrors.NewConflict(
			fmt.Sprintf("work item %s is already %s", item.ID, current),
			map[string]any{"work_item_id": item.ID, "status": current},
		)
	}
	entry := &domain.LedgerEntry{
		WorkItemID: item.ID,
		Status:     status,
		CreatedAt:  c.now(),
	}
	if err := repos.Ledger.Append(ctx, entry); err != nil {
		return err
	}
	fx.touched = append(fx.touched, item.ID)
	return nil
}

func currentStatus(ctx context.Context, repos repository.Repositories, itemID string) (domain.WorkItemStatus, error) {
	statuses, err := repos.Ledger.LatestStatuses(ctx, []string{itemID})
	if err != nil {
		return "", err
	}
	return statuses[itemID], nil
}

// lockItem locks the owning work unit and then the item. Every command takes
// locks in that order.
func lockItem(ctx context.Context, repos repository.Repositories, itemID string) (*domain.WorkUnit, *domain.WorkItem, error) {
	probe, err := repos.WorkItems.GetByID(ctx, itemID)
	if err != nil {
		return nil, nil, notFound(err, "work item", itemID)
	}
	unit, err := repos.WorkUnits.GetForUpdate(ctx, probe.WorkUnitID)
	if err != nil {
		return nil, nil, notFound(err, "work unit", probe.WorkUnitID)
	}
	item, err := repos.WorkItems.GetForUpdate(ctx, itemID)
	if err != nil {
		return nil, nil, notFound(err, "work item", itemID)
	}
	return unit, item, nil
}

type assignment struct {
	unit    *domain.WorkUnit
	stepID  string
	role    string
	origin  domain.WorkItemOrigin
	notes   string
	kind    domain.NotificationKind
	actorID *string
}

// assignRole creates one work item for every active holder of the role. A
// user that already holds an open item for the same step and role is skipped.
func (c *core) assignRole(ctx context.Context, repos repository.Repositories, fx *effects, a assignment) ([]domain.WorkItem, error) {
	if a.unit.Status.IsTerminal() {
		return nil, apperrors.NewConflict(
			fmt.Sprintf("work unit %s is %s", a.unit.ID, a.unit.Status),
			map[string]any{"work_unit_id": a.unit.ID},
		)
	}
	members, err := c.directory.ActiveMembers(ctx, c.engine.RoleSystem, a.role)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, apperrors.NewNoEligibleAssignee(
			fmt.Sprintf("role %s has no active members", a.role),
			map[string]any{"role": a.role, "work_unit_id": a.unit.ID},
		)
	}

	holding, err := c.openHolders(ctx, repos, a.unit.ID, a.stepID, a.role)
	if err != nil {
		return nil, err
	}

	now := c.now()
	var created []domain.WorkItem
	for _, member := range members {
		if holding[member.ID] {
			continue
		}
		holding[member.ID] = true

		item := &domain.WorkItem{
			WorkUnitID:       a.unit.ID,
			Role:             a.role,
			AssigneeID:       member.ID,
			AssignedOnStepID: a.stepID,
			Origin:           a.origin,
			Notes:            a.notes,
			TargetResolution: a.unit.TargetResolution,
			CreatedAt:        now,
		}
		if err := repos.WorkItems.Create(ctx, item); err != nil {
			return nil, err
		}
		if err := c.appendStatus(ctx, repos, fx, item, domain.WorkItemNew); err != nil {
			return nil, err
		}
		created = append(created, *item)
		fx.notify(c.newEvent(a.kind, member.ID, assignmentSubject(a.kind, a.role),
			assignmentMessage(a.kind, a.role, a.unit.TicketID), a.role, a.unit.ID, &item.ID, a.actorID))
	}
	return created, nil
}

func (c *core) openHolders(ctx context.Context, repos repository.Repositories, unitID, stepID, role string) (map[string]bool, error) {
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
	holding := map[string]bool{}
	for _, item := range items {
		if item.AssignedOnStepID == stepID && item.Role == role && !statuses[item.ID].IsTerminal() {
			holding[item.AssigneeID] = true
		}
	}
	return holding, nil
}

func (c *core) newEvent(kind domain.NotificationKind, recipient, subject, message, role, unitID string, itemID, actorID *string) events.Event {
	return events.Event{
		ID:          uuid.NewString(),
		Kind:        kind,
		RecipientID: recipient,
		Subject:     subject,
		Message:     message,
		RoleName:    role,
		WorkUnitID:  &unitID,
		WorkItemID:  itemID,
		ActorID:     actorID,
		Timestamp:   c.now(),
	}
}

func assignmentSubject(kind domain.NotificationKind, role string) string {
	if kind == domain.NotificationEscalation {
		return fmt.Sprintf("Escalated work assigned to %s", role)
	}
	return fmt.Sprintf("New work assigned to %s", role)
}

func assignmentMessage(kind domain.NotificationKind, role, ticketID string) string {
	if kind == domain.NotificationEscalation {
		return fmt.Sprintf("Ticket %s was escalated to you as %s.", ticketID, role)
	}
	return fmt.Sprintf("Ticket %s needs your action as %s.", ticketID, role)
}

// rotate picks the next eligible coordinator for key and advances the pointer.
func (c *core) rotate(ctx context.Context, repos repository.Repositories, key string, exclude *string) (*domain.Member, error) {
	members, err := c.directory.ActiveMembers(ctx, c.engine.RoleSystem, c.engine.CoordinatorRole)
	if err != nil {
		return nil, err
	}
	eligible := members[:0:0]
	for _, member := range members {
		if exclude != nil && member.ID == *exclude {
			continue
		}
		eligible = append(eligible, member)
	}
	if len(eligible) == 0 {
		return nil, apperrors.NewNoEligibleCoordinator(
			fmt.Sprintf("no eligible %s for rotation %s", c.engine.CoordinatorRole, key),
			map[string]any{"rotation_key": key},
		)
	}

	pointer, err := repos.Rotations.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	index := pointer.Index % len(eligible)
	if index < 0 {
		index += len(eligible)
	}
	selected := eligible[index]
	pointer.Index = (index + 1) % len(eligible)
	pointer.UpdatedAt = c.now()
	if err := repos.Rotations.Save(ctx, pointer); err != nil {
		return nil, err
	}
	return &selected, nil
}

// changeOwner sets the unit owner and records the audit trail and notification.
func (c *core) changeOwner(ctx context.Context, repos repository.Repositories, fx *effects, unit *domain.WorkUnit, owner *domain.Member, actorID *string, reason string) (*domain.OwnershipChange, error) {
	change := &domain.OwnershipChange{
		WorkUnitID:  unit.ID,
		OldOwnerID:  unit.OwnerID,
		NewOwnerID:  owner.ID,
		ChangedByID: actorID,
		Reason:      reason,
		CreatedAt:   c.now(),
	}
	ownerID := owner.ID
	unit.OwnerID = &ownerID
	unit.UpdatedAt = change.CreatedAt
	if err := repos.WorkUnits.Update(ctx, unit); err != nil {
		return nil, err
	}
	if err := repos.Ownership.Create(ctx, change); err != nil {
		return nil, err
	}
	fx.notify(c.newEvent(domain.NotificationOwnershipChange, owner.ID,
		"You now own a ticket",
		fmt.Sprintf("Ticket %s is now owned by you: %s", unit.TicketID, reason),
		c.engine.CoordinatorRole, unit.ID, nil, actorID))
	return change, nil
}

func notFound(err error, resource, id string) error {
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, directory.ErrNotFound) {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return err
}

func actorID(actor *domain.Member) *string {
	if actor == nil {
		return nil
	}
	id := actor.ID
	return &id
}

func isAdmin(actor *domain.Member) bool {
	return actor != nil && actor.Admin
}

func displayName(actor *domain.Member) string {
	if actor == nil {
		return "system"
	}
	if actor.Name != "" {
		return actor.Name
	}
	return actor.ID
}
