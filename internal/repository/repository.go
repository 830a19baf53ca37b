package repository

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// WorkUnitRepository persists work units.
type WorkUnitRepository interface {
	Create(ctx context.Context, unit *domain.WorkUnit) error
	Update(ctx context.Context, unit *domain.WorkUnit) error
	GetByID(ctx context.Context, id string) (*domain.WorkUnit, error)
	// GetForUpdate loads the unit and locks it until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.WorkUnit, error)
}

// WorkItemRepository persists work items. Status is never stored here.
type WorkItemRepository interface {
	Create(ctx context.Context, item *domain.WorkItem) error
	Update(ctx context.Context, item *domain.WorkItem) error
	GetByID(ctx context.Context, id string) (*domain.WorkItem, error)
	GetForUpdate(ctx context.Context, id string) (*domain.WorkItem, error)
	ListByWorkUnit(ctx context.Context, workUnitID string) ([]domain.WorkItem, error)
	ListOpenByAssignee(ctx context.Context, assigneeID string) ([]domain.WorkItem, error)
}

// LedgerRepository is the append-only assignment ledger.
type LedgerRepository interface {
	Append(ctx context.Context, entry *domain.LedgerEntry) error
	ListByWorkItem(ctx context.Context, workItemID string) ([]domain.LedgerEntry, error)
	// LatestStatuses returns the current status for each id; ids without entries map to new.
	LatestStatuses(ctx context.Context, workItemIDs []string) (map[string]domain.WorkItemStatus, error)
	// RoleHasStatus reports whether any item of role on the unit has an entry with status.
	RoleHasStatus(ctx context.Context, workUnitID, role string, status domain.WorkItemStatus) (bool, error)
}

// RotationRepository persists rotation pointers.
type RotationRepository interface {
	// Lock returns the pointer for key, creating it at index 0, and locks it
	// until the surrounding transaction ends.
	Lock(ctx context.Context, key string) (*domain.RotationPointer, error)
	Save(ctx context.Context, pointer *domain.RotationPointer) error
}

// OwnershipChangeRepository stores the owner audit trail.
type OwnershipChangeRepository interface {
	Create(ctx context.Context, change *domain.OwnershipChange) error
	ListByWorkUnit(ctx context.Context, workUnitID string) ([]domain.OwnershipChange, error)
}

// FailedNotificationFilter captures listing parameters.
type FailedNotificationFilter struct {
	Status *domain.NotificationStatus
	Limit  int
	Offset int
}

// FailedNotificationRepository stores notifications the transport refused.
type FailedNotificationRepository interface {
	Create(ctx context.Context, record *domain.FailedNotification) error
	Update(ctx context.Context, record *domain.FailedNotification) error
	GetByID(ctx context.Context, id string) (*domain.FailedNotification, error)
	GetForUpdate(ctx context.Context, id string) (*domain.FailedNotification, error)
	List(ctx context.Context, filter FailedNotificationFilter) ([]domain.FailedNotification, error)
	// ListRetryable returns pending records under their retry budget plus
	// retrying claims whose last attempt started before staleBefore.
	ListRetryable(ctx context.Context, staleBefore time.Time, limit int) ([]domain.FailedNotification, error)
	CountRetryable(ctx context.Context) (int, error)
}

// Repositories bundles every repository bound to one connection or transaction.
type Repositories struct {
	WorkUnits     WorkUnitRepository
	WorkItems     WorkItemRepository
	Ledger        LedgerRepository
	Rotations     RotationRepository
	Ownership     OwnershipChangeRepository
	Notifications FailedNotificationRepository
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	Repositories() Repositories
	// WithinTx runs fn against transaction-bound repositories. Returning an
	// error rolls everything back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	Ping(ctx context.Context) error
}
