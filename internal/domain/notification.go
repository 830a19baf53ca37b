package domain

import "time"

// NotificationKind enumerates notification events emitted by the engine.
type NotificationKind string

const (
	NotificationAssignment      NotificationKind = "assignment"
	NotificationTransfer        NotificationKind = "transfer"
	NotificationEscalation      NotificationKind = "escalation"
	NotificationOwnershipChange NotificationKind = "ownership_change"
)

// NotificationStatus is the retry state of a failed notification.
type NotificationStatus string

const (
	NotificationPending  NotificationStatus = "pending"
	NotificationRetrying NotificationStatus = "retrying"
	NotificationFailed   NotificationStatus = "failed"
	NotificationSuccess  NotificationStatus = "success"
)

// DefaultMaxRetries bounds automatic retries of a failed notification.
const DefaultMaxRetries = 3

// FailedNotification is the durable record of a notification the transport refused.
type FailedNotification struct {
	ID           string
	Kind         NotificationKind
	UserID       string
	WorkUnitID   *string
	WorkItemID   *string
	Subject      string
	Message      string
	RoleName     string
	Status       NotificationStatus
	ErrorMessage string
	RetryCount   int
	MaxRetries   int
	CreatedAt    time.Time
	LastRetryAt  *time.Time
	SucceededAt  *time.Time
}

// Retryable reports whether the automatic state machine may retry the record.
func (n *FailedNotification) Retryable() bool {
	return n.Status == NotificationPending && n.RetryCount < n.MaxRetries
}

// RotationPointer is the persisted cursor of a named rotation.
type RotationPointer struct {
	Key       string
	Index     int
	UpdatedAt time.Time
}
