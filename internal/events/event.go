package events

import (
	"time"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

// Event is one notification addressed to a single user.
type Event struct {
	ID          string                  `json:"id"`
	Kind        domain.NotificationKind `json:"kind"`
	RecipientID string                  `json:"recipient_id"`
	Subject     string                  `json:"subject"`
	Message     string                  `json:"message"`
	RoleName    string                  `json:"role_name,omitempty"`
	WorkUnitID  *string                 `json:"work_unit_id,omitempty"`
	WorkItemID  *string                 `json:"work_item_id,omitempty"`
	ActorID     *string                 `json:"actor_id,omitempty"`
	Timestamp   time.Time               `json:"timestamp"`
}

// FromFailed rebuilds the event persisted in a failed notification record.
// The record id doubles as the event id so consumers can deduplicate.
func FromFailed(record domain.FailedNotification) Event {
	return Event{
		ID:          record.ID,
		Kind:        record.Kind,
		RecipientID: record.UserID,
		Subject:     record.Subject,
		Message:     record.Message,
		RoleName:    record.RoleName,
		WorkUnitID:  record.WorkUnitID,
		WorkItemID:  record.WorkItemID,
		Timestamp:   record.CreatedAt,
	}
}
