package dto

import (
	"time"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

// StartWorkUnitRequest payload.
type StartWorkUnitRequest struct {
	TicketID         string     `json:"ticket_id" validate:"required"`
	WorkflowID       string     `json:"workflow_id" validate:"required"`
	InitialStepID    string     `json:"initial_step_id" validate:"required"`
	TargetResolution *time.Time `json:"target_resolution"`
}

// AdvanceRequest payload.
type AdvanceRequest struct {
	StepID string `json:"step_id" validate:"required"`
}

// SetStatusRequest payload.
type SetStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending in_progress completed pending_external on_hold cancelled"`
}

// ResolveRequest payload.
type ResolveRequest struct {
	Notes string `json:"notes" validate:"max=4000"`
}

// EscalateRequest payload.
type EscalateRequest struct {
	Reason string `json:"reason" validate:"required,max=4000"`
}

// TransferRequest payload.
type TransferRequest struct {
	TargetUserID string `json:"target_user_id" validate:"required"`
	Notes        string `json:"notes" validate:"max=4000"`
}

// ClaimRequest payload.
type ClaimRequest struct {
	Notes string `json:"notes" validate:"max=4000"`
}

// OwnerEscalateRequest payload.
type OwnerEscalateRequest struct {
	Reason string `json:"reason" validate:"required,max=4000"`
}

// OwnerTransferRequest payload.
type OwnerTransferRequest struct {
	TargetUserID string `json:"target_user_id" validate:"required"`
	Reason       string `json:"reason" validate:"max=4000"`
}

// NextOwnerRequest payload.
type NextOwnerRequest struct {
	Exclude *string `json:"exclude"`
}

// LedgerEntryResponse is one status record.
type LedgerEntryResponse struct {
	Status    domain.WorkItemStatus `json:"status"`
	CreatedAt time.Time             `json:"created_at"`
}

// WorkItemResponse represents a work item and its derived status.
type WorkItemResponse struct {
	ID               string                `json:"id"`
	WorkUnitID       string                `json:"work_unit_id"`
	Role             string                `json:"role"`
	AssigneeID       string                `json:"assignee_id"`
	AssignedOnStepID string                `json:"assigned_on_step_id"`
	Origin           domain.WorkItemOrigin `json:"origin"`
	Status           domain.WorkItemStatus `json:"status"`
	Notes            string                `json:"notes,omitempty"`
	TransferredToID  *string               `json:"transferred_to_id,omitempty"`
	TransferredByID  *string               `json:"transferred_by_id,omitempty"`
	TargetResolution *time.Time            `json:"target_resolution,omitempty"`
	ActedOn          *time.Time            `json:"acted_on,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	History          []LedgerEntryResponse `json:"history,omitempty"`
}

// WorkUnitResponse represents a work unit with its items.
type WorkUnitResponse struct {
	ID               string                `json:"id"`
	TicketID         string                `json:"ticket_id"`
	WorkflowID       string                `json:"workflow_id"`
	WorkflowVersion  int                   `json:"workflow_version"`
	CurrentStepID    *string               `json:"current_step_id"`
	Status           domain.WorkUnitStatus `json:"status"`
	OwnerID          *string               `json:"owner_id"`
	TargetResolution *time.Time            `json:"target_resolution,omitempty"`
	ResolvedAt       *time.Time            `json:"resolved_at,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
	Items            []WorkItemResponse    `json:"items,omitempty"`
}

// MemberResponse is the public view of a directory member.
type MemberResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// OwnershipChangeResponse is one owner audit record.
type OwnershipChangeResponse struct {
	ID          string    `json:"id"`
	WorkUnitID  string    `json:"work_unit_id"`
	OldOwnerID  *string   `json:"old_owner_id"`
	NewOwnerID  string    `json:"new_owner_id"`
	ChangedByID *string   `json:"changed_by_id"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}

// FailedNotificationResponse is the operator view of a failed notification.
type FailedNotificationResponse struct {
	ID           string                    `json:"id"`
	Kind         domain.NotificationKind   `json:"kind"`
	UserID       string                    `json:"user_id"`
	WorkUnitID   *string                   `json:"work_unit_id,omitempty"`
	WorkItemID   *string                   `json:"work_item_id,omitempty"`
	Subject      string                    `json:"subject"`
	RoleName     string                    `json:"role_name,omitempty"`
	Status       domain.NotificationStatus `json:"status"`
	ErrorMessage string                    `json:"error_message,omitempty"`
	RetryCount   int                       `json:"retry_count"`
	MaxRetries   int                       `json:"max_retries"`
	CreatedAt    time.Time                 `json:"created_at"`
	LastRetryAt  *time.Time                `json:"last_retry_at,omitempty"`
	SucceededAt  *time.Time                `json:"succeeded_at,omitempty"`
}
