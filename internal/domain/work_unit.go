package domain

import "time"

// WorkUnitStatus enumerates lifecycle states for a work unit.
type WorkUnitStatus string

const (
	WorkUnitPending         WorkUnitStatus = "pending"
	WorkUnitInProgress      WorkUnitStatus = "in_progress"
	WorkUnitCompleted       WorkUnitStatus = "completed"
	WorkUnitPendingExternal WorkUnitStatus = "pending_external"
	WorkUnitOnHold          WorkUnitStatus = "on_hold"
	WorkUnitCancelled       WorkUnitStatus = "cancelled"
)

// IsTerminal reports whether no further work items may be created.
func (s WorkUnitStatus) IsTerminal() bool {
	return s == WorkUnitCompleted || s == WorkUnitCancelled
}

// Valid reports whether s is a known status.
func (s WorkUnitStatus) Valid() bool {
	switch s {
	case WorkUnitPending, WorkUnitInProgress, WorkUnitCompleted,
		WorkUnitPendingExternal, WorkUnitOnHold, WorkUnitCancelled:
		return true
	}
	return false
}

// WorkUnit is the execution of one workflow against one ticket.
type WorkUnit struct {
	ID               string
	TicketID         string
	WorkflowID       string
	WorkflowVersion  int
	WorkflowSnapshot *Workflow
	CurrentStepID    *string
	Status           WorkUnitStatus
	TargetResolution *time.Time
	ResolvedAt       *time.Time
	OwnerID          *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OwnershipChange is the audit record of a work unit owner change.
type OwnershipChange struct {
	ID          string
	WorkUnitID  string
	OldOwnerID  *string
	NewOwnerID  string
	ChangedByID *string
	Reason      string
	CreatedAt   time.Time
}
