package domain

import "time"

// WorkItemOrigin records how a work item came into existence.
type WorkItemOrigin string

const (
	OriginSystem        WorkItemOrigin = "System"
	OriginTransferred   WorkItemOrigin = "Transferred"
	OriginAdminTransfer WorkItemOrigin = "Admin Transfer"
	OriginEscalation    WorkItemOrigin = "Escalation"
)

// WorkItem is one user's assignment within a work unit at one step.
// Its status lives in the assignment ledger, never on the item.
type WorkItem struct {
	ID               string
	WorkUnitID       string
	Role             string
	AssigneeID       string
	AssignedOnStepID string
	Origin           WorkItemOrigin
	Notes            string
	TransferredToID  *string
	TransferredByID  *string
	TargetResolution *time.Time
	ActedOn          *time.Time
	CreatedAt        time.Time
}

// WorkItemView is a work item with its derived status and ledger history.
type WorkItemView struct {
	Item    WorkItem
	Status  WorkItemStatus
	History []LedgerEntry
}
