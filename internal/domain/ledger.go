package domain

import "time"

// WorkItemStatus is a status recorded in the assignment ledger.
type WorkItemStatus string

const (
	WorkItemNew        WorkItemStatus = "new"
	WorkItemInProgress WorkItemStatus = "in_progress"
	WorkItemResolved   WorkItemStatus = "resolved"
	WorkItemReassigned WorkItemStatus = "reassigned"
	WorkItemEscalated  WorkItemStatus = "escalated"
	WorkItemBreached   WorkItemStatus = "breached"
)

// IsTerminal reports whether an item in this status can never transition again.
func (s WorkItemStatus) IsTerminal() bool {
	switch s {
	case WorkItemResolved, WorkItemReassigned, WorkItemEscalated, WorkItemBreached:
		return true
	}
	return false
}

// LedgerEntry is an immutable status record for a work item.
// Seq breaks ties between entries sharing a timestamp.
type LedgerEntry struct {
	ID         string
	Seq        int64
	WorkItemID string
	Status     WorkItemStatus
	CreatedAt  time.Time
}

// Later reports whether e supersedes other.
func (e LedgerEntry) Later(other LedgerEntry) bool {
	if e.CreatedAt.Equal(other.CreatedAt) {
		return e.Seq > other.Seq
	}
	return e.CreatedAt.After(other.CreatedAt)
}

// CurrentStatus derives the status of a work item from its ledger entries.
func CurrentStatus(entries []LedgerEntry) WorkItemStatus {
	if len(entries) == 0 {
		return WorkItemNew
	}
	latest := entries[0]
	for _, entry := range entries[1:] {
		if entry.Later(latest) {
			latest = entry
		}
	}
	return latest.Status
}
