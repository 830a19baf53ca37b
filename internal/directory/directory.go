// Package directory exposes the read-only collaborators of the engine:
// workflow definitions, role membership and ticket existence.
package directory

import (
	"context"
	"errors"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

// ErrNotFound is returned when a workflow or member does not exist.
var ErrNotFound = errors.New("directory entry not found")

// WorkflowCatalog resolves workflow definitions.
type WorkflowCatalog interface {
	GetWorkflow(ctx context.Context, id string) (*domain.Workflow, error)
}

// RoleDirectory resolves users and their role memberships.
type RoleDirectory interface {
	GetMember(ctx context.Context, id string) (*domain.Member, error)
	// ActiveMembers returns active holders of role in system, ordered by id.
	ActiveMembers(ctx context.Context, system, role string) ([]domain.Member, error)
}

// TicketLookup answers whether a ticket exists in the external ticket store.
type TicketLookup interface {
	TicketExists(ctx context.Context, id string) (bool, error)
}
