package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

// Memory is an in-process directory seeded from code or a JSON fixture.
type Memory struct {
	mu        sync.RWMutex
	workflows map[string]domain.Workflow
	members   map[string]domain.Member
	tickets   map[string]struct{}
}

// NewMemory returns an empty directory.
func NewMemory() *Memory {
	return &Memory{
		workflows: map[string]domain.Workflow{},
		members:   map[string]domain.Member{},
		tickets:   map[string]struct{}{},
	}
}

// AddWorkflow registers or replaces a workflow.
func (m *Memory) AddWorkflow(wf domain.Workflow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range wf.Steps {
		if wf.Steps[i].WorkflowID == "" {
			wf.Steps[i].WorkflowID = wf.ID
		}
	}
	m.workflows[wf.ID] = wf
}

// AddMember registers or replaces a member.
func (m *Memory) AddMember(member domain.Member) {
	m.mu.Lock()
	defer m.mu.Unlock()
	member.Roles = append([]domain.RoleGrant(nil), member.Roles...)
	m.members[member.ID] = member
}

// SetActive toggles a member's active flag.
func (m *Memory) SetActive(id string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if member, ok := m.members[id]; ok {
		member.Active = active
		m.members[id] = member
	}
}

// AddTicket marks a ticket as existing.
func (m *Memory) AddTicket(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[id] = struct{}{}
}

func (m *Memory) GetWorkflow(_ context.Context, id string) (*domain.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wf, ok := m.workflows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &wf, nil
}

func (m *Memory) GetMember(_ context.Context, id string) (*domain.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	member, ok := m.members[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &member, nil
}

func (m *Memory) ActiveMembers(_ context.Context, system, role string) ([]domain.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []domain.Member
	for _, member := range m.members {
		if member.Active && member.HasRole(system, role) {
			result = append(result, member)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) TicketExists(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tickets[id]
	return ok, nil
}

type fixtureGrant struct {
	System string `json:"system"`
	Role   string `json:"role"`
}

type fixtureMember struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Email  string         `json:"email"`
	Admin  bool           `json:"admin"`
	Active *bool          `json:"active"`
	Roles  []fixtureGrant `json:"roles"`
}

// Fixture is the JSON document accepted by LoadFixture.
type Fixture struct {
	Workflows []domain.Workflow `json:"workflows"`
	Members   []fixtureMember   `json:"members"`
	Tickets   []string          `json:"tickets"`
}

// LoadFixture seeds the directory from a JSON file.
func (m *Memory) LoadFixture(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read directory fixture: %w", err)
	}
	var fixture Fixture
	if err := json.Unmarshal(content, &fixture); err != nil {
		return fmt.Errorf("decode directory fixture: %w", err)
	}
	for _, wf := range fixture.Workflows {
		if wf.Version == 0 {
			wf.Version = 1
		}
		m.AddWorkflow(wf)
	}
	for _, fm := range fixture.Members {
		member := domain.Member{
			ID:     fm.ID,
			Name:   fm.Name,
			Email:  fm.Email,
			Admin:  fm.Admin,
			Active: fm.Active == nil || *fm.Active,
		}
		for _, g := range fm.Roles {
			member.Roles = append(member.Roles, domain.RoleGrant{System: g.System, Role: g.Role})
		}
		m.AddMember(member)
	}
	for _, id := range fixture.Tickets {
		m.AddTicket(id)
	}
	return nil
}
