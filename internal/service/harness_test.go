package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/assignment-engine/internal/config"
	"github.com/spec-kit/assignment-engine/internal/directory"
	"github.com/spec-kit/assignment-engine/internal/domain"
	"github.com/spec-kit/assignment-engine/internal/events"
	"github.com/spec-kit/assignment-engine/internal/repository/memory"
)

const (
	testSystem   = "ticketing"
	testWorkflow = "wf-support"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	t         *testing.T
	ctx       context.Context
	store     *memory.Store
	dir       *directory.Memory
	transport *events.MemoryTransport
	clock     *fakeClock

	notifications *NotificationService
	assignments   *AssignmentService
	escalations   *EscalationService
	transfers     *TransferService
	ownership     *OwnershipService
	queries       *QueryService
}

func ptr[T any](v T) *T { return &v }

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		t:         t,
		ctx:       context.Background(),
		store:     memory.NewStore(),
		dir:       directory.NewMemory(),
		transport: events.NewMemoryTransport(),
		clock:     &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
	}

	h.dir.AddWorkflow(domain.Workflow{
		ID:      testWorkflow,
		Name:    "Support",
		Version: 2,
		Steps: []domain.Step{
			{ID: "triage", Name: "Triage", Role: "agent", EscalationRole: ptr("supervisor"), Position: 1},
			{ID: "review", Name: "Review", Role: "supervisor", EscalationRole: ptr("manager"), Position: 2},
			{ID: "close", Name: "Close", Role: "manager", Position: 3},
		},
		Transitions: []domain.Transition{
			{FromStepID: "triage", ToStepID: "review"},
			{FromStepID: "review", ToStepID: "close"},
		},
	})
	for _, m := range []struct {
		id    string
		roles []string
		admin bool
	}{
		{id: "coord-1", roles: []string{"coordinator"}},
		{id: "coord-2", roles: []string{"coordinator"}},
		{id: "coord-3", roles: []string{"coordinator"}},
		{id: "agent-1", roles: []string{"agent"}},
		{id: "agent-2", roles: []string{"agent"}},
		{id: "sup-1", roles: []string{"supervisor"}},
		{id: "mgr-1", roles: []string{"manager"}},
		{id: "admin", admin: true},
		{id: "outsider"},
	} {
		member := domain.Member{ID: m.id, Name: m.id, Active: true, Admin: m.admin}
		for _, role := range m.roles {
			member.Roles = append(member.Roles, domain.RoleGrant{System: testSystem, Role: role})
		}
		h.dir.AddMember(member)
	}
	h.dir.AddTicket("T-1")
	h.dir.AddTicket("T-2")

	h.notifications = NewNotificationService(NotificationDependencies{
		Store:     h.store,
		Transport: h.transport,
		Config: config.NotificationConfig{
			MaxRetries: 3,
			StaleAfter: 5 * time.Minute,
			BatchSize:  100,
		},
		Now: h.clock.Now,
	})
	deps := Dependencies{
		Store:     h.store,
		Workflows: h.dir,
		Directory: h.dir,
		Tickets:   h.dir,
		Notifier:  h.notifications,
		Cache:     NewStatusCache(time.Minute),
		Engine: config.EngineConfig{
			RoleSystem:                 testSystem,
			CoordinatorRole:            "coordinator",
			OwnerRotationKey:           "ticket_owner",
			OwnerEscalationRotationKey: "ticket_owner_escalation",
		},
		Now: h.clock.Now,
	}
	h.assignments = NewAssignmentService(deps)
	h.escalations = NewEscalationService(deps)
	h.transfers = NewTransferService(deps)
	h.ownership = NewOwnershipService(deps)
	h.queries = NewQueryService(deps)
	return h
}

func (h *harness) member(id string) *domain.Member {
	h.t.Helper()
	m, err := h.dir.GetMember(h.ctx, id)
	require.NoError(h.t, err)
	return m
}

// start opens a work unit for ticket on the triage step.
func (h *harness) start(ticket string) *WorkUnitDetail {
	h.t.Helper()
	detail, err := h.assignments.StartWorkUnit(h.ctx, StartWorkUnitInput{
		TicketID:      ticket,
		WorkflowID:    testWorkflow,
		InitialStepID: "triage",
	}, h.member("admin"))
	require.NoError(h.t, err)
	return detail
}

// itemFor returns the open item held by assignee on the unit.
func (h *harness) itemFor(unitID, assignee string) domain.WorkItemView {
	h.t.Helper()
	detail, err := h.queries.GetWorkUnit(h.ctx, unitID)
	require.NoError(h.t, err)
	for _, view := range detail.Items {
		if view.Item.AssigneeID == assignee && !view.Status.IsTerminal() {
			return view
		}
	}
	h.t.Fatalf("no open item for %s on %s", assignee, unitID)
	return domain.WorkItemView{}
}

func (h *harness) delivered(kind domain.NotificationKind) []events.Event {
	var out []events.Event
	for _, ev := range h.transport.Delivered() {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}
