package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/assignment-engine/internal/domain"
	apperrors "github.com/spec-kit/assignment-engine/pkg/util/errorutil"
)

func TestStartWorkUnit_AssignsInitialStepAndOwner(t *testing.T) {
	h := newHarness(t)

	detail := h.start("T-1")

	unit := detail.Unit
	assert.Equal(t, domain.WorkUnitInProgress, unit.Status)
	require.NotNil(t, unit.CurrentStepID)
	assert.Equal(t, "triage", *unit.CurrentStepID)
	assert.Equal(t, 2, unit.WorkflowVersion)
	require.NotNil(t, unit.WorkflowSnapshot)
	assert.Len(t, unit.WorkflowSnapshot.Steps, 3)
	require.NotNil(t, unit.OwnerID)
	assert.Equal(t, "coord-1", *unit.OwnerID)

	require.Len(t, detail.Items, 2)
	assignees := []string{detail.Items[0].Item.AssigneeID, detail.Items[1].Item.AssigneeID}
	assert.ElementsMatch(t, []string{"agent-1", "agent-2"}, assignees)
	for _, view := range detail.Items {
		assert.Equal(t, domain.WorkItemNew, view.Status)
		assert.Equal(t, domain.OriginSystem, view.Item.Origin)
		assert.Equal(t, "agent", view.Item.Role)
		assert.Equal(t, "triage", view.Item.AssignedOnStepID)
	}

	history, err := h.ownership.History(h.ctx, unit.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].OldOwnerID)
	assert.Equal(t, "coord-1", history[0].NewOwnerID)
	assert.Equal(t, "initial assignment", history[0].Reason)

	assert.Len(t, h.delivered(domain.NotificationAssignment), 2)
	assert.Len(t, h.delivered(domain.NotificationOwnershipChange), 1)
}

func TestStartWorkUnit_RejectsInvalidInput(t *testing.T) {
	h := newHarness(t)
	admin := h.member("admin")

	cases := []struct {
		name  string
		input StartWorkUnitInput
		actor *domain.Member
		want  error
	}{
		{
			name:  "missing ticket",
			input: StartWorkUnitInput{WorkflowID: testWorkflow, InitialStepID: "triage"},
			actor: admin,
			want:  apperrors.ErrValidation,
		},
		{
			name:  "unknown ticket",
			input: StartWorkUnitInput{TicketID: "T-404", WorkflowID: testWorkflow, InitialStepID: "triage"},
			actor: admin,
			want:  apperrors.ErrNotFound,
		},
		{
			name:  "unknown workflow",
			input: StartWorkUnitInput{TicketID: "T-1", WorkflowID: "wf-missing", InitialStepID: "triage"},
			actor: admin,
			want:  apperrors.ErrNotFound,
		},
		{
			name:  "step outside workflow",
			input: StartWorkUnitInput{TicketID: "T-1", WorkflowID: testWorkflow, InitialStepID: "billing"},
			actor: admin,
			want:  apperrors.ErrValidation,
		},
		{
			name:  "actor without role",
			input: StartWorkUnitInput{TicketID: "T-1", WorkflowID: testWorkflow, InitialStepID: "triage"},
			actor: h.member("outsider"),
			want:  apperrors.ErrForbidden,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.assignments.StartWorkUnit(h.ctx, tc.input, tc.actor)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Empty(t, h.transport.Delivered())
}

func TestStartWorkUnit_NoEligibleAssigneeRollsBack(t *testing.T) {
	h := newHarness(t)
	h.dir.SetActive("agent-1", false)
	h.dir.SetActive("agent-2", false)

	_, err := h.assignments.StartWorkUnit(h.ctx, StartWorkUnitInput{
		TicketID:      "T-1",
		WorkflowID:    testWorkflow,
		InitialStepID: "triage",
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNoEligibleAssignee)
	assert.Empty(t, h.transport.Delivered())

	// the owner rotation advanced inside the failed transaction and must not stick
	next, err := h.ownership.Next(h.ctx, "ticket_owner", nil)
	require.NoError(t, err)
	assert.Equal(t, "coord-1", next.ID)
}

func TestAdvance(t *testing.T) {
	h := newHarness(t)
	unit := h.start("T-1").Unit

	_, err := h.assignments.Advance(h.ctx, unit.ID, "close", h.member("admin"))
	assert.ErrorIs(t, err, apperrors.ErrValidation, "no transition triage -> close")

	_, err = h.assignments.Advance(h.ctx, unit.ID, "billing", h.member("admin"))
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = h.assignments.Advance(h.ctx, unit.ID, "review", h.member("agent-1"))
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	detail, err := h.assignments.Advance(h.ctx, unit.ID, "review", h.member("coord-1"))
	require.NoError(t, err)
	assert.Equal(t, "review", *detail.Unit.CurrentStepID)
	assert.Len(t, detail.Items, 3)

	review := h.itemFor(unit.ID, "sup-1")
	assert.Equal(t, "supervisor", review.Item.Role)
	assert.Equal(t, "review", review.Item.AssignedOnStepID)
	assert.Equal(t, domain.WorkItemNew, review.Status)
}

func TestAdvance_SameStepDoesNotDuplicateOpenItems(t *testing.T) {
	h := newHarness(t)
	unit := h.start("T-1").Unit

	detail, err := h.assignments.Advance(h.ctx, unit.ID, "triage", nil)
	require.NoError(t, err)
	assert.Len(t, detail.Items, 2)
}

func TestSetWorkUnitStatus(t *testing.T) {
	h := newHarness(t)
	unit := h.start("T-1").Unit

	_, err := h.assignments.SetWorkUnitStatus(h.ctx, unit.ID, domain.WorkUnitStatus("archived"), nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	updated, err := h.assignments.SetWorkUnitStatus(h.ctx, unit.ID, domain.WorkUnitOnHold, h.member("coord-1"))
	require.NoError(t, err)
	assert.Equal(t, domain.WorkUnitOnHold, updated.Status)
	assert.Nil(t, updated.ResolvedAt)

	updated, err = h.assignments.SetWorkUnitStatus(h.ctx, unit.ID, domain.WorkUnitCompleted, nil)
	require.NoError(t, err)
	require.NotNil(t, updated.ResolvedAt)
	assert.True(t, updated.ResolvedAt.Equal(h.clock.Now()))

	_, err = h.assignments.SetWorkUnitStatus(h.ctx, unit.ID, domain.WorkUnitInProgress, nil)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = h.assignments.Advance(h.ctx, unit.ID, "review", nil)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestResolve(t *testing.T) {
	h := newHarness(t)
	unit := h.start("T-1").Unit
	item := h.itemFor(unit.ID, "agent-1").Item

	_, err := h.assignments.Resolve(h.ctx, item.ID, h.member("agent-2"), "")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	view, err := h.assignments.Resolve(h.ctx, item.ID, h.member("agent-1"), "fixed the printer")
	require.NoError(t, err)
	assert.Equal(t, domain.WorkItemResolved, view.Status)
	assert.Equal(t, "fixed the printer", view.Item.Notes)
	require.NotNil(t, view.Item.ActedOn)
	require.Len(t, view.History, 2)
	assert.Equal(t, domain.WorkItemNew, view.History[0].Status)
	assert.Equal(t, domain.WorkItemResolved, view.History[1].Status)

	_, err = h.assignments.Resolve(h.ctx, item.ID, h.member("agent-1"), "")
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	other := h.itemFor(unit.ID, "agent-2").Item
	view, err = h.assignments.Resolve(h.ctx, other.ID, h.member("admin"), "")
	require.NoError(t, err)
	assert.Equal(t, domain.WorkItemResolved, view.Status)
}

func TestMarkBreached(t *testing.T) {
	h := newHarness(t)
	unit := h.start("T-1").Unit
	item := h.itemFor(unit.ID, "agent-1").Item

	view, err := h.assignments.MarkBreached(h.ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WorkItemBreached, view.Status)

	_, err = h.assignments.Resolve(h.ctx, item.ID, h.member("agent-1"), "")
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = h.assignments.MarkBreached(h.ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
