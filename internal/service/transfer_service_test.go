package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/assignment-engine/internal/domain"
	apperrors "github.com/spec-kit/assignment-engine/pkg/util/errorutil"
)

func TestTransfer_CreatesSingleSuccessor(t *testing.T) {
	h := newHarness(t)
	unit := h.start("T-1").Unit
	item := h.itemFor(unit.ID, "agent-1").Item

	result, err := h.transfers.Transfer(h.ctx, item.ID, "sup-1", h.member("agent-1"), "out sick")
	require.NoError(t, err)

	assert.Equal(t, domain.WorkItemReassigned, result.Source.Status)
	require.NotNil(t, result.Source.Item.TransferredToID)
	assert.Equal(t, "sup-1", *result.Source.Item.TransferredToID)
	require.NotNil(t, result.Source.Item.TransferredByID)
	assert.Equal(t, "agent-1", *result.Source.Item.TransferredByID)

	successor := result.Successor
	assert.Equal(t, "sup-1", successor.AssigneeID)
	assert.Equal(t, "agent", successor.Role)
	assert.Equal(t, "triage", successor.AssignedOnStepID)
	assert.Equal(t, domain.OriginTransferred, successor.Origin)
	assert.Equal(t, "out sick", successor.Notes)

	detail, err := h.queries.GetWorkUnit(h.ctx, unit.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Items, 3)

	transfers := h.delivered(domain.NotificationTransfer)
	require.Len(t, transfers, 2)
	recipients := []string{transfers[0].RecipientID, transfers[1].RecipientID}
	assert.ElementsMatch(t, []string{"agent-1", "sup-1"}, recipients)
}

func TestTransfer_AdminOnBehalf(t *testing.T) {
	h := newHarness(t)
	unit := h.start("T-1").Unit
	item := h.itemFor(unit.ID, "agent-1").Item

	_, err := h.transfers.Transfer(h.ctx, item.ID, "sup-1", h.member("agent-2"), "")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	result, err := h.transfers.Transfer(h.ctx, item.ID, "sup-1", h.member("admin"), "")
	require.NoError(t, err)
	assert.Equal(t, domain.OriginAdminTransfer, result.Successor.Origin)
}

func TestTransfer_Guards(t *testing.T) {
	h := newHarness(t)
	unit := h.start("T-1").Unit
	item := h.itemFor(unit.ID, "agent-1").Item
	holder := h.member("agent-1")

	_, err := h.transfers.Transfer(h.ctx, item.ID, "agent-1", holder, "")
	assert.ErrorIs(t, err, apperrors.ErrNoOpTransfer)

	_, err = h.transfers.Transfer(h.ctx, item.ID, "nobody", holder, "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = h.transfers.Transfer(h.ctx, item.ID, "outsider", holder, "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	h.dir.SetActive("sup-1", false)
	_, err = h.transfers.Transfer(h.ctx, item.ID, "sup-1", holder, "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = h.transfers.Transfer(h.ctx, item.ID, "agent-2", holder, "")
	require.NoError(t, err)

	_, err = h.transfers.Transfer(h.ctx, item.ID, "mgr-1", holder, "")
	assert.ErrorIs(t, err, apperrors.ErrConflict, "a reassigned item cannot move again")
}

func TestTransfer_TerminalWorkUnit(t *testing.T) {
	h := newHarness(t)
	unit := h.start("T-1").Unit
	item := h.itemFor(unit.ID, "agent-1").Item

	_, err := h.assignments.SetWorkUnitStatus(h.ctx, unit.ID, domain.WorkUnitCancelled, nil)
	require.NoError(t, err)

	_, err = h.transfers.Transfer(h.ctx, item.ID, "sup-1", h.member("agent-1"), "")
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	view, err := h.queries.GetWorkItem(h.ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WorkItemNew, view.Status)
}

func TestAdminTransferToSelf(t *testing.T) {
	h := newHarness(t)
	unit := h.start("T-1").Unit
	item := h.itemFor(unit.ID, "agent-1").Item

	_, err := h.transfers.AdminTransferToSelf(h.ctx, item.ID, h.member("agent-2"), "")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	result, err := h.transfers.AdminTransferToSelf(h.ctx, item.ID, h.member("admin"), "taking over")
	require.NoError(t, err)
	assert.Equal(t, "admin", result.Successor.AssigneeID)
	assert.Equal(t, domain.OriginAdminTransfer, result.Successor.Origin)
	assert.Equal(t, domain.WorkItemReassigned, result.Source.Status)
}
