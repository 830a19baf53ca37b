package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/assignment-engine/internal/config"
	"github.com/spec-kit/assignment-engine/internal/domain"
	"github.com/spec-kit/assignment-engine/internal/events"
	apperrors "github.com/spec-kit/assignment-engine/pkg/util/errorutil"
)

func failedByStatus(t *testing.T, h *harness, status domain.NotificationStatus) []domain.FailedNotification {
	t.Helper()
	records, err := h.notifications.ListFailed(h.ctx, &status, 0, 0)
	require.NoError(t, err)
	return records
}

func (h *harness) dispatchOne(recipient string) domain.FailedNotification {
	h.t.Helper()
	ev := events.Event{
		ID:          "evt-" + recipient,
		Kind:        domain.NotificationAssignment,
		RecipientID: recipient,
		Subject:     "New work",
		Message:     "Ticket T-1 needs you.",
		Timestamp:   h.clock.Now(),
	}
	h.notifications.Dispatch(h.ctx, ev)
	record, err := h.store.Repositories().Notifications.GetByID(h.ctx, ev.ID)
	require.NoError(h.t, err)
	return *record
}

func TestDispatch_OutageDoesNotFailCommand(t *testing.T) {
	h := newHarness(t)
	h.transport.FailWith(errors.New("smtp unavailable"))

	detail := h.start("T-1")
	assert.Len(t, detail.Items, 2)

	pending := failedByStatus(t, h, domain.NotificationPending)
	require.Len(t, pending, 3)
	for _, record := range pending {
		assert.Equal(t, "smtp unavailable", record.ErrorMessage)
		assert.Equal(t, 0, record.RetryCount)
		assert.Equal(t, 3, record.MaxRetries)
		require.NotNil(t, record.WorkUnitID)
		assert.Equal(t, detail.Unit.ID, *record.WorkUnitID)
	}

	h.transport.FailWith(nil)
	summary, err := h.notifications.RetryAllPending(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, RetrySummary{Total: 3, Succeeded: 3, Failed: 0, RemainingPending: 0}, summary)

	delivered := h.transport.Delivered()
	require.Len(t, delivered, 3)
	ids := map[string]bool{}
	for _, record := range pending {
		ids[record.ID] = true
	}
	for _, ev := range delivered {
		assert.True(t, ids[ev.ID], "redelivered event keeps the record id")
	}
	assert.Len(t, failedByStatus(t, h, domain.NotificationSuccess), 3)
}

func TestRetry_ExhaustsBudgetThenReenable(t *testing.T) {
	h := newHarness(t)
	h.transport.FailWith(errors.New("timeout"))
	record := h.dispatchOne("agent-1")
	assert.Equal(t, domain.NotificationPending, record.Status)

	for attempt := 1; attempt <= 3; attempt++ {
		h.clock.Advance(time.Minute)
		result, err := h.notifications.Retry(h.ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, attempt, result.RetryCount)
		require.NotNil(t, result.LastRetryAt)
		if attempt < 3 {
			assert.Equal(t, domain.NotificationPending, result.Status)
		} else {
			assert.Equal(t, domain.NotificationFailed, result.Status)
		}
	}

	_, err := h.notifications.Retry(h.ctx, record.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	summary, err := h.notifications.RetryAllPending(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)

	reenabled, err := h.notifications.Reenable(h.ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationPending, reenabled.Status)
	assert.Equal(t, 0, reenabled.RetryCount)

	h.transport.FailWith(nil)
	result, err := h.notifications.Retry(h.ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationSuccess, result.Status)
	assert.NotNil(t, result.SucceededAt)
	assert.Empty(t, result.ErrorMessage)

	_, err = h.notifications.Retry(h.ctx, record.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	_, err = h.notifications.Reenable(h.ctx, record.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestRetry_StaleClaimIsReclaimed(t *testing.T) {
	h := newHarness(t)
	repo := h.store.Repositories().Notifications

	claimedAt := h.clock.Now()
	stale := &domain.FailedNotification{
		ID:          "stale",
		Kind:        domain.NotificationTransfer,
		UserID:      "agent-1",
		Status:      domain.NotificationRetrying,
		RetryCount:  1,
		MaxRetries:  3,
		CreatedAt:   claimedAt,
		LastRetryAt: &claimedAt,
	}
	require.NoError(t, repo.Create(h.ctx, stale))

	_, err := h.notifications.Retry(h.ctx, "stale")
	assert.ErrorIs(t, err, apperrors.ErrConflict, "a fresh claim is still in flight")

	summary, err := h.notifications.RetryAllPending(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)

	h.clock.Advance(10 * time.Minute)
	summary, err = h.notifications.RetryAllPending(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Succeeded)

	record, err := repo.GetByID(h.ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationSuccess, record.Status)
	assert.Equal(t, 2, record.RetryCount)
}

func TestReenable_StuckRetryingClaim(t *testing.T) {
	h := newHarness(t)
	repo := h.store.Repositories().Notifications

	now := h.clock.Now()
	require.NoError(t, repo.Create(h.ctx, &domain.FailedNotification{
		ID:          "stuck",
		Kind:        domain.NotificationEscalation,
		UserID:      "sup-1",
		Status:      domain.NotificationRetrying,
		RetryCount:  3,
		MaxRetries:  3,
		CreatedAt:   now,
		LastRetryAt: &now,
	}))
	require.NoError(t, repo.Create(h.ctx, &domain.FailedNotification{
		ID:        "waiting",
		Kind:      domain.NotificationEscalation,
		UserID:    "sup-1",
		Status:    domain.NotificationPending,
		CreatedAt: now,
	}))

	record, err := h.notifications.Reenable(h.ctx, "stuck")
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationPending, record.Status)
	assert.Equal(t, 0, record.RetryCount)

	_, err = h.notifications.Reenable(h.ctx, "waiting")
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = h.notifications.Reenable(h.ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDispatch_WithoutTransportPersists(t *testing.T) {
	h := newHarness(t)
	svc := NewNotificationService(NotificationDependencies{
		Store:  h.store,
		Config: config.NotificationConfig{},
		Now:    h.clock.Now,
	})

	svc.Dispatch(h.ctx, events.Event{ID: "orphan", Kind: domain.NotificationAssignment, RecipientID: "agent-1"})

	record, err := h.store.Repositories().Notifications.GetByID(h.ctx, "orphan")
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationPending, record.Status)
	assert.Equal(t, domain.DefaultMaxRetries, record.MaxRetries)
	assert.Equal(t, events.ErrTransportUnavailable.Error(), record.ErrorMessage)
}

func TestListFailed_Paginates(t *testing.T) {
	h := newHarness(t)
	h.transport.FailWith(errors.New("down"))
	for _, id := range []string{"agent-1", "agent-2", "sup-1"} {
		h.clock.Advance(time.Second)
		h.dispatchOne(id)
	}

	page, err := h.notifications.ListFailed(h.ctx, nil, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "sup-1", page[0].UserID, "newest first")

	page, err = h.notifications.ListFailed(h.ctx, nil, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "agent-1", page[0].UserID)
}
