package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/assignment-engine/internal/domain"
	"github.com/spec-kit/assignment-engine/internal/repository"
)

func seedUnit(t *testing.T, repos repository.Repositories) *domain.WorkUnit {
	t.Helper()
	unit := &domain.WorkUnit{TicketID: "T-1", WorkflowID: "wf", Status: domain.WorkUnitPending, CreatedAt: time.Now()}
	require.NoError(t, repos.WorkUnits.Create(context.Background(), unit))
	return unit
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	unit := seedUnit(t, store.Repositories())

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		item := &domain.WorkItem{WorkUnitID: unit.ID, AssigneeID: "agent-1", Role: "agent"}
		require.NoError(t, repos.WorkItems.Create(ctx, item))
		require.NoError(t, repos.Ledger.Append(ctx, &domain.LedgerEntry{WorkItemID: item.ID, Status: domain.WorkItemNew}))
		pointer, err := repos.Rotations.Lock(ctx, "owners")
		require.NoError(t, err)
		pointer.Index = 2
		require.NoError(t, repos.Rotations.Save(ctx, pointer))
		return boom
	})
	require.ErrorIs(t, err, boom)

	items, err := store.Repositories().WorkItems.ListByWorkUnit(ctx, unit.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	pointer, err := store.Repositories().Rotations.Lock(ctx, "owners")
	require.NoError(t, err)
	assert.Equal(t, 0, pointer.Index)
}

func TestWithinTx_CommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	unit := seedUnit(t, store.Repositories())

	var itemID string
	err := store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		item := &domain.WorkItem{WorkUnitID: unit.ID, AssigneeID: "agent-1", Role: "agent"}
		if err := repos.WorkItems.Create(ctx, item); err != nil {
			return err
		}
		itemID = item.ID
		return repos.Ledger.Append(ctx, &domain.LedgerEntry{WorkItemID: item.ID, Status: domain.WorkItemNew})
	})
	require.NoError(t, err)

	statuses, err := store.Repositories().Ledger.LatestStatuses(ctx, []string{itemID, "unknown"})
	require.NoError(t, err)
	assert.Equal(t, domain.WorkItemNew, statuses[itemID])
	assert.Equal(t, domain.WorkItemNew, statuses["unknown"])
}

func TestLedger_LatestStatusAndOpenItems(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repos := store.Repositories()
	unit := seedUnit(t, repos)
	at := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	open := &domain.WorkItem{WorkUnitID: unit.ID, AssigneeID: "agent-1", Role: "agent", CreatedAt: at}
	closed := &domain.WorkItem{WorkUnitID: unit.ID, AssigneeID: "agent-1", Role: "agent", CreatedAt: at.Add(time.Second)}
	require.NoError(t, repos.WorkItems.Create(ctx, open))
	require.NoError(t, repos.WorkItems.Create(ctx, closed))

	for _, entry := range []domain.LedgerEntry{
		{WorkItemID: open.ID, Status: domain.WorkItemNew, CreatedAt: at},
		{WorkItemID: open.ID, Status: domain.WorkItemInProgress, CreatedAt: at},
		{WorkItemID: closed.ID, Status: domain.WorkItemNew, CreatedAt: at},
		{WorkItemID: closed.ID, Status: domain.WorkItemEscalated, CreatedAt: at},
	} {
		entry := entry
		require.NoError(t, repos.Ledger.Append(ctx, &entry))
	}

	statuses, err := repos.Ledger.LatestStatuses(ctx, []string{open.ID, closed.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.WorkItemInProgress, statuses[open.ID])
	assert.Equal(t, domain.WorkItemEscalated, statuses[closed.ID])

	escalated, err := repos.Ledger.RoleHasStatus(ctx, unit.ID, "agent", domain.WorkItemEscalated)
	require.NoError(t, err)
	assert.True(t, escalated)
	escalated, err = repos.Ledger.RoleHasStatus(ctx, unit.ID, "supervisor", domain.WorkItemEscalated)
	require.NoError(t, err)
	assert.False(t, escalated)

	items, err := repos.WorkItems.ListOpenByAssignee(ctx, "agent-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, open.ID, items[0].ID)

	err = repos.Ledger.Append(ctx, &domain.LedgerEntry{WorkItemID: "ghost", Status: domain.WorkItemNew})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestNotifications_UpdateRefusesDeliveredRecords(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Repositories().Notifications

	record := &domain.FailedNotification{Kind: domain.NotificationAssignment, UserID: "u1", Status: domain.NotificationSuccess}
	require.NoError(t, repo.Create(ctx, record))
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, domain.DefaultMaxRetries, record.MaxRetries)

	record.Status = domain.NotificationPending
	assert.ErrorIs(t, repo.Update(ctx, record), repository.ErrNotFound)

	_, err := repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestNotifications_ListRetryable(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Repositories().Notifications
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	old := now.Add(-time.Hour)

	for _, record := range []*domain.FailedNotification{
		{ID: "pending", Status: domain.NotificationPending, CreatedAt: now},
		{ID: "exhausted", Status: domain.NotificationPending, RetryCount: 3, MaxRetries: 3, CreatedAt: now},
		{ID: "stale", Status: domain.NotificationRetrying, RetryCount: 1, LastRetryAt: &old, CreatedAt: old},
		{ID: "fresh", Status: domain.NotificationRetrying, RetryCount: 1, LastRetryAt: &now, CreatedAt: now},
		{ID: "failed", Status: domain.NotificationFailed, RetryCount: 3, CreatedAt: now},
	} {
		require.NoError(t, repo.Create(ctx, record))
	}

	records, err := repo.ListRetryable(ctx, now.Add(-5*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "stale", records[0].ID, "oldest first")
	assert.Equal(t, "pending", records[1].ID)

	count, err := repo.CountRetryable(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
