package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

func TestMemoryTransport(t *testing.T) {
	ctx := context.Background()
	transport := NewMemoryTransport()

	var seen []string
	transport.Subscribe(domain.NotificationTransfer, func(_ context.Context, ev Event) error {
		seen = append(seen, ev.RecipientID)
		return nil
	})

	require.NoError(t, transport.Send(ctx, Event{ID: "1", Kind: domain.NotificationTransfer, RecipientID: "u1"}))
	require.NoError(t, transport.Send(ctx, Event{ID: "2", Kind: domain.NotificationAssignment, RecipientID: "u2"}))
	assert.Equal(t, []string{"u1"}, seen)
	assert.Len(t, transport.Delivered(), 2)

	down := errors.New("gateway down")
	transport.FailWith(down)
	assert.ErrorIs(t, transport.Send(ctx, Event{ID: "3", Kind: domain.NotificationAssignment}), down)
	assert.Len(t, transport.Delivered(), 2, "refused events are not recorded")

	transport.FailWith(nil)
	handlerErr := errors.New("handler refused")
	transport.Subscribe(domain.NotificationEscalation, func(context.Context, Event) error { return handlerErr })
	assert.ErrorIs(t, transport.Send(ctx, Event{ID: "4", Kind: domain.NotificationEscalation}), handlerErr)
}

func TestFromFailedKeepsRecordID(t *testing.T) {
	unitID := "unit-1"
	created := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	ev := FromFailed(domain.FailedNotification{
		ID:         "rec-1",
		Kind:       domain.NotificationEscalation,
		UserID:     "sup-1",
		WorkUnitID: &unitID,
		Subject:    "Escalated",
		Message:    "Ticket T-1 was escalated to you.",
		RoleName:   "supervisor",
		CreatedAt:  created,
	})

	assert.Equal(t, "rec-1", ev.ID)
	assert.Equal(t, "sup-1", ev.RecipientID)
	assert.Equal(t, &unitID, ev.WorkUnitID)
	assert.Equal(t, created, ev.Timestamp)
}

func TestLogTransportAlwaysDelivers(t *testing.T) {
	transport := NewLogTransport(zap.NewNop())
	assert.NoError(t, transport.Send(context.Background(), Event{ID: "1", Kind: domain.NotificationAssignment}))
}

func TestNewKafkaTransportRequiresBrokers(t *testing.T) {
	_, err := NewKafkaTransport(nil, "topic", time.Second)
	assert.Error(t, err)
}

func TestRedisTransportWithoutClient(t *testing.T) {
	transport := NewRedisTransport(nil, "notifications")
	assert.ErrorIs(t, transport.Send(context.Background(), Event{ID: "1"}), ErrTransportUnavailable)
}
