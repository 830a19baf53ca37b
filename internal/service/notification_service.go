package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/assignment-engine/internal/config"
	"github.com/spec-kit/assignment-engine/internal/domain"
	"github.com/spec-kit/assignment-engine/internal/events"
	"github.com/spec-kit/assignment-engine/internal/observability"
	"github.com/spec-kit/assignment-engine/internal/repository"
	apperrors "github.com/spec-kit/assignment-engine/pkg/util/errorutil"
)

// NotificationService submits notification events and owns the failed
// notification retry state machine.
type NotificationService struct {
	store     repository.Store
	transport events.Transport
	logger    *zap.Logger
	metrics   *observability.Metrics
	cfg       config.NotificationConfig
	clock     func() time.Time
}

// NotificationDependencies bundles collaborators.
type NotificationDependencies struct {
	Store     repository.Store
	Transport events.Transport
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Config    config.NotificationConfig
	Now       func() time.Time
}

// RetrySummary aggregates one retryAllPending sweep.
type RetrySummary struct {
	Total            int `json:"total"`
	Succeeded        int `json:"succeeded"`
	Failed           int `json:"failed"`
	RemainingPending int `json:"remaining_pending"`
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Now
	if clock == nil {
		clock = time.Now
	}
	cfg := deps.Config
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = domain.DefaultMaxRetries
	}
	return &NotificationService{
		store:     deps.Store,
		transport: deps.Transport,
		logger:    logger,
		metrics:   deps.Metrics,
		cfg:       cfg,
		clock:     clock,
	}
}

func (n *NotificationService) now() time.Time {
	return n.clock().UTC()
}

// Dispatch submits each event. A refused event is persisted as a pending
// failed notification; errors never reach the caller.
func (n *NotificationService) Dispatch(ctx context.Context, evs ...events.Event) {
	for _, ev := range evs {
		err := n.send(ctx, ev)
		n.metrics.RecordNotification(string(ev.Kind), err == nil)
		if err == nil {
			continue
		}

		record := &domain.FailedNotification{
			ID:           ev.ID,
			Kind:         ev.Kind,
			UserID:       ev.RecipientID,
			WorkUnitID:   ev.WorkUnitID,
			WorkItemID:   ev.WorkItemID,
			Subject:      ev.Subject,
			Message:      ev.Message,
			RoleName:     ev.RoleName,
			Status:       domain.NotificationPending,
			ErrorMessage: err.Error(),
			MaxRetries:   n.cfg.MaxRetries,
			CreatedAt:    n.now(),
		}
		if perr := n.store.Repositories().Notifications.Create(context.WithoutCancel(ctx), record); perr != nil {
			n.logger.Error("failed to persist failed notification",
				zap.String("event_id", ev.ID),
				zap.String("recipient_id", ev.RecipientID),
				zap.Error(perr))
			continue
		}
		n.logger.Warn("notification transport failed",
			zap.String("failed_notification_id", record.ID),
			zap.String("kind", string(ev.Kind)),
			zap.String("recipient_id", ev.RecipientID),
			zap.Error(err))
	}
}

func (n *NotificationService) send(ctx context.Context, ev events.Event) error {
	if n.transport == nil {
		return events.ErrTransportUnavailable
	}
	return n.transport.Send(ctx, ev)
}

// Retry claims the record, resubmits it and records the outcome. The claim
// and the outcome are separate commits so a crash in between leaves a
// retrying claim that becomes eligible again after StaleAfter.
func (n *NotificationService) Retry(ctx context.Context, id string) (*domain.FailedNotification, error) {
	var claimed domain.FailedNotification
	err := n.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		record, err := repos.Notifications.GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "failed notification", id)
		}
		now := n.now()
		switch record.Status {
		case domain.NotificationSuccess:
			return apperrors.NewConflict("notification was already delivered", map[string]any{"id": id})
		case domain.NotificationFailed:
			return apperrors.NewConflict("notification exhausted its retries; re-enable it first", map[string]any{"id": id})
		case domain.NotificationRetrying:
			if record.LastRetryAt != nil && now.Sub(*record.LastRetryAt) < n.cfg.StaleAfter {
				return apperrors.NewConflict("notification retry already in progress", map[string]any{"id": id})
			}
		}
		if record.RetryCount >= record.MaxRetries {
			return apperrors.NewConflict("notification exhausted its retries; re-enable it first", map[string]any{"id": id})
		}

		record.Status = domain.NotificationRetrying
		record.RetryCount++
		record.LastRetryAt = &now
		if err := repos.Notifications.Update(ctx, record); err != nil {
			return err
		}
		claimed = *record
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	sendErr := n.send(ctx, events.FromFailed(claimed))

	var result domain.FailedNotification
	err = n.store.WithinTx(context.WithoutCancel(ctx), func(ctx context.Context, repos repository.Repositories) error {
		record, err := repos.Notifications.GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "failed notification", id)
		}
		if record.Status != domain.NotificationRetrying || record.RetryCount != claimed.RetryCount {
			// another sweeper took over the stale claim
			result = *record
			return nil
		}
		if sendErr == nil {
			now := n.now()
			record.Status = domain.NotificationSuccess
			record.SucceededAt = &now
			record.ErrorMessage = ""
		} else {
			record.ErrorMessage = sendErr.Error()
			if record.RetryCount < record.MaxRetries {
				record.Status = domain.NotificationPending
			} else {
				record.Status = domain.NotificationFailed
			}
		}
		if err := repos.Notifications.Update(ctx, record); err != nil {
			return err
		}
		result = *record
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	n.metrics.RecordRetry(string(result.Status))
	n.logger.Info("notification retried",
		zap.String("failed_notification_id", id),
		zap.String("status", string(result.Status)),
		zap.Int("retry_count", result.RetryCount))
	return &result, nil
}

// RetryAllPending retries every eligible record once, continuing past
// individual failures.
func (n *NotificationService) RetryAllPending(ctx context.Context) (RetrySummary, error) {
	var summary RetrySummary
	staleBefore := n.now().Add(-n.cfg.StaleAfter)
	records, err := n.store.Repositories().Notifications.ListRetryable(ctx, staleBefore, n.cfg.BatchSize)
	if err != nil {
		return summary, apperrors.MapError(err)
	}

	summary.Total = len(records)
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		result, err := n.Retry(ctx, record.ID)
		switch {
		case err != nil:
			summary.Failed++
			n.logger.Warn("notification retry skipped",
				zap.String("failed_notification_id", record.ID),
				zap.Error(err))
		case result.Status == domain.NotificationSuccess:
			summary.Succeeded++
		default:
			summary.Failed++
		}
	}

	remaining, err := n.store.Repositories().Notifications.CountRetryable(ctx)
	if err != nil {
		return summary, apperrors.MapError(err)
	}
	summary.RemainingPending = remaining
	n.metrics.SetRetryBacklog(remaining)

	n.logger.Info("notification retry sweep finished",
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("remaining_pending", summary.RemainingPending))
	return summary, nil
}

// Reenable returns an exhausted record to pending with a fresh retry budget.
// A retrying claim that used the last attempt counts as exhausted.
func (n *NotificationService) Reenable(ctx context.Context, id string) (*domain.FailedNotification, error) {
	var result domain.FailedNotification
	err := n.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		record, err := repos.Notifications.GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "failed notification", id)
		}
		stuck := record.Status == domain.NotificationRetrying && record.RetryCount >= record.MaxRetries
		if record.Status != domain.NotificationFailed && !stuck {
			return apperrors.NewConflict("only failed notifications can be re-enabled",
				map[string]any{"id": id, "status": record.Status})
		}
		record.Status = domain.NotificationPending
		record.RetryCount = 0
		if err := repos.Notifications.Update(ctx, record); err != nil {
			return err
		}
		result = *record
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	n.logger.Info("notification re-enabled", zap.String("failed_notification_id", id))
	return &result, nil
}

// ListFailed lists failed notification records, newest first.
func (n *NotificationService) ListFailed(ctx context.Context, status *domain.NotificationStatus, limit, offset int) ([]domain.FailedNotification, error) {
	records, err := n.store.Repositories().Notifications.List(ctx, repository.FailedNotificationFilter{
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return records, nil
}
