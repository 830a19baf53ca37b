package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/assignment-engine/internal/domain"
	"github.com/spec-kit/assignment-engine/internal/repository"
)

func newID() string {
	return uuid.NewString()
}

type notificationRepository struct{ b *binding }

func (r *notificationRepository) Create(_ context.Context, record *domain.FailedNotification) error {
	if record.ID == "" {
		record.ID = newID()
	}
	if record.MaxRetries <= 0 {
		record.MaxRetries = domain.DefaultMaxRetries
	}
	return r.b.write(func(st *state) error {
		st.notifications[record.ID] = *record
		st.notifOrder[record.ID] = st.next()
		return nil
	})
}

func (r *notificationRepository) Update(_ context.Context, record *domain.FailedNotification) error {
	return r.b.write(func(st *state) error {
		existing, ok := st.notifications[record.ID]
		if !ok || existing.Status == domain.NotificationSuccess {
			return repository.ErrNotFound
		}
		existing.Status = record.Status
		existing.ErrorMessage = record.ErrorMessage
		existing.RetryCount = record.RetryCount
		existing.MaxRetries = record.MaxRetries
		existing.LastRetryAt = record.LastRetryAt
		existing.SucceededAt = record.SucceededAt
		st.notifications[record.ID] = existing
		return nil
	})
}

func (r *notificationRepository) GetByID(_ context.Context, id string) (*domain.FailedNotification, error) {
	var out *domain.FailedNotification
	err := r.b.read(func(st *state) error {
		record, ok := st.notifications[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &record
		return nil
	})
	return out, err
}

func (r *notificationRepository) GetForUpdate(ctx context.Context, id string) (*domain.FailedNotification, error) {
	return r.GetByID(ctx, id)
}

func (r *notificationRepository) List(_ context.Context, filter repository.FailedNotificationFilter) ([]domain.FailedNotification, error) {
	var all []domain.FailedNotification
	var order map[string]int64
	err := r.b.read(func(st *state) error {
		order = make(map[string]int64, len(st.notifOrder))
		for id, record := range st.notifications {
			if filter.Status != nil && record.Status != *filter.Status {
				continue
			}
			all = append(all, record)
			order[id] = st.notifOrder[id]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return order[all[i].ID] > order[all[j].ID]
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *notificationRepository) ListRetryable(_ context.Context, staleBefore time.Time, limit int) ([]domain.FailedNotification, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []domain.FailedNotification
	var order map[string]int64
	err := r.b.read(func(st *state) error {
		order = make(map[string]int64)
		for id, record := range st.notifications {
			if record.RetryCount >= record.MaxRetries {
				continue
			}
			stale := record.Status == domain.NotificationRetrying &&
				record.LastRetryAt != nil && record.LastRetryAt.Before(staleBefore)
			if record.Status == domain.NotificationPending || stale {
				out = append(out, record)
				order[id] = st.notifOrder[id]
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return order[out[i].ID] < order[out[j].ID]
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *notificationRepository) CountRetryable(_ context.Context) (int, error) {
	count := 0
	err := r.b.read(func(st *state) error {
		for _, record := range st.notifications {
			if record.Retryable() {
				count++
			}
		}
		return nil
	})
	return count, err
}
