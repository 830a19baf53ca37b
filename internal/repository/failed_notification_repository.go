package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

type failedNotificationRepository struct {
	q querier
}

const failedNotificationColumns = `id, kind, user_id, work_unit_id, work_item_id, subject, message, role_name, status,
               error_message, retry_count, max_retries, created_at, last_retry_at, succeeded_at`

func (r *failedNotificationRepository) Create(ctx context.Context, record *domain.FailedNotification) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.MaxRetries <= 0 {
		record.MaxRetries = domain.DefaultMaxRetries
	}
	const query = `
        INSERT INTO failed_notifications (id, kind, user_id, work_unit_id, work_item_id, subject, message, role_name,
            status, error_message, retry_count, max_retries, created_at, last_retry_at, succeeded_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`
	_, err := r.q.Exec(ctx, query,
		record.ID,
		record.Kind,
		record.UserID,
		record.WorkUnitID,
		record.WorkItemID,
		record.Subject,
		record.Message,
		record.RoleName,
		record.Status,
		record.ErrorMessage,
		record.RetryCount,
		record.MaxRetries,
		record.CreatedAt,
		record.LastRetryAt,
		record.SucceededAt,
	)
	return err
}

// Update refuses to modify a record that already reached success.
func (r *failedNotificationRepository) Update(ctx context.Context, record *domain.FailedNotification) error {
	const query = `
        UPDATE failed_notifications SET status=$1, error_message=$2, retry_count=$3, max_retries=$4,
            last_retry_at=$5, succeeded_at=$6
        WHERE id=$7 AND status <> 'success'`
	cmd, err := r.q.Exec(ctx, query,
		record.Status,
		record.ErrorMessage,
		record.RetryCount,
		record.MaxRetries,
		record.LastRetryAt,
		record.SucceededAt,
		record.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *failedNotificationRepository) GetByID(ctx context.Context, id string) (*domain.FailedNotification, error) {
	query := `SELECT ` + failedNotificationColumns + ` FROM failed_notifications WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *failedNotificationRepository) GetForUpdate(ctx context.Context, id string) (*domain.FailedNotification, error) {
	query := `SELECT ` + failedNotificationColumns + ` FROM failed_notifications WHERE id=$1 FOR UPDATE`
	return r.fetchSingle(ctx, query, id)
}

func (r *failedNotificationRepository) List(ctx context.Context, filter FailedNotificationFilter) ([]domain.FailedNotification, error) {
	query := `SELECT ` + failedNotificationColumns + ` FROM failed_notifications`
	args := []any{}
	clauses := []string{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFailedNotifications(rows)
}

func (r *failedNotificationRepository) ListRetryable(ctx context.Context, staleBefore time.Time, limit int) ([]domain.FailedNotification, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + failedNotificationColumns + ` FROM failed_notifications
        WHERE retry_count < max_retries
          AND (status = 'pending' OR (status = 'retrying' AND last_retry_at < $1))
        ORDER BY created_at ASC
        LIMIT $2`
	rows, err := r.q.Query(ctx, query, staleBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFailedNotifications(rows)
}

func (r *failedNotificationRepository) CountRetryable(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM failed_notifications WHERE status = 'pending' AND retry_count < max_retries`
	var count int
	if err := r.q.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *failedNotificationRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.FailedNotification, error) {
	rows, err := r.q.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records, err := scanFailedNotifications(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return &records[0], nil
}

func scanFailedNotifications(rows pgx.Rows) ([]domain.FailedNotification, error) {
	var result []domain.FailedNotification
	for rows.Next() {
		var record domain.FailedNotification
		if err := rows.Scan(
			&record.ID,
			&record.Kind,
			&record.UserID,
			&record.WorkUnitID,
			&record.WorkItemID,
			&record.Subject,
			&record.Message,
			&record.RoleName,
			&record.Status,
			&record.ErrorMessage,
			&record.RetryCount,
			&record.MaxRetries,
			&record.CreatedAt,
			&record.LastRetryAt,
			&record.SucceededAt,
		); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}
