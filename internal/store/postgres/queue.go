package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"veripass/internal/common/database"
	"veripass/internal/models"
	"veripass/internal/store"
)

const jobColumns = `id, recipient_id, recipient_email, notification_type, title, message,
	email_subject, email_body, status, attempts, max_attempts, scheduled_for,
	processed_at, last_error, related_object_type, related_object_id, created_at, updated_at`

const claimPendingSQL = `
	UPDATE notification_queue
	SET status = 'processing', attempts = attempts + 1, updated_at = $1
	WHERE id IN (
		SELECT id FROM notification_queue
		WHERE status = 'pending'
		  AND attempts < max_attempts
		  AND scheduled_for <= $1
		ORDER BY created_at, id
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	)
	RETURNING ` + jobColumns

const claimByIDSQL = `
	UPDATE notification_queue
	SET status = 'processing', updated_at = $2
	WHERE id = $1 AND status = 'pending'
	RETURNING ` + jobColumns

const reclaimStaleSQL = `
	UPDATE notification_queue
	SET status = CASE WHEN attempts >= max_attempts THEN 'failed' ELSE 'pending' END,
	    last_error = CASE WHEN last_error = '' THEN 'reclaimed after stale processing claim' ELSE last_error END,
	    updated_at = $2
	WHERE status = 'processing' AND updated_at < $1`

func scanJob(row rowScanner) (*models.EmailJob, error) {
	var (
		j         models.EmailJob
		ntype     string
		status    string
		processed sql.NullTime
		related   sql.NullInt64
	)
	if err := row.Scan(
		&j.ID, &j.RecipientID, &j.RecipientEmail, &ntype, &j.Title, &j.Message,
		&j.EmailSubject, &j.EmailBody, &status, &j.Attempts, &j.MaxAttempts, &j.ScheduledFor,
		&processed, &j.LastError, &j.RelatedObjectType, &related, &j.CreatedAt, &j.UpdatedAt,
	); err != nil {
		return nil, err
	}
	j.NotificationType = models.NotificationType(ntype)
	j.Status = models.JobStatus(status)
	if processed.Valid {
		t := processed.Time
		j.ProcessedAt = &t
	}
	j.RelatedObjectID = int64Ptr(related)
	return &j, nil
}

func insertJob(ctx context.Context, q database.Querier, j *models.EmailJob) error {
	now := time.Now().UTC()
	if j.MaxAttempts == 0 {
		j.MaxAttempts = models.DefaultMaxAttempts
	}
	if j.ScheduledFor.IsZero() {
		j.ScheduledFor = now
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = j.CreatedAt
	j.Status = models.JobPending

	return q.QueryRowContext(ctx, `
		INSERT INTO notification_queue (recipient_id, recipient_email, notification_type, title, message,
			email_subject, email_body, status, attempts, max_attempts, scheduled_for,
			related_object_type, related_object_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', 0, $8, $9, $10, $11, $12, $12)
		RETURNING id`,
		j.RecipientID, j.RecipientEmail, string(j.NotificationType), j.Title, j.Message,
		j.EmailSubject, j.EmailBody, j.MaxAttempts, j.ScheduledFor,
		j.RelatedObjectType, nullableInt64(j.RelatedObjectID), j.CreatedAt,
	).Scan(&j.ID)
}

func (s *Store) GetJob(ctx context.Context, id int64) (*models.EmailJob, error) {
	j, err := scanJob(s.db.DB.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM notification_queue WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "email job", id)
	}
	return j, nil
}

func (s *Store) ClaimPending(ctx context.Context, limit int, now time.Time) ([]*models.EmailJob, error) {
	rows, err := s.db.DB.QueryContext(ctx, claimPendingSQL, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim pending jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.EmailJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan email job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// RETURNING does not preserve the subquery order.
	sort.Slice(jobs, func(a, b int) bool {
		if !jobs[a].CreatedAt.Equal(jobs[b].CreatedAt) {
			return jobs[a].CreatedAt.Before(jobs[b].CreatedAt)
		}
		return jobs[a].ID < jobs[b].ID
	})
	return jobs, nil
}

func (s *Store) ClaimByID(ctx context.Context, id int64, now time.Time) (*models.EmailJob, error) {
	j, err := scanJob(s.db.DB.QueryRowContext(ctx, claimByIDSQL, id, now))
	if err == nil {
		return j, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("claim email job %d: %w", id, err)
	}
	var status string
	if err := s.db.DB.QueryRowContext(ctx, `SELECT status FROM notification_queue WHERE id = $1`, id).Scan(&status); err != nil {
		return nil, notFound(err, "email job", id)
	}
	return nil, fmt.Errorf("email job %d is %s: %w", id, status, store.ErrConflict)
}

// updateProcessing runs an update guarded by status = 'processing'.
func (s *Store) updateProcessing(ctx context.Context, op string, id int64, query string, args ...interface{}) error {
	res, err := s.db.DB.ExecContext(ctx, query, append([]interface{}{id}, args...)...)
	if err != nil {
		return fmt.Errorf("%s email job %d: %w", op, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s email job %d: not processing: %w", op, id, store.ErrConflict)
	}
	return nil
}

func (s *Store) MarkSent(ctx context.Context, id int64, at time.Time) error {
	return s.updateProcessing(ctx, "mark sent", id, `
		UPDATE notification_queue
		SET status = 'sent', processed_at = $2, last_error = '', updated_at = $2
		WHERE id = $1 AND status = 'processing'`, at)
}

func (s *Store) MarkRetry(ctx context.Context, id int64, lastErr string, next, now time.Time) error {
	return s.updateProcessing(ctx, "retry", id, `
		UPDATE notification_queue
		SET status = 'pending', last_error = $2, scheduled_for = $3, updated_at = $4
		WHERE id = $1 AND status = 'processing'`, lastErr, next, now)
}

func (s *Store) MarkFailed(ctx context.Context, id int64, lastErr string, now time.Time) error {
	return s.updateProcessing(ctx, "mark failed", id, `
		UPDATE notification_queue
		SET status = 'failed', last_error = $2, updated_at = $3
		WHERE id = $1 AND status = 'processing'`, lastErr, now)
}

func (s *Store) Release(ctx context.Context, id int64, lastErr string, now time.Time) error {
	return s.updateProcessing(ctx, "release", id, `
		UPDATE notification_queue
		SET status = 'pending', last_error = $2, updated_at = $3
		WHERE id = $1 AND status = 'processing'`, lastErr, now)
}

func (s *Store) Unclaim(ctx context.Context, id int64, now time.Time) error {
	return s.updateProcessing(ctx, "unclaim", id, `
		UPDATE notification_queue
		SET status = 'pending', attempts = GREATEST(attempts - 1, 0), updated_at = $2
		WHERE id = $1 AND status = 'processing'`, now)
}

func (s *Store) ReclaimStale(ctx context.Context, olderThan, now time.Time) (int64, error) {
	res, err := s.db.DB.ExecContext(ctx, reclaimStaleSQL, olderThan, now)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}
