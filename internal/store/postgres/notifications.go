package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"veripass/internal/common/database"
	"veripass/internal/models"
	"veripass/internal/store"
)

const notificationColumns = `id, recipient_id, title, message, notification_type, is_read,
	read_at, expires_at, action_url, created_at`

func scanNotification(row rowScanner) (*models.Notification, error) {
	var (
		n       models.Notification
		ntype   string
		readAt  sql.NullTime
		expires sql.NullTime
	)
	if err := row.Scan(&n.ID, &n.RecipientID, &n.Title, &n.Message, &ntype, &n.IsRead,
		&readAt, &expires, &n.ActionURL, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.NotificationType = models.NotificationType(ntype)
	if readAt.Valid {
		t := readAt.Time
		n.ReadAt = &t
	}
	if expires.Valid {
		t := expires.Time
		n.ExpiresAt = &t
	}
	return &n, nil
}

func insertNotification(ctx context.Context, q database.Querier, n *models.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return q.QueryRowContext(ctx, `
		INSERT INTO notifications (recipient_id, title, message, notification_type, expires_at, action_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		n.RecipientID, n.Title, n.Message, string(n.NotificationType), n.ExpiresAt, n.ActionURL, n.CreatedAt,
	).Scan(&n.ID)
}

func (s *Store) CreateWithEmail(ctx context.Context, n *models.Notification, job *models.EmailJob) error {
	return s.db.WithTx(ctx, func(q database.Querier) error {
		if err := insertNotification(ctx, q, n); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
		if job == nil {
			return nil
		}
		if err := insertJob(ctx, q, job); err != nil {
			return fmt.Errorf("insert email job: %w", err)
		}
		return nil
	})
}

func (s *Store) ListNotifications(ctx context.Context, userID int64, f store.NotificationFilter) ([]*models.Notification, error) {
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE recipient_id = $1
		  AND (expires_at IS NULL OR expires_at > $2)
		  AND ($3 = FALSE OR is_read = FALSE)
		ORDER BY created_at DESC, id DESC
		LIMIT $4 OFFSET $5`,
		userID, f.Now, f.UnreadOnly, f.Limit, f.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) UnreadCount(ctx context.Context, userID int64, now time.Time) (int64, error) {
	var count int64
	err := s.db.DB.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM notifications
		WHERE recipient_id = $1
		  AND is_read = FALSE
		  AND (expires_at IS NULL OR expires_at > $2)`,
		userID, now,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func (s *Store) MarkRead(ctx context.Context, userID, id int64, at time.Time) error {
	res, err := s.db.DB.ExecContext(ctx, `
		UPDATE notifications
		SET is_read = TRUE, read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND recipient_id = $2`,
		id, userID, at,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("notification %d: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error) {
	res, err := s.db.DB.ExecContext(ctx, `
		UPDATE notifications
		SET is_read = TRUE, read_at = $2
		WHERE recipient_id = $1 AND is_read = FALSE`,
		userID, at,
	)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return res.RowsAffected()
}
