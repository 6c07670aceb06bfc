package notification

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"veripass/internal/common/errors"
	"veripass/internal/models"
	"veripass/internal/store"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListOptions pages a user's notifications. Page is 1-based.
type ListOptions struct {
	UnreadOnly bool
	Limit      int
	Page       int
}

// Inbox reads and marks a user's in-app notifications.
type Inbox struct {
	store store.NotificationStore
	now   func() time.Time
}

func NewInbox(st store.NotificationStore) *Inbox {
	return &Inbox{store: st, now: func() time.Time { return time.Now().UTC() }}
}

// GetUserNotifications returns unexpired notifications, newest first.
func (i *Inbox) GetUserNotifications(ctx context.Context, userID int64, opts ListOptions) ([]*models.Notification, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	page := opts.Page
	if page < 1 {
		page = 1
	}

	list, err := i.store.ListNotifications(ctx, userID, store.NotificationFilter{
		UnreadOnly: opts.UnreadOnly,
		Limit:      limit,
		Offset:     (page - 1) * limit,
		Now:        i.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return list, nil
}

func (i *Inbox) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	return i.store.UnreadCount(ctx, userID, i.now())
}

// MarkNotificationRead marks one of the user's notifications read.
func (i *Inbox) MarkNotificationRead(ctx context.Context, userID, id int64) error {
	err := i.store.MarkRead(ctx, userID, id, i.now())
	if stderrors.Is(err, store.ErrNotFound) {
		return errors.NewNotFoundError("notification", id)
	}
	return err
}

// MarkAllNotificationsRead returns how many notifications changed.
func (i *Inbox) MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error) {
	return i.store.MarkAllRead(ctx, userID, i.now())
}

// TimeAgo renders the relative label shown next to a notification.
func TimeAgo(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute")
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d/(24*time.Hour)), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
