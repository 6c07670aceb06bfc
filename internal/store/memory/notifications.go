package memory

import (
	"context"
	"sort"
	"time"

	"veripass/internal/models"
	"veripass/internal/store"
)

func (s *Store) CreateWithEmail(_ context.Context, n *models.Notification, job *models.EmailJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertNotificationLocked(n)
	if job != nil {
		s.insertJobLocked(job)
	}
	return nil
}

func (s *Store) insertNotificationLocked(n *models.Notification) {
	n.ID = s.next("notifications")
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	cp := *n
	s.notifications[n.ID] = &cp
}

func (s *Store) ListNotifications(_ context.Context, userID int64, f store.NotificationFilter) ([]*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Notification
	for _, n := range s.notifications {
		if n.RecipientID != userID || n.Expired(f.Now) {
			continue
		}
		if f.UnreadOnly && n.IsRead {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) UnreadCount(_ context.Context, userID int64, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, note := range s.notifications {
		if note.RecipientID == userID && !note.IsRead && !note.Expired(now) {
			n++
		}
	}
	return n, nil
}

func (s *Store) MarkRead(_ context.Context, userID, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.RecipientID != userID {
		return missing("notification", id)
	}
	if !n.IsRead {
		n.IsRead = true
	}
	if n.ReadAt == nil {
		t := at
		n.ReadAt = &t
	}
	return nil
}

func (s *Store) MarkAllRead(_ context.Context, userID int64, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, n := range s.notifications {
		if n.RecipientID != userID || n.IsRead {
			continue
		}
		t := at
		n.IsRead = true
		n.ReadAt = &t
		count++
	}
	return count, nil
}

func (s *Store) CreateAnnouncement(_ context.Context, a *models.Announcement, notifications []*models.Notification, jobs []*models.EmailJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = s.next("announcements")
	if a.DatePosted.IsZero() {
		a.DatePosted = time.Now().UTC()
	}
	cp := *a
	s.announcements[a.ID] = &cp

	for _, n := range notifications {
		s.insertNotificationLocked(n)
	}
	for _, j := range jobs {
		s.insertJobLocked(j)
	}
	return nil
}
