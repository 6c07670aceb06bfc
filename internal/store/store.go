// Package store defines the persistence interfaces shared by the Postgres
// and in-memory implementations.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"veripass/internal/models"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a compare-and-set precondition fails.
	ErrConflict = errors.New("state conflict")
)

// StatusConflict reports a registration whose status did not match the
// expected set. It matches ErrConflict with errors.Is.
type StatusConflict struct {
	ID      int64
	Current models.Status
}

func (e *StatusConflict) Error() string {
	return fmt.Sprintf("registration %d is in status %q", e.ID, e.Current)
}

func (e *StatusConflict) Is(target error) bool { return target == ErrConflict }

// StatusUpdate is applied by a compare-and-set transition. Nil pointers
// leave the column unchanged.
type StatusUpdate struct {
	To                  models.Status
	Remarks             *string
	InitialApprovedBy   *int64
	FinalApprovedBy     *int64
	StickerReleasedDate *time.Time
	At                  time.Time
}

// RegistrationStore persists registrations and their vehicles.
type RegistrationStore interface {
	// CreateSubmission updates the applicant profile, inserts the vehicle and
	// inserts the registration in one transaction.
	CreateSubmission(ctx context.Context, sub *models.Submission) (*models.Registration, error)
	GetRegistration(ctx context.Context, id int64) (*models.Registration, error)
	GetVehicle(ctx context.Context, id int64) (*models.Vehicle, error)
	// TransitionStatus applies upd only when the current status is in from.
	// It returns ErrNotFound or a *StatusConflict otherwise.
	TransitionStatus(ctx context.Context, id int64, from []models.Status, upd StatusUpdate) (*models.Registration, error)
	// BatchTransition applies upd to every id currently in status from and
	// returns the rows it changed.
	BatchTransition(ctx context.Context, ids []int64, from models.Status, upd StatusUpdate) ([]*models.Registration, error)
}

// UserStore reads users and their role profiles.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetSecurityProfileByUser(ctx context.Context, userID int64) (*models.SecurityProfile, error)
	GetAdminProfileByUser(ctx context.Context, userID int64) (*models.AdminProfile, error)
	// ReconcileRole sets users.role and creates or deletes profile rows so
	// that exactly the profile matching role exists.
	ReconcileRole(ctx context.Context, userID int64, role models.Role) error
	// ListBroadcastRecipients returns users with role "user" when sendToAll,
	// else users whose school_role is in schoolRoles.
	ListBroadcastRecipients(ctx context.Context, sendToAll bool, schoolRoles []string) ([]*models.User, error)
}

// NotificationFilter selects a page of a user's notifications.
type NotificationFilter struct {
	UnreadOnly bool
	Limit      int
	Offset     int
	Now        time.Time
}

// NotificationStore persists in-app notifications.
type NotificationStore interface {
	// CreateWithEmail inserts n and, when job is non-nil, job in one
	// transaction. IDs are written back.
	CreateWithEmail(ctx context.Context, n *models.Notification, job *models.EmailJob) error
	ListNotifications(ctx context.Context, userID int64, f NotificationFilter) ([]*models.Notification, error)
	UnreadCount(ctx context.Context, userID int64, now time.Time) (int64, error)
	MarkRead(ctx context.Context, userID, id int64, at time.Time) error
	MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error)
}

// QueueStore persists the email queue.
type QueueStore interface {
	GetJob(ctx context.Context, id int64) (*models.EmailJob, error)
	// ClaimPending atomically moves up to limit eligible pending jobs to
	// processing, incrementing attempts, and returns them oldest first.
	ClaimPending(ctx context.Context, limit int, now time.Time) ([]*models.EmailJob, error)
	// ClaimByID moves one pending job to processing without counting an
	// attempt. It returns ErrConflict when the job is not pending.
	ClaimByID(ctx context.Context, id int64, now time.Time) (*models.EmailJob, error)
	MarkSent(ctx context.Context, id int64, at time.Time) error
	// MarkRetry returns a processing job to pending, eligible again at next.
	MarkRetry(ctx context.Context, id int64, lastErr string, next, now time.Time) error
	MarkFailed(ctx context.Context, id int64, lastErr string, now time.Time) error
	// Release returns a fast-path claim to pending without changing
	// attempts or scheduled_for.
	Release(ctx context.Context, id int64, lastErr string, now time.Time) error
	// Unclaim returns a batch claim that was never attempted to pending and
	// gives back the attempt ClaimPending counted.
	Unclaim(ctx context.Context, id int64, now time.Time) error
	// ReclaimStale returns processing jobs not updated since olderThan to
	// pending, or to failed when no attempts remain.
	ReclaimStale(ctx context.Context, olderThan, now time.Time) (int64, error)
}

// AnnouncementStore persists announcements with their fan-out rows.
type AnnouncementStore interface {
	// CreateAnnouncement writes a, every notification and every job in one
	// transaction.
	CreateAnnouncement(ctx context.Context, a *models.Announcement, notifications []*models.Notification, jobs []*models.EmailJob) error
}

// Store aggregates every interface. Both implementations satisfy it.
type Store interface {
	RegistrationStore
	UserStore
	NotificationStore
	QueueStore
	AnnouncementStore
}
