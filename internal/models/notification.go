// internal/models/notification.go
package models

import "time"

// NotificationType classifies in-app notifications and queue rows.
type NotificationType string

const (
	NotificationApplicationUpdate  NotificationType = "application_update"
	NotificationSystemAnnouncement NotificationType = "system_announcement"
)

// Notification is an in-app message. Only read marking mutates it.
type Notification struct {
	ID               int64            `json:"id" db:"id"`
	RecipientID      int64            `json:"recipient_id" db:"recipient_id"`
	Title            string           `json:"title" db:"title"`
	Message          string           `json:"message" db:"message"`
	NotificationType NotificationType `json:"notification_type" db:"notification_type"`
	IsRead           bool             `json:"is_read" db:"is_read"`
	ReadAt           *time.Time       `json:"read_at,omitempty" db:"read_at"`
	ExpiresAt        *time.Time       `json:"expires_at,omitempty" db:"expires_at"`
	ActionURL        string           `json:"action_url,omitempty" db:"action_url"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
}

// Expired reports whether n is past its expiry at now.
func (n *Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && !n.ExpiresAt.After(now)
}

// JobStatus is the lifecycle of an email queue row.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobSent       JobStatus = "sent"
	JobFailed     JobStatus = "failed"
)

// DefaultMaxAttempts is the per-job attempt budget.
const DefaultMaxAttempts = 3

// EmailJob is a row of notification_queue. Rows are never deleted and
// double as the delivery audit log.
type EmailJob struct {
	ID                int64            `json:"id" db:"id"`
	RecipientID       int64            `json:"recipient_id" db:"recipient_id"`
	RecipientEmail    string           `json:"recipient_email" db:"recipient_email"`
	NotificationType  NotificationType `json:"notification_type" db:"notification_type"`
	Title             string           `json:"title" db:"title"`
	Message           string           `json:"message" db:"message"`
	EmailSubject      string           `json:"email_subject" db:"email_subject"`
	EmailBody         string           `json:"email_body" db:"email_body"`
	Status            JobStatus        `json:"status" db:"status"`
	Attempts          int              `json:"attempts" db:"attempts"`
	MaxAttempts       int              `json:"max_attempts" db:"max_attempts"`
	ScheduledFor      time.Time        `json:"scheduled_for" db:"scheduled_for"`
	ProcessedAt       *time.Time       `json:"processed_at,omitempty" db:"processed_at"`
	LastError         string           `json:"last_error,omitempty" db:"last_error"`
	RelatedObjectType string           `json:"related_object_type,omitempty" db:"related_object_type"`
	RelatedObjectID   *int64           `json:"related_object_id,omitempty" db:"related_object_id"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at" db:"updated_at"`
}

// Exhausted reports whether no attempts remain.
func (j *EmailJob) Exhausted() bool {
	return j.Attempts >= j.MaxAttempts
}
