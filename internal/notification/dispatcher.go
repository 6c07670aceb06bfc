// Package notification turns workflow events into in-app notifications and
// email jobs, and drains the email queue.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"veripass/internal/common/logger"
	"veripass/internal/common/metrics"
	"veripass/internal/mail"
	"veripass/internal/models"
	"veripass/internal/store"
)

// DispatchStore is the persistence the dispatcher needs.
type DispatchStore interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetVehicle(ctx context.Context, id int64) (*models.Vehicle, error)
	CreateWithEmail(ctx context.Context, n *models.Notification, job *models.EmailJob) error
	ClaimByID(ctx context.Context, id int64, now time.Time) (*models.EmailJob, error)
	MarkSent(ctx context.Context, id int64, at time.Time) error
	Release(ctx context.Context, id int64, lastErr string, now time.Time) error
}

type DispatcherConfig struct {
	SiteURL     string
	MaxAttempts int
}

// DispatchResult describes what one dispatch produced. Skipped is set for
// statuses without a message.
type DispatchResult struct {
	NotificationID int64 `json:"notificationId"`
	JobID          int64 `json:"jobId"`
	EmailSent      bool  `json:"emailSent"`
	SMSSent        bool  `json:"smsSent"`
	Skipped        bool  `json:"skipped"`
}

type Dispatcher struct {
	store  DispatchStore
	sender mail.Sender
	sms    mail.SMSSender
	cfg    DispatcherConfig
	logger logger.Logger
	now    func() time.Time
}

// NewDispatcher builds a dispatcher. sms may be nil.
func NewDispatcher(st DispatchStore, sender mail.Sender, sms mail.SMSSender, cfg DispatcherConfig, log logger.Logger) *Dispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = models.DefaultMaxAttempts
	}
	return &Dispatcher{
		store:  st,
		sender: sender,
		sms:    sms,
		cfg:    cfg,
		logger: logger.ForComponent(log, "dispatcher"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// DispatchStatusNotification records one notification and one email job for
// the owner of reg, then tries to deliver that job immediately. Delivery
// failures are logged and leave the job pending.
func (d *Dispatcher) DispatchStatusNotification(ctx context.Context, reg *models.Registration) (*DispatchResult, error) {
	tmpl, ok := statusTemplates[reg.Status]
	if !ok {
		d.logger.Debug("no message for status", map[string]interface{}{
			"registrationNumber": reg.RegistrationNumber,
			"status":             string(reg.Status),
		})
		return &DispatchResult{Skipped: true}, nil
	}

	user, err := d.store.GetUser(ctx, reg.UserID)
	if err != nil {
		return nil, fmt.Errorf("load recipient %d: %w", reg.UserID, err)
	}
	vehicle := reg.Vehicle
	if vehicle == nil {
		if vehicle, err = d.store.GetVehicle(ctx, reg.VehicleID); err != nil {
			return nil, fmt.Errorf("load vehicle %d: %w", reg.VehicleID, err)
		}
	}

	msg := renderStatus(tmpl, reg, user, vehicle, d.cfg.SiteURL)
	now := d.now()
	number := reg.RegistrationNumber

	n := &models.Notification{
		RecipientID:      user.ID,
		Title:            msg.Title,
		Message:          msg.Message,
		NotificationType: models.NotificationApplicationUpdate,
		ActionURL:        StatusActionURL,
		CreatedAt:        now,
	}
	job := &models.EmailJob{
		RecipientID:       user.ID,
		RecipientEmail:    user.CorporateEmail,
		NotificationType:  models.NotificationApplicationUpdate,
		Title:             msg.Title,
		Message:           msg.Message,
		EmailSubject:      msg.Subject,
		EmailBody:         msg.Body,
		Status:            models.JobPending,
		MaxAttempts:       d.cfg.MaxAttempts,
		ScheduledFor:      now,
		RelatedObjectType: models.RelatedObjectRegistration,
		RelatedObjectID:   &number,
		CreatedAt:         now,
	}
	if err := d.store.CreateWithEmail(ctx, n, job); err != nil {
		return nil, fmt.Errorf("record notification for registration %d: %w", number, err)
	}
	metrics.NotificationsCreated.WithLabelValues(string(n.NotificationType)).Inc()

	result := &DispatchResult{NotificationID: n.ID, JobID: job.ID}
	result.EmailSent = d.sendNow(ctx, job)

	if reg.Status == models.StatusStickerReleased {
		result.SMSSent = d.sendSMS(ctx, user, msg.Message)
	}

	d.logger.Info("status notification dispatched", map[string]interface{}{
		"registrationNumber": number,
		"status":             string(reg.Status),
		"notificationId":     n.ID,
		"jobId":              job.ID,
		"emailSent":          result.EmailSent,
	})
	return result, nil
}

// sendNow claims the job by id so a concurrent sweep cannot send it twice.
func (d *Dispatcher) sendNow(ctx context.Context, job *models.EmailJob) bool {
	claimed, err := d.store.ClaimByID(ctx, job.ID, d.now())
	if err != nil {
		if !errors.Is(err, store.ErrConflict) {
			d.logger.Warn("immediate send claim failed", map[string]interface{}{"jobId": job.ID, "error": err})
		}
		return false
	}

	sendErr := d.sender.Send(ctx, mail.Message{
		To:      claimed.RecipientEmail,
		Subject: claimed.EmailSubject,
		Body:    claimed.EmailBody,
	})
	if sendErr != nil {
		metrics.EmailDeliveries.WithLabelValues("immediate", "error").Inc()
		d.logger.Error("immediate email send failed, left for queue", map[string]interface{}{
			"jobId": job.ID,
			"to":    claimed.RecipientEmail,
			"error": sendErr,
		})
		if err := d.store.Release(context.WithoutCancel(ctx), job.ID, sendErr.Error(), d.now()); err != nil {
			d.logger.Error("release email job failed", map[string]interface{}{"jobId": job.ID, "error": err})
		}
		return false
	}

	metrics.EmailDeliveries.WithLabelValues("immediate", "ok").Inc()
	if err := d.store.MarkSent(context.WithoutCancel(ctx), job.ID, d.now()); err != nil {
		d.logger.Error("mark email job sent failed", map[string]interface{}{"jobId": job.ID, "error": err})
	}
	return true
}

func (d *Dispatcher) sendSMS(ctx context.Context, user *models.User, text string) bool {
	if d.sms == nil || user.Contact == "" {
		return false
	}
	if err := d.sms.SendSMS(ctx, user.Contact, text); err != nil {
		d.logger.Warn("sms send failed", map[string]interface{}{"userId": user.ID, "error": err})
		return false
	}
	return true
}
