package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"veripass/internal/common/errors"
	"veripass/internal/common/logger"
	"veripass/internal/common/metrics"
	"veripass/internal/common/validation"
	"veripass/internal/models"
)

// BroadcastStore is the persistence the broadcaster needs.
type BroadcastStore interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	ListBroadcastRecipients(ctx context.Context, sendToAll bool, schoolRoles []string) ([]*models.User, error)
	CreateAnnouncement(ctx context.Context, a *models.Announcement, notifications []*models.Notification, jobs []*models.EmailJob) error
}

type AnnouncementInput struct {
	Title       string   `json:"title"`
	Message     string   `json:"message"`
	TargetRoles []string `json:"target_roles"`
	SendToAll   bool     `json:"send_to_all"`
	SendEmail   bool     `json:"send_email"`
}

type BroadcastResult struct {
	AnnouncementID int64 `json:"announcement_id"`
	Recipients     int   `json:"recipients"`
	EmailsQueued   int   `json:"emails_queued"`
}

var announcementSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["title", "message"],
	"properties": {
		"title": {"type": "string", "minLength": 1, "maxLength": 200},
		"message": {"type": "string", "minLength": 1},
		"target_roles": {
			"type": ["array", "null"],
			"items": {"enum": ["student", "faculty & staff", "university official"]}
		}
	},
	"if": {"properties": {"send_to_all": {"const": false}}},
	"then": {"required": ["target_roles"], "properties": {"target_roles": {"type": "array", "minItems": 1}}}
}`)

type Broadcaster struct {
	store       BroadcastStore
	maxAttempts int
	logger      logger.Logger
	now         func() time.Time
}

func NewBroadcaster(st BroadcastStore, maxAttempts int, log logger.Logger) *Broadcaster {
	if maxAttempts <= 0 {
		maxAttempts = models.DefaultMaxAttempts
	}
	return &Broadcaster{
		store:       st,
		maxAttempts: maxAttempts,
		logger:      logger.ForComponent(log, "broadcaster"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Broadcast posts an announcement and fans it out. Email jobs are only
// queued; the queue processor delivers them.
func (b *Broadcaster) Broadcast(ctx context.Context, actor models.Actor, in AnnouncementInput) (*BroadcastResult, error) {
	if !actor.IsAdmin() && !actor.IsSecurity() {
		return nil, errors.NewPermissionDeniedError("Permission denied", "/dashboard/")
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Message = strings.TrimSpace(in.Message)
	vr, err := announcementSchema.Validate(in)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if err := vr.AsError("Please correct the announcement."); err != nil {
		return nil, err
	}

	poster, err := b.store.GetUser(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("load poster %d: %w", actor.UserID, err)
	}
	recipients, err := b.store.ListBroadcastRecipients(ctx, in.SendToAll, in.TargetRoles)
	if err != nil {
		return nil, fmt.Errorf("list announcement recipients: %w", err)
	}

	now := b.now()
	a := &models.Announcement{
		Title:       in.Title,
		Message:     in.Message,
		PostedBy:    actor.UserID,
		TargetRoles: in.TargetRoles,
		SendToAll:   in.SendToAll,
		SendEmail:   in.SendEmail,
		DatePosted:  now,
	}

	notifications := make([]*models.Notification, 0, len(recipients))
	var jobs []*models.EmailJob
	body := renderAnnouncementBody(a, poster)
	for _, u := range recipients {
		notifications = append(notifications, &models.Notification{
			RecipientID:      u.ID,
			Title:            a.Title,
			Message:          a.Message,
			NotificationType: models.NotificationSystemAnnouncement,
			CreatedAt:        now,
		})
		if !in.SendEmail {
			continue
		}
		jobs = append(jobs, &models.EmailJob{
			RecipientID:      u.ID,
			RecipientEmail:   u.CorporateEmail,
			NotificationType: models.NotificationSystemAnnouncement,
			Title:            a.Title,
			Message:          a.Message,
			EmailSubject:     announcementSubject(a.Title),
			EmailBody:        body,
			Status:           models.JobPending,
			MaxAttempts:      b.maxAttempts,
			ScheduledFor:     now,
			CreatedAt:        now,
		})
	}

	if err := b.store.CreateAnnouncement(ctx, a, notifications, jobs); err != nil {
		return nil, fmt.Errorf("create announcement: %w", err)
	}
	metrics.NotificationsCreated.WithLabelValues(string(models.NotificationSystemAnnouncement)).Add(float64(len(notifications)))

	b.logger.Info("announcement broadcast", map[string]interface{}{
		"announcementId": a.ID,
		"recipients":     len(recipients),
		"emailsQueued":   len(jobs),
	})
	return &BroadcastResult{AnnouncementID: a.ID, Recipients: len(recipients), EmailsQueued: len(jobs)}, nil
}
