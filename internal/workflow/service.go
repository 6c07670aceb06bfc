package workflow

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"veripass/internal/common/errors"
	"veripass/internal/common/logger"
	"veripass/internal/common/metrics"
	"veripass/internal/common/observability"
	"veripass/internal/models"
	"veripass/internal/notification"
	"veripass/internal/store"
)

// Notifier is told about every successful transition.
type Notifier interface {
	DispatchStatusNotification(ctx context.Context, reg *models.Registration) (*notification.DispatchResult, error)
}

// EventPublisher announces committed status changes to external process
// models. It is optional.
type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, registrationID, registrationNumber int64, status string) error
}

// BatchResult reports a batch approval. Warning is set when nothing moved.
type BatchResult struct {
	Count    int     `json:"count"`
	Approved []int64 `json:"approved"`
	Warning  string  `json:"warning,omitempty"`
}

type Service struct {
	store    store.RegistrationStore
	notifier Notifier
	events   EventPublisher
	obs      *observability.Observability
	logger   logger.Logger
	now      func() time.Time
}

func NewService(st store.RegistrationStore, notifier Notifier, obs *observability.Observability, log logger.Logger) *Service {
	return &Service{
		store:    st,
		notifier: notifier,
		obs:      obs,
		logger:   logger.ForComponent(log, "workflow"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithEvents makes every committed transition also publish a status event.
func (s *Service) WithEvents(p EventPublisher) *Service {
	s.events = p
	return s
}

// Submit records a completed wizard as a new registration in status
// "application submitted".
func (s *Service) Submit(ctx context.Context, actor models.Actor, sub *models.Submission) (*models.Registration, error) {
	if err := requireApplicant(actor); err != nil {
		return nil, err
	}
	ctx, span := s.obs.StartSpan(ctx, "workflow.Submit", attribute.Int64("user.id", actor.UserID))
	defer span.End()

	sub.UserID = actor.UserID
	if sub.FiledAt.IsZero() {
		sub.FiledAt = s.now()
	}
	reg, err := s.store.CreateSubmission(ctx, sub)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create submission failed")
		metrics.WorkflowTransitions.WithLabelValues("submit", "error").Inc()
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.NewNotFoundError("user", actor.UserID)
		}
		return nil, errors.NewQueryExecutionFailedError("create submission", err)
	}
	metrics.WorkflowTransitions.WithLabelValues("submit", "ok").Inc()

	s.logger.Info("registration submitted", map[string]interface{}{
		"registrationId":     reg.ID,
		"registrationNumber": reg.RegistrationNumber,
		"userId":             actor.UserID,
	})
	s.dispatch(ctx, reg)
	return reg, nil
}

// Recommend records the OIC's decision on a submitted application.
func (s *Service) Recommend(ctx context.Context, id int64, actor models.Actor, decision models.Status, remarks string) (*models.Registration, error) {
	if err := requireOIC(actor); err != nil {
		return nil, err
	}
	if err := requireDecision(decision, models.StatusInitialApproval, models.StatusRejected); err != nil {
		return nil, err
	}
	profileID := actor.SecurityProfileID
	return s.transition(ctx, "recommend", id, []models.Status{models.StatusSubmitted}, store.StatusUpdate{
		To:                decision,
		Remarks:           &remarks,
		InitialApprovedBy: &profileID,
	}, "This application is not ready for recommendation.")
}

// Approve records the Director's decision on an initially approved
// application. final_approved_by is stamped for a rejection too, so it names
// who decided even though the status ends below final approval.
func (s *Service) Approve(ctx context.Context, id int64, actor models.Actor, decision models.Status, remarks string) (*models.Registration, error) {
	if err := requireDirector(actor); err != nil {
		return nil, err
	}
	if err := requireDecision(decision, models.StatusFinalApproval, models.StatusRejected); err != nil {
		return nil, err
	}
	profileID := actor.SecurityProfileID
	return s.transition(ctx, "approve", id, []models.Status{models.StatusInitialApproval}, store.StatusUpdate{
		To:              decision,
		Remarks:         &remarks,
		FinalApprovedBy: &profileID,
	}, "This application is not ready for final approval.")
}

// Finalize confirms or rejects an application in final approval.
func (s *Service) Finalize(ctx context.Context, id int64, actor models.Actor, decision models.Status, remarks string) (*models.Registration, error) {
	if err := requireDirectorOrAdmin(actor); err != nil {
		return nil, err
	}
	if err := requireDecision(decision, models.StatusApproved, models.StatusRejected); err != nil {
		return nil, err
	}
	upd := store.StatusUpdate{To: decision, Remarks: &remarks}
	if actor.HasSecurityProfile() {
		profileID := actor.SecurityProfileID
		upd.FinalApprovedBy = &profileID
	}
	return s.transition(ctx, "finalize", id, []models.Status{models.StatusFinalApproval}, upd,
		"This application is not ready for approval confirmation.")
}

// ReleaseSticker marks the sticker as handed out.
func (s *Service) ReleaseSticker(ctx context.Context, id int64, actor models.Actor) (*models.Registration, error) {
	if err := requireDirectorOrAdmin(actor); err != nil {
		return nil, err
	}
	now := s.now()
	from := sourcesOf(models.StatusStickerReleased, models.StatusApproved, models.StatusFinalApproval)
	return s.transition(ctx, "release_sticker", id, from, store.StatusUpdate{
		To:                  models.StatusStickerReleased,
		StickerReleasedDate: &now,
		At:                  now,
	}, "This application is not ready for sticker release.")
}

// BatchApprove moves every listed application still in initial approval
// to final approval in one statement.
func (s *Service) BatchApprove(ctx context.Context, ids []int64, actor models.Actor) (*BatchResult, error) {
	if err := requireDirector(actor); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, errors.NewValidationError("No applications selected.", errors.FieldError{
			Field:   "application_ids",
			Message: "No applications selected.",
		})
	}

	ctx, span := s.obs.StartSpan(ctx, "workflow.BatchApprove", attribute.Int("requested", len(ids)))
	defer span.End()

	now := s.now()
	remarks := fmt.Sprintf("Batch approved on %s", now.Format("2006-01-02"))
	profileID := actor.SecurityProfileID
	regs, err := s.store.BatchTransition(ctx, ids, models.StatusInitialApproval, store.StatusUpdate{
		To:              models.StatusFinalApproval,
		Remarks:         &remarks,
		FinalApprovedBy: &profileID,
		At:              now,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch transition failed")
		metrics.WorkflowTransitions.WithLabelValues("batch_approve", "error").Inc()
		return nil, errors.NewQueryExecutionFailedError("batch approve", err)
	}

	res := &BatchResult{Count: len(regs), Approved: make([]int64, 0, len(regs))}
	for _, reg := range regs {
		res.Approved = append(res.Approved, reg.ID)
		s.dispatch(ctx, reg)
	}
	metrics.WorkflowTransitions.WithLabelValues("batch_approve", "ok").Add(float64(res.Count))
	if res.Count == 0 {
		res.Warning = "No valid applications were approved."
	}
	span.SetAttributes(attribute.Int("approved", res.Count))

	s.logger.Info("batch approval", map[string]interface{}{
		"requested": len(ids),
		"approved":  res.Count,
		"director":  profileID,
	})
	return res, nil
}

// GetRegistration returns a registration visible to actor: the applicant's
// own, or any for security staff and admins.
func (s *Service) GetRegistration(ctx context.Context, id int64, actor models.Actor) (*models.Registration, error) {
	reg, err := s.store.GetRegistration(ctx, id)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.NewNotFoundError("registration", id)
		}
		return nil, errors.NewQueryExecutionFailedError("get registration", err)
	}
	if actor.IsAdmin() || actor.HasSecurityProfile() || reg.UserID == actor.UserID {
		return reg, nil
	}
	return nil, denied(msgNoPermission, dashboardURL)
}

// Redispatch re-sends the notification for a registration's current status.
// Admin only; used to backfill missed notifications.
func (s *Service) Redispatch(ctx context.Context, id int64, actor models.Actor) (*notification.DispatchResult, error) {
	if !actor.IsAdmin() {
		return nil, denied(msgNoPermission, dashboardURL)
	}
	reg, err := s.GetRegistration(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	res, err := s.notifier.DispatchStatusNotification(ctx, reg)
	if err != nil {
		return nil, errors.NewNotificationSendFailedError("in-app", err)
	}
	return res, nil
}

func (s *Service) transition(ctx context.Context, action string, id int64, from []models.Status, upd store.StatusUpdate, conflictMsg string) (*models.Registration, error) {
	ctx, span := s.obs.StartSpan(ctx, "workflow."+action,
		attribute.Int64("registration.id", id),
		attribute.String("registration.to", string(upd.To)),
	)
	defer span.End()

	if upd.At.IsZero() {
		upd.At = s.now()
	}

	reg, err := s.store.TransitionStatus(ctx, id, from, upd)
	if err != nil {
		var conflict *store.StatusConflict
		switch {
		case stderrors.As(err, &conflict):
			metrics.WorkflowTransitions.WithLabelValues(action, "conflict").Inc()
			s.logger.Warn("transition rejected", map[string]interface{}{
				"action":         action,
				"registrationId": id,
				"current":        string(conflict.Current),
				"to":             string(upd.To),
			})
			return nil, errors.NewStateConflictError(conflictMsg, id, string(conflict.Current))
		case stderrors.Is(err, store.ErrNotFound):
			metrics.WorkflowTransitions.WithLabelValues(action, "not_found").Inc()
			return nil, errors.NewNotFoundError("registration", id)
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, "transition failed")
			metrics.WorkflowTransitions.WithLabelValues(action, "error").Inc()
			return nil, errors.NewQueryExecutionFailedError(action, err)
		}
	}
	metrics.WorkflowTransitions.WithLabelValues(action, "ok").Inc()

	s.logger.Info("registration status changed", map[string]interface{}{
		"action":             action,
		"registrationId":     reg.ID,
		"registrationNumber": reg.RegistrationNumber,
		"status":             string(reg.Status),
	})
	s.dispatch(ctx, reg)
	return reg, nil
}

// dispatch never fails the transition; the row is already committed.
func (s *Service) dispatch(ctx context.Context, reg *models.Registration) {
	if s.notifier != nil {
		if _, err := s.notifier.DispatchStatusNotification(ctx, reg); err != nil {
			s.logger.Error("status notification failed", map[string]interface{}{
				"registrationId": reg.ID,
				"status":         string(reg.Status),
				"error":          err,
			})
		}
	}
	if s.events != nil {
		if err := s.events.PublishStatusChanged(ctx, reg.ID, reg.RegistrationNumber, string(reg.Status)); err != nil {
			s.logger.Warn("status event not published", map[string]interface{}{
				"registrationId": reg.ID,
				"status":         string(reg.Status),
				"error":          err,
			})
		}
	}
}
