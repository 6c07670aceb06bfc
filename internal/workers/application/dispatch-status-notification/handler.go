// internal/workers/application/dispatch-status-notification/handler.go
package dispatchstatusnotification

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"veripass/internal/common/errors"
	"veripass/internal/common/logger"
	"veripass/internal/common/metrics"
	"veripass/internal/common/observability"
	"veripass/internal/models"
	"veripass/internal/notification"
	"veripass/internal/store"
)

const (
	TaskType   = "veripass.dispatch-status-notification"
	WorkerName = "dispatch-status-notification"
)

// Notifier is satisfied by *notification.Dispatcher.
type Notifier interface {
	DispatchStatusNotification(ctx context.Context, reg *models.Registration) (*notification.DispatchResult, error)
}

type RegistrationReader interface {
	GetRegistration(ctx context.Context, id int64) (*models.Registration, error)
}

// Handler dispatches the notification for a registration's current status.
// Process models call it after an external status change.
type Handler struct {
	config     *Config
	regs       RegistrationReader
	notifier   Notifier
	errHandler *errors.ErrorHandler
	obs        *observability.Observability
	logger     logger.Logger
}

func NewHandler(cfg *Config, regs RegistrationReader, notifier Notifier, obs *observability.Observability, log logger.Logger) (*Handler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", WorkerName, err)
	}
	if regs == nil || notifier == nil {
		return nil, fmt.Errorf("%s: registration store and notifier are required", WorkerName)
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     cfg,
		regs:       regs,
		notifier:   notifier,
		errHandler: errors.NewErrorHandler(log),
		obs:        obs,
		logger:     log,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		h.fail(ctx, client, job, errors.NewValidationError("Failed to parse job variables",
			errors.FieldError{Field: "variables", Message: err.Error()}), start)
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err, start)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.obs.RecordJobProcessed(ctx, "completed")
	h.obs.RecordJobDuration(ctx, time.Since(start), "completed")
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.RegistrationID <= 0 {
		return nil, errors.NewValidationError("registrationId is required",
			errors.FieldError{Field: "registrationId", Message: "must be a positive id"})
	}

	reg, err := h.regs.GetRegistration(ctx, input.RegistrationID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.NewNotFoundError("registration", input.RegistrationID)
		}
		return nil, errors.NewQueryExecutionFailedError("get registration", err)
	}

	res, err := h.notifier.DispatchStatusNotification(ctx, reg)
	if err != nil {
		if _, ok := errors.AsStandard(err); ok {
			return nil, err
		}
		return nil, errors.NewNotificationSendFailedError("in-app", err)
	}

	h.logger.Info("status notification dispatched", map[string]interface{}{
		"registrationId": reg.ID,
		"status":         string(reg.Status),
		"notificationId": res.NotificationID,
		"emailSent":      res.EmailSent,
		"skipped":        res.Skipped,
	})

	return &Output{
		RegistrationID:   reg.ID,
		Status:           string(reg.Status),
		NotificationID:   res.NotificationID,
		EmailJobID:       res.JobID,
		EmailSent:        res.EmailSent,
		SMSSent:          res.SMSSent,
		NotificationSkip: res.Skipped,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
	}
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error, start time.Time) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
	h.obs.RecordJobProcessed(ctx, "failed")
	h.obs.RecordJobDuration(ctx, time.Since(start), "failed")
	h.errHandler.HandleJobError(ctx, client, job, err)
}
