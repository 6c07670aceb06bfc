// internal/workers/communication/process-email-queue/handler.go
package processemailqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"veripass/internal/common/errors"
	"veripass/internal/common/logger"
	"veripass/internal/common/metrics"
	"veripass/internal/common/observability"
	"veripass/internal/notification"
)

const (
	TaskType   = "veripass.process-email-queue"
	WorkerName = "process-email-queue"
)

// QueueProcessor is the part of notification.Processor this worker drives.
type QueueProcessor interface {
	ProcessEmailQueue(ctx context.Context, limit int) (notification.Result, error)
	ReclaimStale(ctx context.Context) (int64, error)
}

type Handler struct {
	config     *Config
	processor  QueueProcessor
	errHandler *errors.ErrorHandler
	obs        *observability.Observability
	logger     logger.Logger
	now        func() time.Time
}

func NewHandler(cfg *Config, processor QueueProcessor, obs *observability.Observability, log logger.Logger) (*Handler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", WorkerName, err)
	}
	if processor == nil {
		return nil, fmt.Errorf("%s: processor is required", WorkerName)
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     cfg,
		processor:  processor,
		errHandler: errors.NewErrorHandler(log),
		obs:        obs,
		logger:     log,
		now:        func() time.Time { return time.Now().UTC() },
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

	input, err := h.parseInput(job)
	if err != nil {
		h.fail(ctx, client, job, err, start)
		return
	}

	output, err := h.Execute(ctx, input)
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

// Execute runs one sweep. It is also the entry point for tests.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	out := &Output{}

	reclaim := h.config.ReclaimStale
	if input.ReclaimStale != nil {
		reclaim = *input.ReclaimStale
	}
	if reclaim {
		n, err := h.processor.ReclaimStale(ctx)
		if err != nil {
			// a failed reclaim does not block the sweep
			h.logger.Warn("reclaim stale jobs failed", map[string]interface{}{"error": err.Error()})
		}
		out.Reclaimed = n
	}

	limit := input.Limit
	if limit <= 0 {
		limit = h.config.BatchSize
	}

	res, err := h.processor.ProcessEmailQueue(ctx, limit)
	if err != nil {
		return nil, err
	}

	out.Claimed = res.Claimed
	out.Sent = res.Sent
	out.Failed = res.Failed
	out.Exhausted = res.Exhausted
	out.Returned = res.Returned
	out.ProcessedAt = h.now()

	h.logger.Info("email queue processed", map[string]interface{}{
		"claimed":   res.Claimed,
		"sent":      res.Sent,
		"failed":    res.Failed,
		"exhausted": res.Exhausted,
		"reclaimed": out.Reclaimed,
	})
	return out, nil
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	var input Input
	raw := strings.TrimSpace(job.GetVariables())
	if raw == "" {
		return &input, nil
	}
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		return nil, errors.NewValidationError("Failed to parse job variables", errors.FieldError{
			Field:   "variables",
			Message: err.Error(),
		})
	}
	if input.Limit < 0 {
		return nil, errors.NewValidationError("limit must not be negative", errors.FieldError{
			Field:   "limit",
			Message: "must be zero or positive",
		})
	}
	return &input, nil
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
	code := string(errors.CodeOf(err))
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	h.obs.RecordJobProcessed(ctx, "failed")
	h.obs.RecordJobDuration(ctx, time.Since(start), "failed")
	h.errHandler.HandleJobError(ctx, client, job, err)
}
