package notification

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"veripass/internal/common/logger"
	"veripass/internal/common/metrics"
	"veripass/internal/common/observability"
	"veripass/internal/mail"
	"veripass/internal/models"
	"veripass/internal/store"
)

// DefaultRetryBackoff is how long a failed job waits before it is eligible again.
const DefaultRetryBackoff = 30 * time.Minute

type ProcessorConfig struct {
	BatchSize    int
	RetryBackoff time.Duration
	StaleAfter   time.Duration
}

// Result summarizes one queue run. Failed counts failed send attempts;
// Exhausted counts the subset that moved to the terminal failed status.
// Returned counts claims handed back untried because ctx was cancelled.
type Result struct {
	Claimed   int `json:"claimed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Exhausted int `json:"exhausted"`
	Returned  int `json:"returned"`
}

type Processor struct {
	store  store.QueueStore
	sender mail.Sender
	cfg    ProcessorConfig
	obs    *observability.Observability
	logger logger.Logger
	now    func() time.Time
}

func NewProcessor(st store.QueueStore, sender mail.Sender, cfg ProcessorConfig, obs *observability.Observability, log logger.Logger) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Minute
	}
	return &Processor{
		store:  st,
		sender: sender,
		cfg:    cfg,
		obs:    obs,
		logger: logger.ForComponent(log, "email-queue"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ProcessEmailQueue claims up to limit due jobs and tries each once.
// limit <= 0 uses the configured batch size.
func (p *Processor) ProcessEmailQueue(ctx context.Context, limit int) (Result, error) {
	if limit <= 0 {
		limit = p.cfg.BatchSize
	}
	start := time.Now()
	ctx, span := p.obs.StartSpan(ctx, "notification.ProcessEmailQueue", attribute.Int("limit", limit))
	defer span.End()
	defer func() { metrics.EmailQueueSweepDuration.Observe(time.Since(start).Seconds()) }()

	jobs, err := p.store.ClaimPending(ctx, limit, p.now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "claim failed")
		return Result{}, fmt.Errorf("claim pending email jobs: %w", err)
	}

	res := Result{Claimed: len(jobs)}
	for _, job := range jobs {
		if ctx.Err() != nil {
			p.unclaim(ctx, job, &res)
			continue
		}
		p.processJob(ctx, job, &res)
	}
	if res.Returned > 0 {
		p.logger.Warn("sweep cancelled, claims returned to pending", map[string]interface{}{
			"returned": res.Returned,
			"error":    ctx.Err(),
		})
	}

	span.SetAttributes(
		attribute.Int("claimed", res.Claimed),
		attribute.Int("sent", res.Sent),
		attribute.Int("failed", res.Failed),
		attribute.Int("returned", res.Returned),
	)
	if res.Claimed > 0 {
		p.logger.Info("email queue processed", map[string]interface{}{
			"claimed":   res.Claimed,
			"sent":      res.Sent,
			"failed":    res.Failed,
			"exhausted": res.Exhausted,
		})
	}
	return res, nil
}

func (p *Processor) processJob(ctx context.Context, job *models.EmailJob, res *Result) {
	sendErr := p.sender.Send(ctx, mail.Message{
		To:      job.RecipientEmail,
		Subject: job.EmailSubject,
		Body:    job.EmailBody,
	})

	// a send cut short by cancellation is not a delivery attempt
	if sendErr != nil && ctx.Err() != nil {
		p.unclaim(ctx, job, res)
		return
	}

	// outcome writes must land even if the caller's context is done
	wctx := context.WithoutCancel(ctx)
	now := p.now()

	if sendErr == nil {
		res.Sent++
		metrics.EmailDeliveries.WithLabelValues("queue", "ok").Inc()
		if err := p.store.MarkSent(wctx, job.ID, now); err != nil {
			p.logger.Error("mark sent failed", map[string]interface{}{"jobId": job.ID, "error": err})
		}
		return
	}

	res.Failed++
	metrics.EmailDeliveries.WithLabelValues("queue", "error").Inc()
	fields := map[string]interface{}{
		"jobId":       job.ID,
		"to":          job.RecipientEmail,
		"attempts":    job.Attempts,
		"maxAttempts": job.MaxAttempts,
		"error":       sendErr,
	}

	if job.Attempts >= job.MaxAttempts {
		res.Exhausted++
		p.logger.Error("email job failed permanently", fields)
		if err := p.store.MarkFailed(wctx, job.ID, sendErr.Error(), now); err != nil {
			p.logger.Error("mark failed failed", map[string]interface{}{"jobId": job.ID, "error": err})
		}
		return
	}

	next := now.Add(p.cfg.RetryBackoff)
	fields["nextAttempt"] = next
	p.logger.Warn("email send failed, rescheduled", fields)
	if err := p.store.MarkRetry(wctx, job.ID, sendErr.Error(), next, now); err != nil {
		p.logger.Error("reschedule failed", map[string]interface{}{"jobId": job.ID, "error": err})
	}
}

func (p *Processor) unclaim(ctx context.Context, job *models.EmailJob, res *Result) {
	res.Returned++
	if err := p.store.Unclaim(context.WithoutCancel(ctx), job.ID, p.now()); err != nil {
		p.logger.Error("unclaim failed", map[string]interface{}{"jobId": job.ID, "error": err})
	}
}

// ReclaimStale returns jobs stuck in processing longer than StaleAfter.
func (p *Processor) ReclaimStale(ctx context.Context) (int64, error) {
	now := p.now()
	n, err := p.store.ReclaimStale(ctx, now.Add(-p.cfg.StaleAfter), now)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale email jobs: %w", err)
	}
	if n > 0 {
		p.logger.Warn("reclaimed stale email jobs", map[string]interface{}{"count": n})
	}
	return n, nil
}
