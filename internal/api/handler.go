// Package api is the JSON HTTP surface. Every /api/v1 route needs a bearer
// token; the caller's actor is resolved once per request.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"veripass/internal/common/auth"
	"veripass/internal/common/logger"
	"veripass/internal/models"
	"veripass/internal/notification"
	"veripass/internal/workflow"
)

type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.Claims, error)
}

type ActorResolver interface {
	ResolveActor(ctx context.Context, userID int64) (models.Actor, error)
	ChangeRole(ctx context.Context, actor models.Actor, userID int64, role string) error
}

type WizardService interface {
	GetDraft(ctx context.Context, actor models.Actor, sessionID string) (*models.RegistrationDraft, error)
	SavePersonal(ctx context.Context, actor models.Actor, sessionID string, in models.PersonalInfo) (*models.RegistrationDraft, error)
	SaveVehicle(ctx context.Context, actor models.Actor, sessionID string, in models.VehicleInfo) (*models.RegistrationDraft, error)
	Complete(ctx context.Context, actor models.Actor, sessionID string, in models.Attestation) (*models.Registration, error)
	Discard(ctx context.Context, actor models.Actor, sessionID string) error
}

type WorkflowService interface {
	GetRegistration(ctx context.Context, id int64, actor models.Actor) (*models.Registration, error)
	Recommend(ctx context.Context, id int64, actor models.Actor, decision models.Status, remarks string) (*models.Registration, error)
	Approve(ctx context.Context, id int64, actor models.Actor, decision models.Status, remarks string) (*models.Registration, error)
	Finalize(ctx context.Context, id int64, actor models.Actor, decision models.Status, remarks string) (*models.Registration, error)
	ReleaseSticker(ctx context.Context, id int64, actor models.Actor) (*models.Registration, error)
	BatchApprove(ctx context.Context, ids []int64, actor models.Actor) (*workflow.BatchResult, error)
	Redispatch(ctx context.Context, id int64, actor models.Actor) (*notification.DispatchResult, error)
}

type InboxService interface {
	GetUserNotifications(ctx context.Context, userID int64, opts notification.ListOptions) ([]*models.Notification, error)
	UnreadCount(ctx context.Context, userID int64) (int64, error)
	MarkNotificationRead(ctx context.Context, userID, id int64) error
	MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error)
}

type BroadcastService interface {
	Broadcast(ctx context.Context, actor models.Actor, in notification.AnnouncementInput) (*notification.BroadcastResult, error)
}

type QueueService interface {
	ProcessEmailQueue(ctx context.Context, limit int) (notification.Result, error)
}

// ReadyCheck reports whether a dependency is reachable.
type ReadyCheck func(ctx context.Context) error

type Deps struct {
	Tokens      TokenValidator
	Accounts    ActorResolver
	Wizard      WizardService
	Workflow    WorkflowService
	Inbox       InboxService
	Broadcaster BroadcastService
	Queue       QueueService
	ReadyChecks map[string]ReadyCheck
}

type Handler struct {
	deps   Deps
	logger logger.Logger
	now    func() time.Time
}

func NewHandler(deps Deps, log logger.Logger) *Handler {
	return &Handler{
		deps:   deps,
		logger: logger.ForComponent(log, "api"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimw.RealIP)
	r.Use(h.accessLog)
	r.Use(chimw.Recoverer)

	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Timeout(30 * time.Second))
		r.Use(h.requireAuth)
		r.Use(h.resolveActor)

		r.Route("/registrations", func(r chi.Router) {
			r.Get("/draft", h.handleGetDraft)
			r.Put("/draft/personal", h.handleSavePersonal)
			r.Put("/draft/vehicle", h.handleSaveVehicle)
			r.Post("/draft/submit", h.handleSubmitDraft)
			r.Delete("/draft", h.handleDiscardDraft)

			r.Post("/batch-approve", h.handleBatchApprove)
			r.Get("/{id}", h.handleGetRegistration)
			r.Post("/{id}/recommend", h.handleDecision(actionRecommend))
			r.Post("/{id}/approve", h.handleDecision(actionApprove))
			r.Post("/{id}/finalize", h.handleDecision(actionFinalize))
			r.Post("/{id}/release-sticker", h.handleReleaseSticker)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.handleListNotifications)
			r.Get("/unread-count", h.handleUnreadCount)
			r.Post("/read-all", h.handleMarkAllRead)
			r.Post("/{id}/read", h.handleMarkRead)
		})

		r.Post("/announcements", h.handleBroadcast)
		r.Put("/users/{id}/role", h.handleChangeRole)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdmin)
			r.Post("/email-queue/process", h.handleProcessQueue)
			r.Post("/registrations/{id}/dispatch", h.handleRedispatch)
		})
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.deps.ReadyChecks))
	for name, check := range h.deps.ReadyChecks {
		if err := check(ctx); err != nil {
			h.logger.Warn("readiness check failed", map[string]interface{}{"check": name, "error": err})
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	writeJSON(w, status, map[string]interface{}{"ready": status == http.StatusOK, "checks": checks})
}
