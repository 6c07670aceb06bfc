package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"veripass/internal/common/errors"
	"veripass/internal/models"
)

const (
	headerRequestID    = "X-Request-ID"
	headerDraftSession = "X-Draft-Session"
)

type ctxKey int

const (
	ctxRequestID ctxKey = iota
	ctxUserID
	ctxSessionID
	ctxActor
)

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxRequestID).(string)
	return id
}

func sessionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxSessionID).(string)
	return id
}

func actorFrom(ctx context.Context) (models.Actor, bool) {
	a, ok := ctx.Value(ctxActor).(models.Actor)
	return a, ok
}

// WithActor returns ctx carrying actor, as resolveActor would.
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, ctxActor, actor)
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxRequestID, id)))
	})
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		fields := map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"durationMs": time.Since(start).Milliseconds(),
			"requestId":  requestIDFrom(r.Context()),
		}
		if ww.Status() >= http.StatusInternalServerError {
			h.logger.Error("request failed", fields)
			return
		}
		h.logger.Debug("request served", fields)
	})
}

func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			h.writeError(w, r, errors.NewUnauthenticatedError("missing or invalid Authorization header"))
			return
		}
		claims, err := h.deps.Tokens.ValidateToken(token)
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxSessionID, claims.SessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) resolveActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := r.Context().Value(ctxUserID).(int64)
		actor, err := h.deps.Accounts.ResolveActor(r.Context(), userID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor, ok := actorFrom(r.Context()); !ok || !actor.IsAdmin() {
			writeErrorBody(w, errors.NewPermissionDeniedError("You do not have permission to perform this action.", "/dashboard/"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
