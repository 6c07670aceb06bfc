package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"veripass/internal/common/errors"
	"veripass/internal/models"
)

type decisionAction int

const (
	actionRecommend decisionAction = iota
	actionApprove
	actionFinalize
)

type decisionRequest struct {
	Decision string `json:"decision"`
	Remarks  string `json:"remarks"`
}

type batchApproveRequest struct {
	ApplicationIDs []int64 `json:"application_ids"`
}

type draftResponse struct {
	*models.RegistrationDraft
	CompletedSteps int `json:"completed_steps"`
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewValidationError("Invalid id.", errors.FieldError{Field: "id", Message: "Enter a whole number."})
	}
	return id, nil
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("Invalid request body.")
	}
	return nil
}

// draftSession picks the wizard session: explicit header, then the token's
// session, then a fresh one echoed back to the client.
func draftSession(w http.ResponseWriter, r *http.Request) string {
	sid := r.Header.Get(headerDraftSession)
	if sid == "" {
		sid = sessionIDFrom(r.Context())
	}
	if sid == "" {
		sid = uuid.NewString()
	}
	w.Header().Set(headerDraftSession, sid)
	return sid
}

func (h *Handler) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	draft, err := h.deps.Wizard.GetDraft(r.Context(), actor, draftSession(w, r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draftResponse{draft, draft.CompletedSteps()})
}

func (h *Handler) handleSavePersonal(w http.ResponseWriter, r *http.Request) {
	var in models.PersonalInfo
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	actor, _ := actorFrom(r.Context())
	draft, err := h.deps.Wizard.SavePersonal(r.Context(), actor, draftSession(w, r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draftResponse{draft, draft.CompletedSteps()})
}

func (h *Handler) handleSaveVehicle(w http.ResponseWriter, r *http.Request) {
	var in models.VehicleInfo
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	actor, _ := actorFrom(r.Context())
	draft, err := h.deps.Wizard.SaveVehicle(r.Context(), actor, draftSession(w, r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draftResponse{draft, draft.CompletedSteps()})
}

func (h *Handler) handleSubmitDraft(w http.ResponseWriter, r *http.Request) {
	var in models.Attestation
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	actor, _ := actorFrom(r.Context())
	reg, err := h.deps.Wizard.Complete(r.Context(), actor, draftSession(w, r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

func (h *Handler) handleDiscardDraft(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	if err := h.deps.Wizard.Discard(r.Context(), actor, draftSession(w, r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetRegistration(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	actor, _ := actorFrom(r.Context())
	reg, err := h.deps.Workflow.GetRegistration(r.Context(), id, actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (h *Handler) handleDecision(action decisionAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		var req decisionRequest
		if err := decode(r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}
		decision, err := models.ParseStatus(req.Decision)
		if err != nil {
			h.writeError(w, r, errors.NewValidationError("Invalid decision.", errors.FieldError{Field: "decision", Message: "Select a valid choice."}))
			return
		}

		actor, _ := actorFrom(r.Context())
		ctx := r.Context()
		var reg *models.Registration
		switch action {
		case actionRecommend:
			reg, err = h.deps.Workflow.Recommend(ctx, id, actor, decision, req.Remarks)
		case actionApprove:
			reg, err = h.deps.Workflow.Approve(ctx, id, actor, decision, req.Remarks)
		default:
			reg, err = h.deps.Workflow.Finalize(ctx, id, actor, decision, req.Remarks)
		}
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, reg)
	}
}

func (h *Handler) handleReleaseSticker(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	actor, _ := actorFrom(r.Context())
	reg, err := h.deps.Workflow.ReleaseSticker(r.Context(), id, actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (h *Handler) handleBatchApprove(w http.ResponseWriter, r *http.Request) {
	var req batchApproveRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	actor, _ := actorFrom(r.Context())
	res, err := h.deps.Workflow.BatchApprove(r.Context(), req.ApplicationIDs, actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
