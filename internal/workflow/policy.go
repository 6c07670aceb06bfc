// Package workflow is the registration approval state machine. Every
// status change is a compare-and-set against the stored status, gated by
// the caller's role.
package workflow

import (
	"veripass/internal/common/errors"
	"veripass/internal/models"
)

const (
	msgNoPermission = "You do not have permission to perform this action."
	msgOnlyOIC      = "Only the OIC can perform this action."
	msgOnlyDirector = "Only the GSO Director can perform this action."

	dashboardURL    = "/dashboard/"
	applicationsURL = "/security/applications/"
)

// transitions is the legal graph. Rejected and sticker released are terminal.
var transitions = map[models.Status][]models.Status{
	models.StatusNoApplication:   {models.StatusSubmitted},
	models.StatusSubmitted:       {models.StatusInitialApproval, models.StatusRejected},
	models.StatusInitialApproval: {models.StatusFinalApproval, models.StatusRejected},
	models.StatusFinalApproval:   {models.StatusApproved, models.StatusRejected, models.StatusStickerReleased},
	models.StatusApproved:        {models.StatusStickerReleased},
}

// CanTransition reports whether from -> to is an edge of the approval graph.
func CanTransition(from, to models.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// sourcesOf returns every status with an edge into to, in graph order.
func sourcesOf(to models.Status, among ...models.Status) []models.Status {
	var out []models.Status
	for _, from := range among {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

func denied(msg, redirect string) error {
	return errors.NewPermissionDeniedError(msg, redirect)
}

// securityGate rejects anyone who is not a security user with a profile.
func securityGate(actor models.Actor) error {
	if !actor.HasSecurityProfile() {
		return denied(msgNoPermission, dashboardURL)
	}
	return nil
}

func requireOIC(actor models.Actor) error {
	if err := securityGate(actor); err != nil {
		return err
	}
	if !actor.IsLevel(models.LevelOIC) {
		return denied(msgOnlyOIC, applicationsURL)
	}
	return nil
}

func requireDirector(actor models.Actor) error {
	if err := securityGate(actor); err != nil {
		return err
	}
	if !actor.IsLevel(models.LevelDirector) {
		return denied(msgOnlyDirector, applicationsURL)
	}
	return nil
}

func requireDirectorOrAdmin(actor models.Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	return requireDirector(actor)
}

func requireApplicant(actor models.Actor) error {
	if actor.Kind != models.ActorUser {
		return denied(msgNoPermission, dashboardURL)
	}
	return nil
}

func requireDecision(decision models.Status, allowed ...models.Status) error {
	for _, a := range allowed {
		if decision == a {
			return nil
		}
	}
	return errors.NewValidationError("Invalid decision.", errors.FieldError{
		Field:   "decision",
		Message: "Select a valid choice.",
	})
}
