package registration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"veripass/internal/common/errors"
	"veripass/internal/common/logger"
	"veripass/internal/common/validation"
	"veripass/internal/models"
)

const correctErrorsMessage = "Please correct the errors below."

// Submitter commits a finished wizard. workflow.Service implements it.
type Submitter interface {
	Submit(ctx context.Context, actor models.Actor, sub *models.Submission) (*models.Registration, error)
}

type Wizard struct {
	drafts    DraftStore
	submitter Submitter
	logger    logger.Logger
	now       func() time.Time
}

func NewWizard(drafts DraftStore, submitter Submitter, log logger.Logger) *Wizard {
	return &Wizard{
		drafts:    drafts,
		submitter: submitter,
		logger:    logger.ForComponent(log, "wizard"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// GetDraft returns the session's draft, or an empty one.
func (w *Wizard) GetDraft(ctx context.Context, actor models.Actor, sessionID string) (*models.RegistrationDraft, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	draft, err := w.drafts.Load(ctx, actor.UserID, sessionID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		draft = &models.RegistrationDraft{UserID: actor.UserID, SessionID: sessionID}
	}
	return draft, nil
}

// SavePersonal validates and stores step 1.
func (w *Wizard) SavePersonal(ctx context.Context, actor models.Actor, sessionID string, in models.PersonalInfo) (*models.RegistrationDraft, error) {
	trimPersonal(&in)
	if err := check(personalSchema, in); err != nil {
		return nil, err
	}
	draft, err := w.GetDraft(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	draft.Personal = &in
	return draft, w.save(ctx, draft)
}

// SaveVehicle validates and stores step 2. Step 1 must be saved first.
func (w *Wizard) SaveVehicle(ctx context.Context, actor models.Actor, sessionID string, in models.VehicleInfo) (*models.RegistrationDraft, error) {
	draft, err := w.GetDraft(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	if draft.CompletedSteps() < 1 {
		return nil, stepMissing(1)
	}

	trimVehicle(&in)
	if err := check(vehicleSchema, in); err != nil {
		return nil, err
	}
	if in.IsOwner() {
		clearOwner(&in)
	}
	draft.Vehicle = &in
	return draft, w.save(ctx, draft)
}

// Complete validates step 3 and commits the whole draft as one submission.
// The draft is deleted only after the commit succeeds. A second Complete on
// the same session while one is running gets a state conflict.
func (w *Wizard) Complete(ctx context.Context, actor models.Actor, sessionID string, in models.Attestation) (*models.Registration, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	locked, err := w.drafts.LockSubmit(ctx, actor.UserID, sessionID, SubmitLockTTL)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, errors.NewSubmissionInProgressError(sessionID)
	}
	defer func() {
		if err := w.drafts.UnlockSubmit(context.WithoutCancel(ctx), actor.UserID, sessionID); err != nil {
			w.logger.Warn("submit unlock failed", map[string]interface{}{
				"userId":    actor.UserID,
				"sessionId": sessionID,
				"error":     err,
			})
		}
	}()

	// loaded under the lock so a finished commit's deleted draft is seen
	draft, err := w.GetDraft(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	switch draft.CompletedSteps() {
	case 0:
		return nil, stepMissing(1)
	case 1:
		return nil, stepMissing(2)
	}

	in.GoogleDriveLink = strings.TrimSpace(in.GoogleDriveLink)
	in.PrintedName = strings.TrimSpace(in.PrintedName)
	if err := check(attestationSchema, in); err != nil {
		return nil, err
	}

	reg, err := w.submitter.Submit(ctx, actor, &models.Submission{
		UserID:      actor.UserID,
		Personal:    *draft.Personal,
		Vehicle:     *draft.Vehicle,
		Attestation: in,
		FiledAt:     w.now(),
	})
	if err != nil {
		return nil, err
	}

	if err := w.drafts.Delete(ctx, actor.UserID, sessionID); err != nil {
		w.logger.Warn("draft cleanup failed", map[string]interface{}{
			"userId":    actor.UserID,
			"sessionId": sessionID,
			"error":     err,
		})
	}
	return reg, nil
}

// Discard drops the session's draft.
func (w *Wizard) Discard(ctx context.Context, actor models.Actor, sessionID string) error {
	if err := requireSession(sessionID); err != nil {
		return err
	}
	return w.drafts.Delete(ctx, actor.UserID, sessionID)
}

func (w *Wizard) save(ctx context.Context, draft *models.RegistrationDraft) error {
	draft.UpdatedAt = w.now()
	return w.drafts.Save(ctx, draft)
}

func check(schema *validation.Schema, doc interface{}) error {
	vr, err := schema.Validate(doc)
	if err != nil {
		return errors.NewInternalError(err)
	}
	return vr.AsError(correctErrorsMessage)
}

func stepMissing(step int) error {
	return errors.NewValidationError(fmt.Sprintf("Please complete Step %d first.", step))
}

func requireSession(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.NewValidationError("Missing wizard session.", errors.FieldError{
			Field:   "session_id",
			Message: "This field is required.",
		})
	}
	return nil
}

func trimPersonal(p *models.PersonalInfo) {
	for _, f := range []*string{
		&p.Firstname, &p.Middlename, &p.Lastname, &p.Suffix, &p.Address, &p.Contact,
		&p.CorporateEmail, &p.DLNumber, &p.SchoolRole, &p.Position, &p.Workplace,
		&p.College, &p.Program, &p.YearLevel,
	} {
		*f = strings.TrimSpace(*f)
	}
	p.SchoolRole = strings.ToLower(p.SchoolRole)
}

func trimVehicle(v *models.VehicleInfo) {
	for _, f := range []*string{
		&v.MakeModel, &v.PlateNumber, &v.Color, &v.Type, &v.EngineNumber, &v.ChassisNumber,
		&v.ORNumber, &v.CRNumber, &v.Owner, &v.OwnerFirstname, &v.OwnerMiddlename,
		&v.OwnerLastname, &v.OwnerSuffix, &v.RelationshipToOwner, &v.ContactNumber, &v.OwnerAddress,
	} {
		*f = strings.TrimSpace(*f)
	}
	v.Owner = strings.ToLower(v.Owner)
	v.PlateNumber = strings.ToUpper(v.PlateNumber)
}

func clearOwner(v *models.VehicleInfo) {
	v.OwnerFirstname, v.OwnerMiddlename, v.OwnerLastname, v.OwnerSuffix = "", "", "", ""
	v.RelationshipToOwner, v.ContactNumber, v.OwnerAddress = "", "", ""
}
