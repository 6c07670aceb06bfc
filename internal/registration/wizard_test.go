package registration

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veripass/internal/common/errors"
	"veripass/internal/common/logger"
	"veripass/internal/models"
)

// MockSubmitter captures the committed submission.
type MockSubmitter struct {
	SubmitFunc func(ctx context.Context, actor models.Actor, sub *models.Submission) (*models.Registration, error)
	Got        *models.Submission
}

func (m *MockSubmitter) Submit(ctx context.Context, actor models.Actor, sub *models.Submission) (*models.Registration, error) {
	m.Got = sub
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, actor, sub)
	}
	return &models.Registration{ID: 1, RegistrationNumber: 1001, Status: models.StatusSubmitted}, nil
}

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestWizard(t *testing.T) (*Wizard, *RedisDraftStore, *MockSubmitter) {
	st, _ := newMiniredisStore(t, time.Hour)
	sub := &MockSubmitter{}
	w := NewWizard(st, sub, logger.NewTestLogger(t))
	w.now = func() time.Time { return fixedNow }
	return w, st, sub
}

func validPersonal() models.PersonalInfo {
	return models.PersonalInfo{
		Firstname:      " Juan ",
		Lastname:       "Dela Cruz",
		Address:        "Puerto Princesa",
		Contact:        "09171234567",
		CorporateEmail: "juan@psu.edu.ph",
		DLNumber:       "N01-23-456789",
		SchoolRole:     "Student",
		College:        "CCS",
	}
}

func validVehicle() models.VehicleInfo {
	return models.VehicleInfo{
		MakeModel:     "Toyota Vios",
		PlateNumber:   "abc 123",
		YearModel:     2019,
		Color:         "Silver",
		Type:          "Sedan",
		EngineNumber:  "2NR1234567",
		ChassisNumber: "MHF123",
		ORNumber:      "OR-1",
		CRNumber:      "CR-1",
		Owner:         "yes",
	}
}

func validAttestation() models.Attestation {
	return models.Attestation{
		GoogleDriveLink: "https://drive.google.com/drive/folders/abc",
		PrintedName:     "Juan Dela Cruz",
		ESignature:      "data:image/png;base64,AAAA",
	}
}

var applicant = models.NewUserActor(7)

func TestWizard_HappyPath(t *testing.T) {
	w, st, sub := newTestWizard(t)
	ctx := context.Background()

	draft, err := w.SavePersonal(ctx, applicant, "s1", validPersonal())
	require.NoError(t, err)
	assert.Equal(t, "Juan", draft.Personal.Firstname)
	assert.Equal(t, models.SchoolRoleStudent, draft.Personal.SchoolRole)
	assert.Equal(t, fixedNow, draft.UpdatedAt)

	v := validVehicle()
	v.OwnerFirstname = "ignored"
	draft, err = w.SaveVehicle(ctx, applicant, "s1", v)
	require.NoError(t, err)
	assert.Equal(t, "ABC 123", draft.Vehicle.PlateNumber)
	assert.Empty(t, draft.Vehicle.OwnerFirstname, "owner fields are dropped for owners")
	assert.Equal(t, 2, draft.CompletedSteps())

	reg, err := w.Complete(ctx, applicant, "s1", validAttestation())
	require.NoError(t, err)
	assert.Equal(t, int64(1001), reg.RegistrationNumber)

	require.NotNil(t, sub.Got)
	assert.Equal(t, int64(7), sub.Got.UserID)
	assert.Equal(t, "Juan", sub.Got.Personal.Firstname)
	assert.Equal(t, "Toyota Vios", sub.Got.Vehicle.MakeModel)
	assert.Equal(t, fixedNow, sub.Got.FiledAt)

	left, err := st.Load(ctx, 7, "s1")
	require.NoError(t, err)
	assert.Nil(t, left, "draft removed after commit")
}

func TestWizard_StepOrdering(t *testing.T) {
	w, _, sub := newTestWizard(t)
	ctx := context.Background()

	_, err := w.SaveVehicle(ctx, applicant, "s1", validVehicle())
	assertMessage(t, err, "Please complete Step 1 first.")

	_, err = w.Complete(ctx, applicant, "s1", validAttestation())
	assertMessage(t, err, "Please complete Step 1 first.")

	_, err = w.SavePersonal(ctx, applicant, "s1", validPersonal())
	require.NoError(t, err)
	_, err = w.Complete(ctx, applicant, "s1", validAttestation())
	assertMessage(t, err, "Please complete Step 2 first.")

	assert.Nil(t, sub.Got)
}

func TestWizard_FieldRules(t *testing.T) {
	tests := []struct {
		name      string
		run       func(w *Wizard) error
		wantField string
	}{
		{
			name: "missing firstname",
			run: func(w *Wizard) error {
				p := validPersonal()
				p.Firstname = "   "
				_, err := w.SavePersonal(context.Background(), applicant, "s", p)
				return err
			},
			wantField: "firstname",
		},
		{
			name: "unknown school role",
			run: func(w *Wizard) error {
				p := validPersonal()
				p.SchoolRole = "alumni"
				_, err := w.SavePersonal(context.Background(), applicant, "s", p)
				return err
			},
			wantField: "school_role",
		},
		{
			name: "year out of range",
			run: func(w *Wizard) error {
				v := validVehicle()
				v.YearModel = 1900
				return saveBoth(w, v)
			},
			wantField: "year_model",
		},
		{
			name: "color too long",
			run: func(w *Wizard) error {
				v := validVehicle()
				v.Color = "Metallic Pearl White Blue"
				return saveBoth(w, v)
			},
			wantField: "color",
		},
		{
			name: "non-owner without owner name",
			run: func(w *Wizard) error {
				v := validVehicle()
				v.Owner = "no"
				v.RelationshipToOwner = "Father"
				v.ContactNumber = "09171234567"
				v.OwnerLastname = "Dela Cruz"
				return saveBoth(w, v)
			},
			wantField: "owner_firstname",
		},
		{
			name: "drive link is not a uri",
			run: func(w *Wizard) error {
				if err := saveBoth(w, validVehicle()); err != nil {
					return err
				}
				a := validAttestation()
				a.GoogleDriveLink = "not a link"
				_, err := w.Complete(context.Background(), applicant, "s", a)
				return err
			},
			wantField: "google_drive_link",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _, _ := newTestWizard(t)
			err := tt.run(w)
			stdErr, ok := errors.AsStandard(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, errors.ErrCodeValidationFailed, stdErr.Code)
			var fields []string
			for _, f := range stdErr.Fields {
				fields = append(fields, f.Field)
			}
			assert.Contains(t, fields, tt.wantField)
		})
	}
}

func TestWizard_NonOwnerAccepted(t *testing.T) {
	w, _, _ := newTestWizard(t)
	v := validVehicle()
	v.Owner = "no"
	v.OwnerFirstname = "Pedro"
	v.OwnerLastname = "Dela Cruz"
	v.RelationshipToOwner = "Father"
	v.ContactNumber = "09171234567"
	require.NoError(t, saveBoth(w, v))
}

func TestWizard_SubmitFailureKeepsDraft(t *testing.T) {
	w, st, sub := newTestWizard(t)
	ctx := context.Background()
	require.NoError(t, saveBoth(w, validVehicle()))
	sub.SubmitFunc = func(context.Context, models.Actor, *models.Submission) (*models.Registration, error) {
		return nil, stderrors.New("tx aborted")
	}

	_, err := w.Complete(ctx, applicant, "s", validAttestation())
	require.Error(t, err)

	draft, err := st.Load(ctx, 7, "s")
	require.NoError(t, err)
	require.NotNil(t, draft)
	assert.Equal(t, 2, draft.CompletedSteps())
}

func TestWizard_CompleteRunsOncePerSession(t *testing.T) {
	w, st, sub := newTestWizard(t)
	ctx := context.Background()
	require.NoError(t, saveBoth(w, validVehicle()))

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls int
	sub.SubmitFunc = func(context.Context, models.Actor, *models.Submission) (*models.Registration, error) {
		calls++
		close(entered)
		<-release
		return &models.Registration{ID: 1, RegistrationNumber: 1001, Status: models.StatusSubmitted}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := w.Complete(ctx, applicant, "s", validAttestation())
		done <- err
	}()
	<-entered

	_, err := w.Complete(ctx, applicant, "s", validAttestation())
	assert.True(t, errors.Is(err, errors.ErrCodeStateConflict), "got %v", err)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, calls)

	// the lock is gone and so is the draft, so a late retry cannot commit again
	_, err = w.Complete(ctx, applicant, "s", validAttestation())
	assertMessage(t, err, "Please complete Step 1 first.")
	assert.Equal(t, 1, calls)

	left, err := st.Load(ctx, 7, "s")
	require.NoError(t, err)
	assert.Nil(t, left)
}

func TestWizard_SessionRequired(t *testing.T) {
	w, _, _ := newTestWizard(t)
	_, err := w.GetDraft(context.Background(), applicant, "")
	assert.True(t, errors.Is(err, errors.ErrCodeValidationFailed))
	assert.True(t, errors.Is(w.Discard(context.Background(), applicant, " "), errors.ErrCodeValidationFailed))
}

func saveBoth(w *Wizard, v models.VehicleInfo) error {
	if _, err := w.SavePersonal(context.Background(), applicant, "s", validPersonal()); err != nil {
		return err
	}
	_, err := w.SaveVehicle(context.Background(), applicant, "s", v)
	return err
}

func assertMessage(t *testing.T, err error, want string) {
	t.Helper()
	stdErr, ok := errors.AsStandard(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, errors.ErrCodeValidationFailed, stdErr.Code)
	assert.Equal(t, want, stdErr.Message)
}
