package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"veripass/internal/common/logger"
	"veripass/internal/mail"
	"veripass/internal/models"
	"veripass/internal/store/memory"
)

type testLogger struct {
	t *testing.T
}

func (tl *testLogger) Debug(msg string, fields map[string]interface{}) {
	tl.t.Logf("DEBUG: %s %v", msg, fields)
}

func (tl *testLogger) Info(msg string, fields map[string]interface{}) {
	tl.t.Logf("INFO: %s %v", msg, fields)
}

func (tl *testLogger) Warn(msg string, fields map[string]interface{}) {
	tl.t.Logf("WARN: %s %v", msg, fields)
}

func (tl *testLogger) Error(msg string, fields map[string]interface{}) {
	tl.t.Logf("ERROR: %s %v", msg, fields)
}

func (tl *testLogger) WithFields(fields map[string]interface{}) logger.Logger {
	return tl
}

func (tl *testLogger) WithError(err error) logger.Logger {
	return tl.WithFields(map[string]interface{}{"error": err})
}

func (tl *testLogger) With(fields map[string]interface{}) logger.Logger {
	return tl
}

func newTestLogger(t *testing.T) logger.Logger {
	return &testLogger{t: t}
}

// fakeSender records deliveries and fails while fail is set. onSend, when
// set, runs at the start of every call.
type fakeSender struct {
	mu     sync.Mutex
	sent   []mail.Message
	fail   bool
	onSend func()
}

var errSMTPDown = errors.New("smtp: 421 service not available")

func (f *fakeSender) Send(_ context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onSend != nil {
		f.onSend()
	}
	if f.fail {
		return errSMTPDown
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeSMS struct {
	phones []string
	err    error
}

func (f *fakeSMS) SendSMS(_ context.Context, phone, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.phones = append(f.phones, phone)
	return nil
}

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

// seedRegistration creates an applicant with one submitted registration.
func seedRegistration(t *testing.T, st *memory.Store) (*models.User, *models.Registration) {
	t.Helper()
	u := st.AddUser(models.User{
		CorporateEmail: "juan@psu.edu.ph",
		Firstname:      "Juan",
		Lastname:       "Dela Cruz",
		Contact:        "+639171234567",
		SchoolRole:     models.SchoolRoleStudent,
	})
	reg, err := st.CreateSubmission(context.Background(), &models.Submission{
		UserID:      u.ID,
		Vehicle:     models.VehicleInfo{MakeModel: "Toyota Vios", PlateNumber: "ABC 123", Owner: "yes"},
		Attestation: models.Attestation{GoogleDriveLink: "https://drive.google.com/x", PrintedName: "Juan Dela Cruz", ESignature: "sig"},
		FiledAt:     fixedNow,
	})
	require.NoError(t, err)
	return u, reg
}
