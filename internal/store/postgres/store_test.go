package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veripass/internal/common/database"
	"veripass/internal/models"
	"veripass/internal/store"
)

var fixedTime = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(database.NewPostgresFromDB(db)), mock
}

var registrationCols = []string{
	"id", "registration_number", "user_id", "vehicle_id", "status", "remarks",
	"initial_approved_by", "final_approved_by", "files", "printed_name", "e_signature",
	"signature_date", "date_of_filing", "sticker_released_date", "updated_at",
}

func registrationRows(rows ...[]driver.Value) *sqlmock.Rows {
	r := sqlmock.NewRows(registrationCols)
	for _, row := range rows {
		r.AddRow(row...)
	}
	return r
}

func regRow(id, number int64, status string, initial, final driver.Value) []driver.Value {
	return []driver.Value{
		id, number, int64(7), int64(11), status, "",
		initial, final, "https://drive.google.com/drive/folders/x", "Juan Dela Cruz", "sig.png",
		fixedTime, fixedTime, nil, fixedTime,
	}
}

var jobCols = []string{
	"id", "recipient_id", "recipient_email", "notification_type", "title", "message",
	"email_subject", "email_body", "status", "attempts", "max_attempts", "scheduled_for",
	"processed_at", "last_error", "related_object_type", "related_object_id", "created_at", "updated_at",
}

func jobRow(id int64, status string, attempts int, created time.Time) []driver.Value {
	return []driver.Value{
		id, int64(7), "juan@psu.edu.ph", "application_update", "Initial Approval Received", "msg",
		"Vehicle Pass Application - Initial Approval", "body", status, attempts, 3, fixedTime,
		nil, "", "registration", int64(1001), created, fixedTime,
	}
}

func TestMigrate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_version").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_version").WithArgs(schemaVersion).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionStatus(t *testing.T) {
	remarks := "Looks complete"
	profile := int64(9)
	upd := store.StatusUpdate{To: models.StatusInitialApproval, Remarks: &remarks, InitialApprovedBy: &profile, At: fixedTime}
	from := []models.Status{models.StatusSubmitted}

	tests := []struct {
		name      string
		mock      func(mock sqlmock.Sqlmock)
		wantErr   error
		wantState models.Status
	}{
		{
			name: "applies when status matches",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("UPDATE registrations SET").
					WithArgs(int64(5), "initial approval", "Looks complete", int64(9), nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnRows(registrationRows(regRow(5, 1001, "initial approval", int64(9), nil)))
			},
			wantState: models.StatusInitialApproval,
		},
		{
			name: "conflict when status differs",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("UPDATE registrations SET").WillReturnRows(registrationRows())
				mock.ExpectQuery("SELECT status FROM registrations").
					WithArgs(int64(5)).
					WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("approved"))
			},
			wantErr: store.ErrConflict,
		},
		{
			name: "not found",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("UPDATE registrations SET").WillReturnRows(registrationRows())
				mock.ExpectQuery("SELECT status FROM registrations").WillReturnRows(sqlmock.NewRows([]string{"status"}))
			},
			wantErr: store.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			tt.mock(mock)

			reg, err := s.TransitionStatus(context.Background(), 5, from, upd)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantState, reg.Status)
				require.NotNil(t, reg.InitialApprovedBy)
				assert.Equal(t, int64(9), *reg.InitialApprovedBy)
				assert.Nil(t, reg.FinalApprovedBy)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTransitionStatus_ConflictCarriesCurrent(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("UPDATE registrations SET").WillReturnRows(registrationRows())
	mock.ExpectQuery("SELECT status FROM registrations").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("rejected"))

	_, err := s.TransitionStatus(context.Background(), 5, []models.Status{models.StatusSubmitted},
		store.StatusUpdate{To: models.StatusInitialApproval, At: fixedTime})

	var conflict *store.StatusConflict
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, models.StatusRejected, conflict.Current)
}

func TestBatchTransition_SortsByID(t *testing.T) {
	s, mock := newMockStore(t)
	remarks := "Batch approved on 2025-03-14"
	director := int64(3)

	mock.ExpectQuery("UPDATE registrations SET").
		WithArgs(sqlmock.AnyArg(), "final approval", remarks, nil, int64(3), nil, sqlmock.AnyArg(), "initial approval").
		WillReturnRows(registrationRows(
			regRow(9, 1009, "final approval", int64(2), int64(3)),
			regRow(4, 1004, "final approval", int64(2), int64(3)),
		))

	regs, err := s.BatchTransition(context.Background(), []int64{4, 6, 9}, models.StatusInitialApproval,
		store.StatusUpdate{To: models.StatusFinalApproval, Remarks: &remarks, FinalApprovedBy: &director, At: fixedTime})
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, int64(4), regs[0].ID)
	assert.Equal(t, int64(9), regs[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSubmission(t *testing.T) {
	sub := &models.Submission{
		UserID:      7,
		Personal:    models.PersonalInfo{Firstname: "Juan", Lastname: "Dela Cruz", SchoolRole: models.SchoolRoleStudent},
		Vehicle:     models.VehicleInfo{MakeModel: "Toyota Vios", PlateNumber: "ABC 123", YearModel: 2020, Owner: "yes"},
		Attestation: models.Attestation{GoogleDriveLink: "https://drive.google.com/x", PrintedName: "Juan Dela Cruz", ESignature: "sig.png"},
		FiledAt:     fixedTime,
	}

	t.Run("commits profile vehicle and registration", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE users SET").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("INSERT INTO vehicles").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
		mock.ExpectQuery("INSERT INTO registrations").
			WithArgs(int64(7), int64(11), "application submitted", sub.Attestation.GoogleDriveLink, sub.Attestation.PrintedName, sub.Attestation.ESignature, fixedTime).
			WillReturnRows(registrationRows(regRow(1, 1001, "application submitted", nil, nil)))
		mock.ExpectCommit()

		reg, err := s.CreateSubmission(context.Background(), sub)
		require.NoError(t, err)
		assert.Equal(t, int64(1001), reg.RegistrationNumber)
		assert.Equal(t, models.StatusSubmitted, reg.Status)
		require.NotNil(t, reg.Vehicle)
		assert.Equal(t, int64(11), reg.Vehicle.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when applicant is missing", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE users SET").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := s.CreateSubmission(context.Background(), sub)
		assert.True(t, errors.Is(err, store.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when registration insert fails", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE users SET").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("INSERT INTO vehicles").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
		mock.ExpectQuery("INSERT INTO registrations").WillReturnError(errors.New("unique violation"))
		mock.ExpectRollback()

		_, err := s.CreateSubmission(context.Background(), sub)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReconcileRole(t *testing.T) {
	tests := []struct {
		name string
		role models.Role
		mock func(mock sqlmock.Sqlmock)
	}{
		{
			name: "security creates guard profile and drops admin",
			role: models.RoleSecurity,
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO security_profiles").
					WithArgs(int64(4), "0000", "Security", "guard").
					WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectExec("DELETE FROM admin_profiles").WithArgs(int64(4)).WillReturnResult(sqlmock.NewResult(0, 0))
			},
		},
		{
			name: "admin creates admin profile and drops security",
			role: models.RoleAdmin,
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO admin_profiles").WithArgs(int64(4)).WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectExec("DELETE FROM security_profiles").WithArgs(int64(4)).WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "user drops both",
			role: models.RoleUser,
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("DELETE FROM security_profiles").WithArgs(int64(4)).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec("DELETE FROM admin_profiles").WithArgs(int64(4)).WillReturnResult(sqlmock.NewResult(0, 0))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			mock.ExpectBegin()
			mock.ExpectExec("UPDATE users SET role").WithArgs(int64(4), string(tt.role)).WillReturnResult(sqlmock.NewResult(0, 1))
			tt.mock(mock)
			mock.ExpectCommit()

			require.NoError(t, s.ReconcileRole(context.Background(), 4, tt.role))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestClaimPending_FIFOAndSkipLocked(t *testing.T) {
	s, mock := newMockStore(t)

	older := fixedTime.Add(-time.Hour)
	mock.ExpectQuery(`(?s)UPDATE notification_queue.*attempts = attempts \+ 1.*FOR UPDATE SKIP LOCKED`).
		WithArgs(sqlmock.AnyArg(), 10).
		WillReturnRows(sqlmock.NewRows(jobCols).
			AddRow(jobRow(8, "processing", 1, fixedTime)...).
			AddRow(jobRow(3, "processing", 2, older)...))

	jobs, err := s.ClaimPending(context.Background(), 10, fixedTime)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, int64(3), jobs[0].ID)
	assert.Equal(t, int64(8), jobs[1].ID)
	assert.Equal(t, models.JobProcessing, jobs[0].Status)
	require.NotNil(t, jobs[0].RelatedObjectID)
	assert.Equal(t, int64(1001), *jobs[0].RelatedObjectID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimByID(t *testing.T) {
	t.Run("claims pending row", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery("UPDATE notification_queue").
			WithArgs(int64(3), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(jobCols).AddRow(jobRow(3, "processing", 0, fixedTime)...))

		job, err := s.ClaimByID(context.Background(), 3, fixedTime)
		require.NoError(t, err)
		assert.Equal(t, 0, job.Attempts)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("conflict when already claimed", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery("UPDATE notification_queue").WillReturnRows(sqlmock.NewRows(jobCols))
		mock.ExpectQuery("SELECT status FROM notification_queue").
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("processing"))

		_, err := s.ClaimByID(context.Background(), 3, fixedTime)
		assert.True(t, errors.Is(err, store.ErrConflict))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestQueueOutcomes(t *testing.T) {
	t.Run("mark sent", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec("SET status = 'sent'").WithArgs(int64(3), fixedTime).WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, s.MarkSent(context.Background(), 3, fixedTime))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("retry sets schedule", func(t *testing.T) {
		s, mock := newMockStore(t)
		next := fixedTime.Add(30 * time.Minute)
		mock.ExpectExec("SET status = 'pending', last_error = \\$2, scheduled_for").
			WithArgs(int64(3), "smtp down", next, fixedTime).
			WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, s.MarkRetry(context.Background(), 3, "smtp down", next, fixedTime))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed on row no longer processing", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec("SET status = 'failed'").WillReturnResult(sqlmock.NewResult(0, 0))
		err := s.MarkFailed(context.Background(), 3, "smtp down", fixedTime)
		assert.True(t, errors.Is(err, store.ErrConflict))
	})

	t.Run("unclaim gives back the attempt", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec("attempts = GREATEST\\(attempts - 1, 0\\)").
			WithArgs(int64(3), fixedTime).
			WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, s.Unclaim(context.Background(), 3, fixedTime))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reclaim stale", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec("CASE WHEN attempts >= max_attempts").
			WithArgs(fixedTime.Add(-15*time.Minute), fixedTime).
			WillReturnResult(sqlmock.NewResult(0, 3))
		n, err := s.ReclaimStale(context.Background(), fixedTime.Add(-15*time.Minute), fixedTime)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})
}

func TestCreateWithEmail(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO notifications").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(21)))
	mock.ExpectQuery("INSERT INTO notification_queue").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(31)))
	mock.ExpectCommit()

	n := &models.Notification{RecipientID: 7, Title: "t", Message: "m", NotificationType: models.NotificationApplicationUpdate}
	job := &models.EmailJob{RecipientID: 7, RecipientEmail: "juan@psu.edu.ph", NotificationType: models.NotificationApplicationUpdate}
	require.NoError(t, s.CreateWithEmail(context.Background(), n, job))

	assert.Equal(t, int64(21), n.ID)
	assert.Equal(t, int64(31), job.ID)
	assert.Equal(t, models.DefaultMaxAttempts, job.MaxAttempts)
	assert.Equal(t, models.JobPending, job.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationQueries(t *testing.T) {
	cols := []string{"id", "recipient_id", "title", "message", "notification_type", "is_read", "read_at", "expires_at", "action_url", "created_at"}

	t.Run("list filters expired and unread", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery("FROM notifications").
			WithArgs(int64(7), fixedTime, true, 20, 0).
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow(int64(2), int64(7), "b", "m", "application_update", false, nil, nil, "/user/pass-status/", fixedTime))

		list, err := s.ListNotifications(context.Background(), 7, store.NotificationFilter{UnreadOnly: true, Limit: 20, Now: fixedTime})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "/user/pass-status/", list[0].ActionURL)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("mark read of someone else's notification", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec("UPDATE notifications").WithArgs(int64(2), int64(7), fixedTime).WillReturnResult(sqlmock.NewResult(0, 0))
		err := s.MarkRead(context.Background(), 7, 2, fixedTime)
		assert.True(t, errors.Is(err, store.ErrNotFound))
	})

	t.Run("mark all read returns count", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec("UPDATE notifications").WithArgs(int64(7), fixedTime).WillReturnResult(sqlmock.NewResult(0, 4))
		n, err := s.MarkAllRead(context.Background(), 7, fixedTime)
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
	})

	t.Run("unread count", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery("SELECT COUNT").WithArgs(int64(7), fixedTime).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(5)))
		n, err := s.UnreadCount(context.Background(), 7, fixedTime)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)
	})
}

func TestCreateAnnouncement(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO announcements").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	for i := 0; i < 2; i++ {
		mock.ExpectQuery("INSERT INTO notifications").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(100 + i)))
	}
	mock.ExpectQuery("INSERT INTO notification_queue").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(200)))
	mock.ExpectCommit()

	a := &models.Announcement{Title: "Gate 2 closed", Message: "m", PostedBy: 1, DatePosted: fixedTime}
	notes := []*models.Notification{{RecipientID: 7}, {RecipientID: 8}}
	jobs := []*models.EmailJob{{RecipientID: 7}}
	require.NoError(t, s.CreateAnnouncement(context.Background(), a, notes, jobs))
	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(101), notes[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListBroadcastRecipients(t *testing.T) {
	cols := []string{"id", "corporate_email", "firstname", "middlename", "lastname", "suffix", "address",
		"contact", "dl_number", "school_role", "position", "workplace", "college", "program", "year_level",
		"family", "role", "created_at"}

	s, mock := newMockStore(t)
	mock.ExpectQuery("WHERE school_role = ANY").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(7), "juan@psu.edu.ph", "Juan", "", "Dela Cruz", "", "", "", "", "student", "", "", "", "", "", []byte(`{"father_name":"Jose"}`), "user", fixedTime))

	users, err := s.ListBroadcastRecipients(context.Background(), false, []string{"student"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Jose", users[0].Family.FatherName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
