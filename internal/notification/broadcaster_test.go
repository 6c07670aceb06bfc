package notification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veripass/internal/common/errors"
	"veripass/internal/models"
	"veripass/internal/store/memory"
)

func seedAudience(st *memory.Store) (admin *models.User, students []*models.User) {
	admin = st.AddUser(models.User{Firstname: "Maria", Lastname: "Santos", CorporateEmail: "gso@psu.edu.ph"})
	st.AddAdminProfile(admin.ID)
	for _, email := range []string{"a@psu.edu.ph", "b@psu.edu.ph", "c@psu.edu.ph"} {
		students = append(students, st.AddUser(models.User{CorporateEmail: email, SchoolRole: models.SchoolRoleStudent}))
	}
	st.AddUser(models.User{CorporateEmail: "prof@psu.edu.ph", SchoolRole: models.SchoolRoleFacultyStaff, Role: models.RoleSecurity})
	return admin, students
}

func TestBroadcast_FanOut(t *testing.T) {
	tests := []struct {
		name      string
		sendEmail bool
		wantJobs  int
	}{
		{"email enabled", true, 3},
		{"email disabled", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := memory.New()
			admin, students := seedAudience(st)
			b := NewBroadcaster(st, 3, newTestLogger(t))
			b.now = func() time.Time { return fixedNow }

			res, err := b.Broadcast(context.Background(), models.NewAdminActor(admin.ID, 1), AnnouncementInput{
				Title:       "Gate 2 closed",
				Message:     "Use Gate 1 until Friday.",
				TargetRoles: []string{models.SchoolRoleStudent},
				SendEmail:   tt.sendEmail,
			})
			require.NoError(t, err)
			assert.Equal(t, 3, res.Recipients)
			assert.Equal(t, tt.wantJobs, res.EmailsQueued)
			assert.NotZero(t, res.AnnouncementID)

			for _, s := range students {
				notes := st.Notifications(s.ID)
				require.Len(t, notes, 1)
				assert.Equal(t, models.NotificationSystemAnnouncement, notes[0].NotificationType)
			}
			jobs := st.Jobs()
			assert.Len(t, jobs, tt.wantJobs)
			for _, j := range jobs {
				assert.Equal(t, "Announcement: Gate 2 closed", j.EmailSubject)
				assert.Equal(t, models.JobPending, j.Status, "broadcasts rely on the queue processor")
				assert.Contains(t, j.EmailBody, "Posted by: Maria Santos")
			}
		})
	}
}

func TestBroadcast_SendToAllTargetsUserRole(t *testing.T) {
	st := memory.New()
	admin, _ := seedAudience(st)
	b := NewBroadcaster(st, 3, newTestLogger(t))

	res, err := b.Broadcast(context.Background(), models.NewAdminActor(admin.ID, 1), AnnouncementInput{
		Title: "Holiday", Message: "Office closed.", SendToAll: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Recipients, "admin and security accounts are excluded")
}

func TestBroadcast_Rejections(t *testing.T) {
	st := memory.New()
	admin, students := seedAudience(st)
	b := NewBroadcaster(st, 3, newTestLogger(t))

	_, err := b.Broadcast(context.Background(), models.NewUserActor(students[0].ID), AnnouncementInput{Title: "x", Message: "y", SendToAll: true})
	assert.True(t, errors.Is(err, errors.ErrCodePermissionDenied))

	_, err = b.Broadcast(context.Background(), models.NewAdminActor(admin.ID, 1), AnnouncementInput{Title: "  ", Message: "y", SendToAll: true})
	require.True(t, errors.Is(err, errors.ErrCodeValidationFailed))
	stdErr, _ := errors.AsStandard(err)
	assert.Equal(t, "title", stdErr.Fields[0].Field)

	_, err = b.Broadcast(context.Background(), models.NewAdminActor(admin.ID, 1), AnnouncementInput{Title: "x", Message: "y"})
	assert.True(t, errors.Is(err, errors.ErrCodeValidationFailed), "targeted broadcast needs roles")

	assert.Empty(t, st.Jobs())
}
