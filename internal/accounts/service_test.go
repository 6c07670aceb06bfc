package accounts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veripass/internal/common/errors"
	"veripass/internal/common/logger"
	"veripass/internal/models"
	"veripass/internal/store/memory"
)

func TestResolveActor(t *testing.T) {
	st := memory.New()
	applicant := st.AddUser(models.User{CorporateEmail: "a@psu.edu.ph"})
	oic := st.AddUser(models.User{CorporateEmail: "oic@psu.edu.ph"})
	oicProfile := st.AddSecurityProfile(oic.ID, models.LevelOIC)
	orphan := st.AddUser(models.User{CorporateEmail: "g@psu.edu.ph", Role: models.RoleSecurity})
	admin := st.AddUser(models.User{CorporateEmail: "admin@psu.edu.ph"})
	adminProfile := st.AddAdminProfile(admin.ID)

	svc := NewService(st, logger.NewTestLogger(t))
	ctx := context.Background()

	tests := []struct {
		name   string
		userID int64
		want   models.Actor
	}{
		{"applicant", applicant.ID, models.NewUserActor(applicant.ID)},
		{"oic", oic.ID, models.NewSecurityActor(oic.ID, oicProfile.ID, models.LevelOIC)},
		{"security without profile", orphan.ID, models.NewSecurityActor(orphan.ID, 0, "")},
		{"admin", admin.ID, models.NewAdminActor(admin.ID, adminProfile.ID)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ResolveActor(ctx, tt.userID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	got, _ := svc.ResolveActor(ctx, orphan.ID)
	assert.False(t, got.HasSecurityProfile())

	_, err := svc.ResolveActor(ctx, 999)
	assert.True(t, errors.Is(err, errors.ErrCodeUnauthenticated))
}

func TestChangeRole(t *testing.T) {
	st := memory.New()
	target := st.AddUser(models.User{CorporateEmail: "a@psu.edu.ph"})
	admin := st.AddUser(models.User{CorporateEmail: "admin@psu.edu.ph"})
	adminActor := models.NewAdminActor(admin.ID, st.AddAdminProfile(admin.ID).ID)
	svc := NewService(st, logger.NewTestLogger(t))
	ctx := context.Background()

	require.NoError(t, svc.ChangeRole(ctx, adminActor, target.ID, "security"))
	actor, err := svc.ResolveActor(ctx, target.ID)
	require.NoError(t, err)
	assert.True(t, actor.IsLevel(models.LevelGuard))

	require.NoError(t, svc.ChangeRole(ctx, adminActor, target.ID, "admin"))
	_, err = st.GetSecurityProfileByUser(ctx, target.ID)
	assert.Error(t, err, "security profile removed")
	actor, err = svc.ResolveActor(ctx, target.ID)
	require.NoError(t, err)
	assert.True(t, actor.IsAdmin())

	require.NoError(t, svc.ChangeRole(ctx, adminActor, target.ID, "user"))
	_, err = st.GetAdminProfileByUser(ctx, target.ID)
	assert.Error(t, err, "admin profile removed")

	err = svc.ChangeRole(ctx, models.NewUserActor(target.ID), target.ID, "admin")
	assert.True(t, errors.Is(err, errors.ErrCodePermissionDenied))

	err = svc.ChangeRole(ctx, adminActor, target.ID, "superuser")
	assert.True(t, errors.Is(err, errors.ErrCodeValidationFailed))

	err = svc.ChangeRole(ctx, adminActor, 999, "user")
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}
