package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"application submitted", StatusSubmitted, false},
		{"  Initial Approval ", StatusInitialApproval, false},
		{"STICKER RELEASED", StatusStickerReleased, false},
		{"No Application", StatusNoApplication, false},
		{"pending", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusTitle(t *testing.T) {
	assert.Equal(t, "Application Submitted", StatusSubmitted.Title())
	assert.Equal(t, "Sticker Released", StatusStickerReleased.Title())
	assert.False(t, StatusNoApplication.Storable())
	assert.True(t, StatusRejected.IsTerminal())
}

func TestActor(t *testing.T) {
	assert.True(t, NewSecurityActor(1, 9, LevelOIC).IsLevel(LevelOIC))
	assert.False(t, NewSecurityActor(1, 0, LevelDirector).IsLevel(LevelDirector))
	assert.False(t, NewUserActor(1).HasSecurityProfile())
	assert.True(t, NewAdminActor(1, 2).IsAdmin())
}

func TestFamilyInfoScan(t *testing.T) {
	in := FamilyInfo{FatherName: "Jose", GuardianContact: "0917"}
	v, err := in.Value()
	require.NoError(t, err)

	var out FamilyInfo
	require.NoError(t, out.Scan(v))
	assert.Equal(t, in, out)

	require.NoError(t, out.Scan(nil))
	assert.Equal(t, FamilyInfo{}, out)
	assert.Error(t, out.Scan(42))
}

func TestVehicleInfoToVehicle(t *testing.T) {
	info := VehicleInfo{MakeModel: "Toyota Vios", PlateNumber: "ABC 123", Owner: "no", OwnerFirstname: "Ana", ContactNumber: "+639123456789"}
	v := info.ToVehicle(7)
	assert.False(t, v.IsOwner)
	assert.Equal(t, "Ana", v.OwnerFirstname)
	assert.Equal(t, "+639123456789", v.OwnerContact)

	info.Owner = "yes"
	v = info.ToVehicle(7)
	assert.Empty(t, v.OwnerFirstname)
}

func TestPersonalInfoFlattensFamily(t *testing.T) {
	p := PersonalInfo{Firstname: "Juan", FamilyInfo: FamilyInfo{MotherName: "Maria"}}
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"mother_name":"Maria"`)
}

func TestDraftCompletedSteps(t *testing.T) {
	var d *RegistrationDraft
	assert.Equal(t, 0, d.CompletedSteps())
	d = &RegistrationDraft{Personal: &PersonalInfo{}}
	assert.Equal(t, 1, d.CompletedSteps())
	d.Vehicle = &VehicleInfo{}
	assert.Equal(t, 2, d.CompletedSteps())
}

func TestNotificationExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	n := &Notification{ExpiresAt: &past}
	assert.True(t, n.Expired(now))
	assert.False(t, (&Notification{}).Expired(now))
}
