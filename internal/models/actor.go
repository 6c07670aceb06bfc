package models

// ActorKind tags which fields of an Actor are meaningful.
type ActorKind string

const (
	ActorUser     ActorKind = "user"
	ActorSecurity ActorKind = "security"
	ActorAdmin    ActorKind = "admin"
)

// Actor is the authenticated caller of a workflow operation, resolved once
// per request from the user's role and profile rows.
//
// SecurityProfileID is zero for a security user whose profile row is
// missing. Such an actor is denied every transition.
type Actor struct {
	Kind              ActorKind     `json:"kind"`
	UserID            int64         `json:"user_id"`
	SecurityProfileID int64         `json:"security_profile_id,omitempty"`
	Level             SecurityLevel `json:"level,omitempty"`
	AdminProfileID    int64         `json:"admin_profile_id,omitempty"`
}

func NewUserActor(userID int64) Actor {
	return Actor{Kind: ActorUser, UserID: userID}
}

func NewSecurityActor(userID, profileID int64, level SecurityLevel) Actor {
	return Actor{Kind: ActorSecurity, UserID: userID, SecurityProfileID: profileID, Level: level}
}

func NewAdminActor(userID, profileID int64) Actor {
	return Actor{Kind: ActorAdmin, UserID: userID, AdminProfileID: profileID}
}

func (a Actor) IsAdmin() bool { return a.Kind == ActorAdmin }

func (a Actor) IsSecurity() bool { return a.Kind == ActorSecurity }

// HasSecurityProfile reports whether a security actor has a profile row.
func (a Actor) HasSecurityProfile() bool {
	return a.Kind == ActorSecurity && a.SecurityProfileID > 0
}

// IsLevel reports whether a is a security actor with a profile at level.
func (a Actor) IsLevel(level SecurityLevel) bool {
	return a.HasSecurityProfile() && a.Level == level
}
