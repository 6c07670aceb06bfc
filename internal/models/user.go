package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Role is the account-level role stored on users.role.
type Role string

const (
	RoleUser     Role = "user"
	RoleSecurity Role = "security"
	RoleAdmin    Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleUser, RoleSecurity, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// School roles an applicant can declare in step 1.
const (
	SchoolRoleStudent            = "student"
	SchoolRoleFacultyStaff       = "faculty & staff"
	SchoolRoleUniversityOfficial = "university official"
)

// SecurityLevel gates which approval actions a security user may take.
type SecurityLevel string

const (
	LevelGuard    SecurityLevel = "guard"
	LevelOIC      SecurityLevel = "oic"
	LevelDirector SecurityLevel = "director"
)

// User is the applicant profile. Personal fields are filled by step 1 of
// the registration wizard.
type User struct {
	ID             int64      `json:"id" db:"id"`
	CorporateEmail string     `json:"corporate_email" db:"corporate_email"`
	Firstname      string     `json:"firstname" db:"firstname"`
	Middlename     string     `json:"middlename,omitempty" db:"middlename"`
	Lastname       string     `json:"lastname" db:"lastname"`
	Suffix         string     `json:"suffix,omitempty" db:"suffix"`
	Address        string     `json:"address,omitempty" db:"address"`
	Contact        string     `json:"contact,omitempty" db:"contact"`
	DLNumber       string     `json:"dl_number,omitempty" db:"dl_number"`
	SchoolRole     string     `json:"school_role,omitempty" db:"school_role"`
	Position       string     `json:"position,omitempty" db:"position"`
	Workplace      string     `json:"workplace,omitempty" db:"workplace"`
	College        string     `json:"college,omitempty" db:"college"`
	Program        string     `json:"program,omitempty" db:"program"`
	YearLevel      string     `json:"year_level,omitempty" db:"year_level"`
	Family         FamilyInfo `json:"family" db:"family"`
	Role           Role       `json:"role" db:"role"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// FullName is "First Last".
func (u *User) FullName() string {
	return u.Firstname + " " + u.Lastname
}

// FamilyInfo is stored as a jsonb column.
type FamilyInfo struct {
	FatherName      string `json:"father_name,omitempty"`
	FatherContact   string `json:"father_contact,omitempty"`
	FatherAddress   string `json:"father_address,omitempty"`
	MotherName      string `json:"mother_name,omitempty"`
	MotherContact   string `json:"mother_contact,omitempty"`
	MotherAddress   string `json:"mother_address,omitempty"`
	GuardianName    string `json:"guardian_name,omitempty"`
	GuardianContact string `json:"guardian_contact,omitempty"`
	GuardianAddress string `json:"guardian_address,omitempty"`
}

// Value encodes f as JSON text. Empty fields are omitted so a jsonb merge
// keeps existing values.
func (f FamilyInfo) Value() (driver.Value, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (f *FamilyInfo) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*f = FamilyInfo{}
		return nil
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	default:
		return fmt.Errorf("family info: unsupported scan type %T", src)
	}
}

type SecurityProfile struct {
	ID          int64         `json:"id" db:"id"`
	UserID      int64         `json:"user_id" db:"user_id"`
	BadgeNumber string        `json:"badge_number" db:"badge_number"`
	JobTitle    string        `json:"job_title" db:"job_title"`
	Level       SecurityLevel `json:"level" db:"level"`
}

type AdminProfile struct {
	ID      int64 `json:"id" db:"id"`
	UserID  int64 `json:"user_id" db:"user_id"`
	AdminID int64 `json:"admin_id" db:"admin_id"`
}

// Defaults for a security profile created by role reconciliation.
const (
	DefaultBadgeNumber = "0000"
	DefaultJobTitle    = "Security"
)
