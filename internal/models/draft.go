package models

import "time"

// PersonalInfo is step 1 of the registration wizard.
type PersonalInfo struct {
	Firstname      string `json:"firstname"`
	Middlename     string `json:"middlename,omitempty"`
	Lastname       string `json:"lastname"`
	Suffix         string `json:"suffix,omitempty"`
	Address        string `json:"address"`
	Contact        string `json:"contact"`
	CorporateEmail string `json:"corporate_email"`
	DLNumber       string `json:"dl_number"`
	SchoolRole     string `json:"school_role"`

	// employees
	Position  string `json:"position,omitempty"`
	Workplace string `json:"workplace,omitempty"`

	// students
	College   string `json:"college,omitempty"`
	Program   string `json:"program,omitempty"`
	YearLevel string `json:"year_level,omitempty"`

	FamilyInfo
}

// VehicleInfo is step 2.
type VehicleInfo struct {
	MakeModel           string `json:"make_model"`
	PlateNumber         string `json:"plate_number"`
	YearModel           int    `json:"year_model"`
	Color               string `json:"color"`
	Type                string `json:"type"`
	EngineNumber        string `json:"engine_number"`
	ChassisNumber       string `json:"chassis_number"`
	ORNumber            string `json:"or_number"`
	CRNumber            string `json:"cr_number"`
	Owner               string `json:"owner"` // "yes" or "no"
	OwnerFirstname      string `json:"owner_firstname,omitempty"`
	OwnerMiddlename     string `json:"owner_middlename,omitempty"`
	OwnerLastname       string `json:"owner_lastname,omitempty"`
	OwnerSuffix         string `json:"owner_suffix,omitempty"`
	RelationshipToOwner string `json:"relationship_to_owner,omitempty"`
	ContactNumber       string `json:"contact_number,omitempty"`
	OwnerAddress        string `json:"owner_address,omitempty"`
}

// IsOwner reports whether the applicant declared they own the vehicle.
func (v VehicleInfo) IsOwner() bool { return v.Owner == "yes" }

// ToVehicle converts the step data to a vehicle row for userID.
func (v VehicleInfo) ToVehicle(userID int64) *Vehicle {
	veh := &Vehicle{
		UserID:        userID,
		MakeModel:     v.MakeModel,
		PlateNumber:   v.PlateNumber,
		YearModel:     v.YearModel,
		Color:         v.Color,
		Type:          v.Type,
		EngineNumber:  v.EngineNumber,
		ChassisNumber: v.ChassisNumber,
		ORNumber:      v.ORNumber,
		CRNumber:      v.CRNumber,
		IsOwner:       v.IsOwner(),
	}
	if !veh.IsOwner {
		veh.OwnerFirstname = v.OwnerFirstname
		veh.OwnerMiddlename = v.OwnerMiddlename
		veh.OwnerLastname = v.OwnerLastname
		veh.OwnerSuffix = v.OwnerSuffix
		veh.RelationshipToOwner = v.RelationshipToOwner
		veh.OwnerContact = v.ContactNumber
		veh.OwnerAddress = v.OwnerAddress
	}
	return veh
}

// Attestation is step 3.
type Attestation struct {
	GoogleDriveLink string `json:"google_drive_link"`
	PrintedName     string `json:"printed_name"`
	ESignature      string `json:"e_signature"`
}

// RegistrationDraft holds wizard progress for one user session until step 3
// commits it.
type RegistrationDraft struct {
	UserID    int64         `json:"user_id"`
	SessionID string        `json:"session_id"`
	Personal  *PersonalInfo `json:"personal,omitempty"`
	Vehicle   *VehicleInfo  `json:"vehicle,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// CompletedSteps returns how many consecutive steps are filled.
func (d *RegistrationDraft) CompletedSteps() int {
	if d == nil || d.Personal == nil {
		return 0
	}
	if d.Vehicle == nil {
		return 1
	}
	return 2
}
