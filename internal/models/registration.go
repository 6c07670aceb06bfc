// internal/models/registration.go
package models

import "time"

// Registration is one vehicle pass application. Rows are never deleted.
type Registration struct {
	ID                  int64      `json:"id" db:"id"`
	RegistrationNumber  int64      `json:"registration_number" db:"registration_number"`
	UserID              int64      `json:"user_id" db:"user_id"`
	VehicleID           int64      `json:"vehicle_id" db:"vehicle_id"`
	Status              Status     `json:"status" db:"status"`
	Remarks             string     `json:"remarks,omitempty" db:"remarks"`
	InitialApprovedBy   *int64     `json:"initial_approved_by,omitempty" db:"initial_approved_by"`
	FinalApprovedBy     *int64     `json:"final_approved_by,omitempty" db:"final_approved_by"`
	Files               string     `json:"files" db:"files"`
	PrintedName         string     `json:"printed_name" db:"printed_name"`
	ESignature          string     `json:"e_signature" db:"e_signature"`
	SignatureDate       time.Time  `json:"signature_date" db:"signature_date"`
	DateOfFiling        time.Time  `json:"date_of_filing" db:"date_of_filing"`
	StickerReleasedDate *time.Time `json:"sticker_released_date,omitempty" db:"sticker_released_date"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`

	// Vehicle is populated by reads that join vehicles.
	Vehicle *Vehicle `json:"vehicle,omitempty" db:"-"`
}

// Vehicle holds the step 2 data. Owner fields are set only when the
// applicant is not the registered owner.
type Vehicle struct {
	ID                  int64  `json:"id" db:"id"`
	UserID              int64  `json:"user_id" db:"user_id"`
	MakeModel           string `json:"make_model" db:"make_model"`
	PlateNumber         string `json:"plate_number" db:"plate_number"`
	YearModel           int    `json:"year_model" db:"year_model"`
	Color               string `json:"color" db:"color"`
	Type                string `json:"type" db:"type"`
	EngineNumber        string `json:"engine_number" db:"engine_number"`
	ChassisNumber       string `json:"chassis_number" db:"chassis_number"`
	ORNumber            string `json:"or_number" db:"or_number"`
	CRNumber            string `json:"cr_number" db:"cr_number"`
	IsOwner             bool   `json:"is_owner" db:"is_owner"`
	OwnerFirstname      string `json:"owner_firstname,omitempty" db:"owner_firstname"`
	OwnerMiddlename     string `json:"owner_middlename,omitempty" db:"owner_middlename"`
	OwnerLastname       string `json:"owner_lastname,omitempty" db:"owner_lastname"`
	OwnerSuffix         string `json:"owner_suffix,omitempty" db:"owner_suffix"`
	RelationshipToOwner string `json:"relationship_to_owner,omitempty" db:"relationship_to_owner"`
	OwnerContact        string `json:"contact_number,omitempty" db:"owner_contact"`
	OwnerAddress        string `json:"owner_address,omitempty" db:"owner_address"`
}

// Submission is everything the final wizard step commits in one transaction.
type Submission struct {
	UserID      int64
	Personal    PersonalInfo
	Vehicle     VehicleInfo
	Attestation Attestation
	FiledAt     time.Time
}

// Related object type recorded on queue rows created for registrations.
const RelatedObjectRegistration = "registration"
