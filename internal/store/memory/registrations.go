package memory

import (
	"context"
	"sort"

	"veripass/internal/models"
	"veripass/internal/store"
)

func (s *Store) CreateSubmission(_ context.Context, sub *models.Submission) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[sub.UserID]
	if !ok {
		return nil, missing("user", sub.UserID)
	}
	applyPersonal(u, &sub.Personal)

	veh := sub.Vehicle.ToVehicle(sub.UserID)
	veh.ID = s.next("vehicles")
	s.vehicles[veh.ID] = veh

	reg := &models.Registration{
		ID:                 s.next("registrations"),
		RegistrationNumber: s.nextNumber,
		UserID:             sub.UserID,
		VehicleID:          veh.ID,
		Status:             models.StatusSubmitted,
		Files:              sub.Attestation.GoogleDriveLink,
		PrintedName:        sub.Attestation.PrintedName,
		ESignature:         sub.Attestation.ESignature,
		SignatureDate:      sub.FiledAt,
		DateOfFiling:       sub.FiledAt,
		UpdatedAt:          sub.FiledAt,
	}
	s.nextNumber++
	s.registrations[reg.ID] = reg

	out := copyRegistration(reg)
	vcp := *veh
	out.Vehicle = &vcp
	return out, nil
}

// applyPersonal overwrites only the fields step 1 filled in.
func applyPersonal(u *models.User, p *models.PersonalInfo) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&u.Firstname, p.Firstname)
	set(&u.Middlename, p.Middlename)
	set(&u.Lastname, p.Lastname)
	set(&u.Suffix, p.Suffix)
	set(&u.Address, p.Address)
	set(&u.Contact, p.Contact)
	set(&u.CorporateEmail, p.CorporateEmail)
	set(&u.DLNumber, p.DLNumber)
	set(&u.SchoolRole, p.SchoolRole)
	set(&u.Position, p.Position)
	set(&u.Workplace, p.Workplace)
	set(&u.College, p.College)
	set(&u.Program, p.Program)
	set(&u.YearLevel, p.YearLevel)

	f := &u.Family
	set(&f.FatherName, p.FatherName)
	set(&f.FatherContact, p.FatherContact)
	set(&f.FatherAddress, p.FatherAddress)
	set(&f.MotherName, p.MotherName)
	set(&f.MotherContact, p.MotherContact)
	set(&f.MotherAddress, p.MotherAddress)
	set(&f.GuardianName, p.GuardianName)
	set(&f.GuardianContact, p.GuardianContact)
	set(&f.GuardianAddress, p.GuardianAddress)
}

func (s *Store) GetRegistration(_ context.Context, id int64) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.registrations[id]
	if !ok {
		return nil, missing("registration", id)
	}
	return copyRegistration(reg), nil
}

func (s *Store) GetVehicle(_ context.Context, id int64) (*models.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vehicles[id]
	if !ok {
		return nil, missing("vehicle", id)
	}
	cp := *v
	return &cp, nil
}

func (s *Store) TransitionStatus(_ context.Context, id int64, from []models.Status, upd store.StatusUpdate) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.registrations[id]
	if !ok {
		return nil, missing("registration", id)
	}
	if !statusIn(reg.Status, from) {
		return nil, &store.StatusConflict{ID: id, Current: reg.Status}
	}
	apply(reg, upd)
	return copyRegistration(reg), nil
}

func (s *Store) BatchTransition(_ context.Context, ids []int64, from models.Status, upd store.StatusUpdate) ([]*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var out []*models.Registration
	seen := map[int64]bool{}
	for _, id := range sorted {
		if seen[id] {
			continue
		}
		seen[id] = true
		reg, ok := s.registrations[id]
		if !ok || reg.Status != from {
			continue
		}
		apply(reg, upd)
		out = append(out, copyRegistration(reg))
	}
	return out, nil
}

func apply(reg *models.Registration, upd store.StatusUpdate) {
	reg.Status = upd.To
	if upd.Remarks != nil {
		reg.Remarks = *upd.Remarks
	}
	if upd.InitialApprovedBy != nil {
		v := *upd.InitialApprovedBy
		reg.InitialApprovedBy = &v
	}
	if upd.FinalApprovedBy != nil {
		v := *upd.FinalApprovedBy
		reg.FinalApprovedBy = &v
	}
	if upd.StickerReleasedDate != nil {
		v := *upd.StickerReleasedDate
		reg.StickerReleasedDate = &v
	}
	reg.UpdatedAt = upd.At
}

func statusIn(st models.Status, set []models.Status) bool {
	for _, s := range set {
		if s == st {
			return true
		}
	}
	return false
}

func copyRegistration(r *models.Registration) *models.Registration {
	cp := *r
	if r.InitialApprovedBy != nil {
		v := *r.InitialApprovedBy
		cp.InitialApprovedBy = &v
	}
	if r.FinalApprovedBy != nil {
		v := *r.FinalApprovedBy
		cp.FinalApprovedBy = &v
	}
	if r.StickerReleasedDate != nil {
		v := *r.StickerReleasedDate
		cp.StickerReleasedDate = &v
	}
	cp.Vehicle = nil
	return &cp
}
