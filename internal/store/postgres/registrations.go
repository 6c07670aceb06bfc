package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/lib/pq"

	"veripass/internal/common/database"
	"veripass/internal/models"
	"veripass/internal/store"
)

const registrationColumns = `id, registration_number, user_id, vehicle_id, status, remarks,
	initial_approved_by, final_approved_by, files, printed_name, e_signature,
	signature_date, date_of_filing, sticker_released_date, updated_at`

const vehicleColumns = `id, user_id, make_model, plate_number, year_model, color, type,
	engine_number, chassis_number, or_number, cr_number, is_owner,
	owner_firstname, owner_middlename, owner_lastname, owner_suffix,
	relationship_to_owner, owner_contact, owner_address`

// Step 1 only overwrites fields the applicant filled in.
const updateApplicantSQL = `
	UPDATE users SET
		firstname       = COALESCE(NULLIF($2, ''), firstname),
		middlename      = COALESCE(NULLIF($3, ''), middlename),
		lastname        = COALESCE(NULLIF($4, ''), lastname),
		suffix          = COALESCE(NULLIF($5, ''), suffix),
		address         = COALESCE(NULLIF($6, ''), address),
		contact         = COALESCE(NULLIF($7, ''), contact),
		corporate_email = COALESCE(NULLIF($8, ''), corporate_email),
		dl_number       = COALESCE(NULLIF($9, ''), dl_number),
		school_role     = COALESCE(NULLIF($10, ''), school_role),
		position        = COALESCE(NULLIF($11, ''), position),
		workplace       = COALESCE(NULLIF($12, ''), workplace),
		college         = COALESCE(NULLIF($13, ''), college),
		program         = COALESCE(NULLIF($14, ''), program),
		year_level      = COALESCE(NULLIF($15, ''), year_level),
		family          = family || $16::jsonb
	WHERE id = $1`

const insertVehicleSQL = `
	INSERT INTO vehicles (user_id, make_model, plate_number, year_model, color, type,
		engine_number, chassis_number, or_number, cr_number, is_owner,
		owner_firstname, owner_middlename, owner_lastname, owner_suffix,
		relationship_to_owner, owner_contact, owner_address)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	RETURNING id`

const insertRegistrationSQL = `
	INSERT INTO registrations (user_id, vehicle_id, status, files, printed_name, e_signature,
		signature_date, date_of_filing, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $7, $7)
	RETURNING ` + registrationColumns

const transitionSQL = `
	UPDATE registrations SET
		status                = $2,
		remarks               = COALESCE($3, remarks),
		initial_approved_by   = COALESCE($4, initial_approved_by),
		final_approved_by     = COALESCE($5, final_approved_by),
		sticker_released_date = COALESCE($6, sticker_released_date),
		updated_at            = $7
	WHERE id = $1 AND status = ANY($8)
	RETURNING ` + registrationColumns

const batchTransitionSQL = `
	UPDATE registrations SET
		status                = $2,
		remarks               = COALESCE($3, remarks),
		initial_approved_by   = COALESCE($4, initial_approved_by),
		final_approved_by     = COALESCE($5, final_approved_by),
		sticker_released_date = COALESCE($6, sticker_released_date),
		updated_at            = $7
	WHERE id = ANY($1) AND status = $8
	RETURNING ` + registrationColumns

func scanRegistration(row rowScanner) (*models.Registration, error) {
	var (
		r       models.Registration
		status  string
		initial sql.NullInt64
		final   sql.NullInt64
		sticker sql.NullTime
	)
	if err := row.Scan(
		&r.ID, &r.RegistrationNumber, &r.UserID, &r.VehicleID, &status, &r.Remarks,
		&initial, &final, &r.Files, &r.PrintedName, &r.ESignature,
		&r.SignatureDate, &r.DateOfFiling, &sticker, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	r.Status = models.Status(status)
	r.InitialApprovedBy = int64Ptr(initial)
	r.FinalApprovedBy = int64Ptr(final)
	if sticker.Valid {
		t := sticker.Time
		r.StickerReleasedDate = &t
	}
	return &r, nil
}

func scanVehicle(row rowScanner) (*models.Vehicle, error) {
	var v models.Vehicle
	if err := row.Scan(
		&v.ID, &v.UserID, &v.MakeModel, &v.PlateNumber, &v.YearModel, &v.Color, &v.Type,
		&v.EngineNumber, &v.ChassisNumber, &v.ORNumber, &v.CRNumber, &v.IsOwner,
		&v.OwnerFirstname, &v.OwnerMiddlename, &v.OwnerLastname, &v.OwnerSuffix,
		&v.RelationshipToOwner, &v.OwnerContact, &v.OwnerAddress,
	); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) CreateSubmission(ctx context.Context, sub *models.Submission) (*models.Registration, error) {
	var reg *models.Registration
	err := s.db.WithTx(ctx, func(q database.Querier) error {
		p := sub.Personal
		res, err := q.ExecContext(ctx, updateApplicantSQL,
			sub.UserID, p.Firstname, p.Middlename, p.Lastname, p.Suffix, p.Address, p.Contact,
			p.CorporateEmail, p.DLNumber, p.SchoolRole, p.Position, p.Workplace,
			p.College, p.Program, p.YearLevel, p.FamilyInfo,
		)
		if err != nil {
			return fmt.Errorf("update applicant profile: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("user %d: %w", sub.UserID, store.ErrNotFound)
		}

		v := sub.Vehicle.ToVehicle(sub.UserID)
		if err := q.QueryRowContext(ctx, insertVehicleSQL,
			v.UserID, v.MakeModel, v.PlateNumber, v.YearModel, v.Color, v.Type,
			v.EngineNumber, v.ChassisNumber, v.ORNumber, v.CRNumber, v.IsOwner,
			v.OwnerFirstname, v.OwnerMiddlename, v.OwnerLastname, v.OwnerSuffix,
			v.RelationshipToOwner, v.OwnerContact, v.OwnerAddress,
		).Scan(&v.ID); err != nil {
			return fmt.Errorf("insert vehicle: %w", err)
		}

		a := sub.Attestation
		reg, err = scanRegistration(q.QueryRowContext(ctx, insertRegistrationSQL,
			sub.UserID, v.ID, string(models.StatusSubmitted),
			a.GoogleDriveLink, a.PrintedName, a.ESignature, sub.FiledAt,
		))
		if err != nil {
			return fmt.Errorf("insert registration: %w", err)
		}
		reg.Vehicle = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (s *Store) GetRegistration(ctx context.Context, id int64) (*models.Registration, error) {
	reg, err := scanRegistration(s.db.DB.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "registration", id)
	}
	return reg, nil
}

func (s *Store) GetVehicle(ctx context.Context, id int64) (*models.Vehicle, error) {
	v, err := scanVehicle(s.db.DB.QueryRowContext(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "vehicle", id)
	}
	return v, nil
}

func (s *Store) TransitionStatus(ctx context.Context, id int64, from []models.Status, upd store.StatusUpdate) (*models.Registration, error) {
	reg, err := scanRegistration(s.db.DB.QueryRowContext(ctx, transitionSQL,
		id, string(upd.To), nullableString(upd.Remarks),
		nullableInt64(upd.InitialApprovedBy), nullableInt64(upd.FinalApprovedBy),
		upd.StickerReleasedDate, upd.At, pq.Array(statusStrings(from)),
	))
	if err == nil {
		return reg, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transition registration %d: %w", id, err)
	}

	var current string
	if err := s.db.DB.QueryRowContext(ctx, `SELECT status FROM registrations WHERE id = $1`, id).Scan(&current); err != nil {
		return nil, notFound(err, "registration", id)
	}
	return nil, &store.StatusConflict{ID: id, Current: models.Status(current)}
}

func (s *Store) BatchTransition(ctx context.Context, ids []int64, from models.Status, upd store.StatusUpdate) ([]*models.Registration, error) {
	rows, err := s.db.DB.QueryContext(ctx, batchTransitionSQL,
		pq.Array(ids), string(upd.To), nullableString(upd.Remarks),
		nullableInt64(upd.InitialApprovedBy), nullableInt64(upd.FinalApprovedBy),
		upd.StickerReleasedDate, upd.At, string(from),
	)
	if err != nil {
		return nil, fmt.Errorf("batch transition: %w", err)
	}
	defer rows.Close()

	var out []*models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func statusStrings(statuses []models.Status) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}
