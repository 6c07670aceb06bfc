package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"veripass/internal/common/database"
	"veripass/internal/models"
	"veripass/internal/store"
)

const userColumns = `id, corporate_email, firstname, middlename, lastname, suffix, address,
	contact, dl_number, school_role, position, workplace, college, program, year_level,
	family, role, created_at`

const (
	insertAdminProfileSQL    = `INSERT INTO admin_profiles (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`
	insertSecurityProfileSQL = `INSERT INTO security_profiles (user_id, badge_number, job_title, level)
		VALUES ($1, $2, $3, $4) ON CONFLICT (user_id) DO NOTHING`
	deleteAdminProfileSQL    = `DELETE FROM admin_profiles WHERE user_id = $1`
	deleteSecurityProfileSQL = `DELETE FROM security_profiles WHERE user_id = $1`
)

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var role string
	if err := row.Scan(
		&u.ID, &u.CorporateEmail, &u.Firstname, &u.Middlename, &u.Lastname, &u.Suffix, &u.Address,
		&u.Contact, &u.DLNumber, &u.SchoolRole, &u.Position, &u.Workplace, &u.College, &u.Program, &u.YearLevel,
		&u.Family, &role, &u.CreatedAt,
	); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(s.db.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return u, nil
}

func (s *Store) GetSecurityProfileByUser(ctx context.Context, userID int64) (*models.SecurityProfile, error) {
	var p models.SecurityProfile
	var level string
	err := s.db.DB.QueryRowContext(ctx, `
		SELECT id, user_id, badge_number, job_title, level
		FROM security_profiles
		WHERE user_id = $1`, userID,
	).Scan(&p.ID, &p.UserID, &p.BadgeNumber, &p.JobTitle, &level)
	if err != nil {
		return nil, notFound(err, "security profile for user", userID)
	}
	p.Level = models.SecurityLevel(level)
	return &p, nil
}

func (s *Store) GetAdminProfileByUser(ctx context.Context, userID int64) (*models.AdminProfile, error) {
	var p models.AdminProfile
	err := s.db.DB.QueryRowContext(ctx, `
		SELECT id, user_id, admin_id
		FROM admin_profiles
		WHERE user_id = $1`, userID,
	).Scan(&p.ID, &p.UserID, &p.AdminID)
	if err != nil {
		return nil, notFound(err, "admin profile for user", userID)
	}
	return &p, nil
}

func (s *Store) ReconcileRole(ctx context.Context, userID int64, role models.Role) error {
	return s.db.WithTx(ctx, func(q database.Querier) error {
		res, err := q.ExecContext(ctx, `UPDATE users SET role = $2 WHERE id = $1`, userID, string(role))
		if err != nil {
			return fmt.Errorf("update role: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("user %d: %w", userID, store.ErrNotFound)
		}

		exec := func(query string, args ...interface{}) error {
			if _, err := q.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("reconcile %s profile: %w", role, err)
			}
			return nil
		}

		switch role {
		case models.RoleAdmin:
			if err := exec(insertAdminProfileSQL, userID); err != nil {
				return err
			}
			return exec(deleteSecurityProfileSQL, userID)
		case models.RoleSecurity:
			if err := exec(insertSecurityProfileSQL, userID, models.DefaultBadgeNumber, models.DefaultJobTitle, string(models.LevelGuard)); err != nil {
				return err
			}
			return exec(deleteAdminProfileSQL, userID)
		default:
			if err := exec(deleteSecurityProfileSQL, userID); err != nil {
				return err
			}
			return exec(deleteAdminProfileSQL, userID)
		}
	})
}

func (s *Store) ListBroadcastRecipients(ctx context.Context, sendToAll bool, schoolRoles []string) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = 'user' ORDER BY id`
	args := []interface{}{}
	if !sendToAll {
		query = `SELECT ` + userColumns + ` FROM users WHERE school_role = ANY($1) ORDER BY id`
		args = append(args, pq.Array(schoolRoles))
	}

	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list broadcast recipients: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
