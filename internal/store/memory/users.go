package memory

import (
	"context"
	"sort"

	"veripass/internal/models"
)

func (s *Store) GetUser(_ context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, missing("user", id)
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetSecurityProfileByUser(_ context.Context, userID int64) (*models.SecurityProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.security[userID]
	if !ok {
		return nil, missing("security profile for user", userID)
	}
	cp := *p
	return &cp, nil
}

func (s *Store) GetAdminProfileByUser(_ context.Context, userID int64) (*models.AdminProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.admins[userID]
	if !ok {
		return nil, missing("admin profile for user", userID)
	}
	cp := *p
	return &cp, nil
}

func (s *Store) ReconcileRole(_ context.Context, userID int64, role models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return missing("user", userID)
	}
	u.Role = role

	switch role {
	case models.RoleAdmin:
		if _, ok := s.admins[userID]; !ok {
			s.insertAdminLocked(userID)
		}
		delete(s.security, userID)
	case models.RoleSecurity:
		if _, ok := s.security[userID]; !ok {
			s.security[userID] = &models.SecurityProfile{
				ID:          s.next("security_profiles"),
				UserID:      userID,
				BadgeNumber: models.DefaultBadgeNumber,
				JobTitle:    models.DefaultJobTitle,
				Level:       models.LevelGuard,
			}
		}
		delete(s.admins, userID)
	default:
		delete(s.security, userID)
		delete(s.admins, userID)
	}
	return nil
}

func (s *Store) ListBroadcastRecipients(_ context.Context, sendToAll bool, schoolRoles []string) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roles := map[string]bool{}
	for _, r := range schoolRoles {
		roles[r] = true
	}

	var out []*models.User
	for _, u := range s.users {
		if sendToAll && u.Role != models.RoleUser {
			continue
		}
		if !sendToAll && !roles[u.SchoolRole] {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
