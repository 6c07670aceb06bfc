// Package memory is a mutex-guarded store.Store used by tests and local
// runs without Postgres. It keeps the compare-and-set and claim semantics
// of the Postgres implementation.
package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"veripass/internal/models"
	"veripass/internal/store"
)

const firstRegistrationNumber = 1001

type Store struct {
	mu sync.Mutex

	users         map[int64]*models.User
	security      map[int64]*models.SecurityProfile // by user id
	admins        map[int64]*models.AdminProfile    // by user id
	vehicles      map[int64]*models.Vehicle
	registrations map[int64]*models.Registration
	notifications map[int64]*models.Notification
	jobs          map[int64]*models.EmailJob
	announcements map[int64]*models.Announcement

	seq        map[string]int64
	nextNumber int64
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:         map[int64]*models.User{},
		security:      map[int64]*models.SecurityProfile{},
		admins:        map[int64]*models.AdminProfile{},
		vehicles:      map[int64]*models.Vehicle{},
		registrations: map[int64]*models.Registration{},
		notifications: map[int64]*models.Notification{},
		jobs:          map[int64]*models.EmailJob{},
		announcements: map[int64]*models.Announcement{},
		seq:           map[string]int64{},
		nextNumber:    firstRegistrationNumber,
	}
}

func (s *Store) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

// AddUser seeds a user. A zero ID is assigned.
func (s *Store) AddUser(u models.User) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.next("users")
	} else if u.ID > s.seq["users"] {
		s.seq["users"] = u.ID
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.ID] = &u
	cp := u
	return &cp
}

// AddSecurityProfile seeds a security profile and sets the user's role.
func (s *Store) AddSecurityProfile(userID int64, level models.SecurityLevel) *models.SecurityProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &models.SecurityProfile{
		ID:          s.next("security_profiles"),
		UserID:      userID,
		BadgeNumber: models.DefaultBadgeNumber,
		JobTitle:    models.DefaultJobTitle,
		Level:       level,
	}
	s.security[userID] = p
	if u, ok := s.users[userID]; ok {
		u.Role = models.RoleSecurity
	}
	cp := *p
	return &cp
}

// AddAdminProfile seeds an admin profile and sets the user's role.
func (s *Store) AddAdminProfile(userID int64) *models.AdminProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.insertAdminLocked(userID)
	if u, ok := s.users[userID]; ok {
		u.Role = models.RoleAdmin
	}
	cp := *p
	return &cp
}

func (s *Store) insertAdminLocked(userID int64) *models.AdminProfile {
	p := &models.AdminProfile{
		ID:      s.next("admin_profiles"),
		UserID:  userID,
		AdminID: s.next("admin_id"),
	}
	s.admins[userID] = p
	return p
}

// Notifications returns every notification for userID, expired or not,
// oldest first.
func (s *Store) Notifications(userID int64) []*models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Notification
	for _, n := range s.notifications {
		if n.RecipientID == userID {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Jobs returns every queue row in id order.
func (s *Store) Jobs() []*models.EmailJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.EmailJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddJob seeds a queue row with defaults applied.
func (s *Store) AddJob(job models.EmailJob) *models.EmailJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertJobLocked(&job)
	cp := job
	return &cp
}

func missing(what string, id int64) error {
	return fmt.Errorf("%s %d: %w", what, id, store.ErrNotFound)
}
