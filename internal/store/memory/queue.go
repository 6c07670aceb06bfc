package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"veripass/internal/models"
	"veripass/internal/store"
)

const staleReclaimError = "reclaimed after stale processing claim"

func (s *Store) insertJobLocked(job *models.EmailJob) {
	now := time.Now().UTC()
	job.ID = s.next("notification_queue")
	if job.Status == "" {
		job.Status = models.JobPending
	}
	if job.MaxAttempts == 0 {
		job.MaxAttempts = models.DefaultMaxAttempts
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.ScheduledFor.IsZero() {
		job.ScheduledFor = job.CreatedAt
	}
	job.UpdatedAt = job.CreatedAt
	cp := *job
	s.jobs[job.ID] = &cp
}

func (s *Store) GetJob(_ context.Context, id int64) (*models.EmailJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, missing("email job", id)
	}
	cp := *j
	return &cp, nil
}

func (s *Store) ClaimPending(_ context.Context, limit int, now time.Time) ([]*models.EmailJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var eligible []*models.EmailJob
	for _, j := range s.jobs {
		if j.Status == models.JobPending && j.Attempts < j.MaxAttempts && !j.ScheduledFor.After(now) {
			eligible = append(eligible, j)
		}
	}
	sort.Slice(eligible, func(i, k int) bool {
		if !eligible[i].CreatedAt.Equal(eligible[k].CreatedAt) {
			return eligible[i].CreatedAt.Before(eligible[k].CreatedAt)
		}
		return eligible[i].ID < eligible[k].ID
	})
	if limit > 0 && len(eligible) > limit {
		eligible = eligible[:limit]
	}

	out := make([]*models.EmailJob, 0, len(eligible))
	for _, j := range eligible {
		j.Status = models.JobProcessing
		j.Attempts++
		j.UpdatedAt = now
		cp := *j
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) ClaimByID(_ context.Context, id int64, now time.Time) (*models.EmailJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, missing("email job", id)
	}
	if j.Status != models.JobPending {
		return nil, fmt.Errorf("email job %d is %s: %w", id, j.Status, store.ErrConflict)
	}
	j.Status = models.JobProcessing
	j.UpdatedAt = now
	cp := *j
	return &cp, nil
}

// processing returns the job when it is claimed, else ErrConflict.
func (s *Store) processing(id int64) (*models.EmailJob, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, missing("email job", id)
	}
	if j.Status != models.JobProcessing {
		return nil, fmt.Errorf("email job %d is %s: %w", id, j.Status, store.ErrConflict)
	}
	return j, nil
}

func (s *Store) MarkSent(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.processing(id)
	if err != nil {
		return err
	}
	t := at
	j.Status = models.JobSent
	j.ProcessedAt = &t
	j.LastError = ""
	j.UpdatedAt = at
	return nil
}

func (s *Store) MarkRetry(_ context.Context, id int64, lastErr string, next, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.processing(id)
	if err != nil {
		return err
	}
	j.Status = models.JobPending
	j.LastError = lastErr
	j.ScheduledFor = next
	j.UpdatedAt = now
	return nil
}

func (s *Store) MarkFailed(_ context.Context, id int64, lastErr string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.processing(id)
	if err != nil {
		return err
	}
	j.Status = models.JobFailed
	j.LastError = lastErr
	j.UpdatedAt = now
	return nil
}

func (s *Store) Release(_ context.Context, id int64, lastErr string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.processing(id)
	if err != nil {
		return err
	}
	j.Status = models.JobPending
	j.LastError = lastErr
	j.UpdatedAt = now
	return nil
}

func (s *Store) Unclaim(_ context.Context, id int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.processing(id)
	if err != nil {
		return err
	}
	j.Status = models.JobPending
	if j.Attempts > 0 {
		j.Attempts--
	}
	j.UpdatedAt = now
	return nil
}

func (s *Store) ReclaimStale(_ context.Context, olderThan, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, j := range s.jobs {
		if j.Status != models.JobProcessing || !j.UpdatedAt.Before(olderThan) {
			continue
		}
		if j.Attempts >= j.MaxAttempts {
			j.Status = models.JobFailed
		} else {
			j.Status = models.JobPending
		}
		if j.LastError == "" {
			j.LastError = staleReclaimError
		}
		j.UpdatedAt = now
		n++
	}
	return n, nil
}
