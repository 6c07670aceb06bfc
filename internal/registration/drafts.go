// Package registration runs the three-step pass application wizard. Step
// data is kept in a per-session draft until the last step commits it.
package registration

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"veripass/internal/common/errors"
	"veripass/internal/models"
)

// DefaultDraftTTL matches a working day of idle time.
const DefaultDraftTTL = 24 * time.Hour

// SubmitLockTTL bounds how long a crashed commit can block its session.
const SubmitLockTTL = time.Minute

// DraftStore persists wizard drafts. Load returns nil, nil when no draft exists.
// LockSubmit reports false when another commit holds the session's lock.
type DraftStore interface {
	Load(ctx context.Context, userID int64, sessionID string) (*models.RegistrationDraft, error)
	Save(ctx context.Context, draft *models.RegistrationDraft) error
	Delete(ctx context.Context, userID int64, sessionID string) error
	LockSubmit(ctx context.Context, userID int64, sessionID string, ttl time.Duration) (bool, error)
	UnlockSubmit(ctx context.Context, userID int64, sessionID string) error
}

// DraftKey is the Redis key of one user session's draft.
func DraftKey(userID int64, sessionID string) string {
	return fmt.Sprintf("veripass:draft:%d:%s", userID, sessionID)
}

// SubmitLockKey guards the final step of one user session.
func SubmitLockKey(userID int64, sessionID string) string {
	return DraftKey(userID, sessionID) + ":submit"
}

// RedisDraftStore keeps drafts as JSON strings that expire after ttl. Each
// save refreshes the expiry.
type RedisDraftStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

var _ DraftStore = (*RedisDraftStore)(nil)

func NewRedisDraftStore(client redis.Cmdable, ttl time.Duration) *RedisDraftStore {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	return &RedisDraftStore{client: client, ttl: ttl}
}

func (s *RedisDraftStore) Load(ctx context.Context, userID int64, sessionID string) (*models.RegistrationDraft, error) {
	val, err := s.client.Get(ctx, DraftKey(userID, sessionID)).Result()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewCacheFailedError("load draft", err)
	}

	var draft models.RegistrationDraft
	if err := json.Unmarshal([]byte(val), &draft); err != nil {
		return nil, errors.NewCacheFailedError("decode draft", err)
	}
	return &draft, nil
}

func (s *RedisDraftStore) Save(ctx context.Context, draft *models.RegistrationDraft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return errors.NewInternalError(fmt.Errorf("encode draft: %w", err))
	}
	if err := s.client.Set(ctx, DraftKey(draft.UserID, draft.SessionID), data, s.ttl).Err(); err != nil {
		return errors.NewCacheFailedError("save draft", err)
	}
	return nil
}

func (s *RedisDraftStore) Delete(ctx context.Context, userID int64, sessionID string) error {
	if err := s.client.Del(ctx, DraftKey(userID, sessionID)).Err(); err != nil {
		return errors.NewCacheFailedError("delete draft", err)
	}
	return nil
}

func (s *RedisDraftStore) LockSubmit(ctx context.Context, userID int64, sessionID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, SubmitLockKey(userID, sessionID), 1, ttl).Result()
	if err != nil {
		return false, errors.NewCacheFailedError("lock submit", err)
	}
	return ok, nil
}

func (s *RedisDraftStore) UnlockSubmit(ctx context.Context, userID int64, sessionID string) error {
	if err := s.client.Del(ctx, SubmitLockKey(userID, sessionID)).Err(); err != nil {
		return errors.NewCacheFailedError("unlock submit", err)
	}
	return nil
}
