package registration

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veripass/internal/common/errors"
	"veripass/internal/models"
)

func newMiniredisStore(t *testing.T, ttl time.Duration) (*RedisDraftStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisDraftStore(client, ttl), mr
}

func TestDraftKey(t *testing.T) {
	assert.Equal(t, "veripass:draft:42:abc", DraftKey(42, "abc"))
}

func TestRedisDraftStore_RoundTrip(t *testing.T) {
	st, mr := newMiniredisStore(t, time.Hour)
	ctx := context.Background()

	got, err := st.Load(ctx, 7, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)

	draft := &models.RegistrationDraft{
		UserID:    7,
		SessionID: "s1",
		Personal:  &models.PersonalInfo{Firstname: "Juan", SchoolRole: models.SchoolRoleStudent},
	}
	require.NoError(t, st.Save(ctx, draft))
	assert.Equal(t, time.Hour, mr.TTL(DraftKey(7, "s1")))

	got, err = st.Load(ctx, 7, "s1")
	require.NoError(t, err)
	require.NotNil(t, got.Personal)
	assert.Equal(t, "Juan", got.Personal.Firstname)
	assert.Equal(t, 1, got.CompletedSteps())

	other, err := st.Load(ctx, 7, "s2")
	require.NoError(t, err)
	assert.Nil(t, other, "drafts are per session")

	mr.FastForward(2 * time.Hour)
	expired, err := st.Load(ctx, 7, "s1")
	require.NoError(t, err)
	assert.Nil(t, expired)
}

func TestRedisDraftStore_Delete(t *testing.T) {
	st, mr := newMiniredisStore(t, 0)
	ctx := context.Background()

	require.NoError(t, st.Save(ctx, &models.RegistrationDraft{UserID: 1, SessionID: "s"}))
	assert.Equal(t, DefaultDraftTTL, mr.TTL(DraftKey(1, "s")))
	require.NoError(t, st.Delete(ctx, 1, "s"))
	assert.False(t, mr.Exists(DraftKey(1, "s")))
}

func TestRedisDraftStore_SubmitLock(t *testing.T) {
	st, mr := newMiniredisStore(t, time.Hour)
	ctx := context.Background()

	ok, err := st.LockSubmit(ctx, 7, "s1", SubmitLockTTL)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, SubmitLockTTL, mr.TTL(SubmitLockKey(7, "s1")))

	ok, err = st.LockSubmit(ctx, 7, "s1", SubmitLockTTL)
	require.NoError(t, err)
	assert.False(t, ok, "second lock on the same session is refused")

	ok, err = st.LockSubmit(ctx, 7, "s2", SubmitLockTTL)
	require.NoError(t, err)
	assert.True(t, ok, "locks are per session")

	require.NoError(t, st.UnlockSubmit(ctx, 7, "s1"))
	ok, err = st.LockSubmit(ctx, 7, "s1", SubmitLockTTL)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * SubmitLockTTL)
	assert.False(t, mr.Exists(SubmitLockKey(7, "s2")), "a crashed commit's lock expires")
}

func TestRedisDraftStore_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("get error", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectGet(DraftKey(1, "s")).SetErr(stderrors.New("connection refused"))

		_, err := NewRedisDraftStore(client, time.Hour).Load(ctx, 1, "s")
		assert.True(t, errors.Is(err, errors.ErrCodeCacheFailed))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("corrupt payload", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectGet(DraftKey(1, "s")).SetVal("{not json")

		_, err := NewRedisDraftStore(client, time.Hour).Load(ctx, 1, "s")
		assert.True(t, errors.Is(err, errors.ErrCodeCacheFailed))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lock error", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectSetNX(SubmitLockKey(1, "s"), 1, SubmitLockTTL).SetErr(stderrors.New("connection refused"))

		_, err := NewRedisDraftStore(client, time.Hour).LockSubmit(ctx, 1, "s", SubmitLockTTL)
		assert.True(t, errors.Is(err, errors.ErrCodeCacheFailed))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("set error", func(t *testing.T) {
		draft := &models.RegistrationDraft{UserID: 1, SessionID: "s", UpdatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
		data, err := json.Marshal(draft)
		require.NoError(t, err)

		client, mock := redismock.NewClientMock()
		mock.ExpectSet(DraftKey(1, "s"), data, time.Hour).SetErr(stderrors.New("OOM"))

		err = NewRedisDraftStore(client, time.Hour).Save(ctx, draft)
		assert.True(t, errors.Is(err, errors.ErrCodeCacheFailed))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
