package notification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veripass/internal/common/errors"
	"veripass/internal/models"
	"veripass/internal/store/memory"
)

func TestInbox(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		require.NoError(t, st.CreateWithEmail(ctx, &models.Notification{
			RecipientID: 1,
			Title:       "n",
			CreatedAt:   fixedNow.Add(time.Duration(i) * time.Minute),
		}, nil))
	}
	inbox := NewInbox(st)
	inbox.now = func() time.Time { return fixedNow.Add(time.Hour) }

	first, err := inbox.GetUserNotifications(ctx, 1, ListOptions{})
	require.NoError(t, err)
	require.Len(t, first, DefaultPageSize)
	assert.True(t, first[0].CreatedAt.After(first[1].CreatedAt), "newest first")

	second, err := inbox.GetUserNotifications(ctx, 1, ListOptions{Page: 2})
	require.NoError(t, err)
	assert.Len(t, second, 5)

	count, err := inbox.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(25), count)

	require.NoError(t, inbox.MarkNotificationRead(ctx, 1, first[0].ID))
	err = inbox.MarkNotificationRead(ctx, 2, first[1].ID)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))

	n, err := inbox.MarkAllNotificationsRead(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(24), n)

	unread, err := inbox.GetUserNotifications(ctx, 1, ListOptions{UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestTimeAgo(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{30 * time.Second, "Just now"},
		{time.Minute, "1 minute ago"},
		{45 * time.Minute, "45 minutes ago"},
		{time.Hour, "1 hour ago"},
		{5 * time.Hour, "5 hours ago"},
		{24 * time.Hour, "1 day ago"},
		{72 * time.Hour, "3 days ago"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, TimeAgo(fixedNow.Add(-tt.ago), fixedNow))
		})
	}
}
