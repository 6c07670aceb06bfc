package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"veripass/internal/common/database"
	"veripass/internal/models"
)

func (s *Store) CreateAnnouncement(ctx context.Context, a *models.Announcement, notifications []*models.Notification, jobs []*models.EmailJob) error {
	roles := a.TargetRoles
	if roles == nil {
		roles = []string{}
	}
	return s.db.WithTx(ctx, func(q database.Querier) error {
		if err := q.QueryRowContext(ctx, `
			INSERT INTO announcements (title, message, posted_by, target_roles, send_to_all, send_email, date_posted)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			a.Title, a.Message, a.PostedBy, pq.Array(roles), a.SendToAll, a.SendEmail, a.DatePosted,
		).Scan(&a.ID); err != nil {
			return fmt.Errorf("insert announcement: %w", err)
		}

		for _, n := range notifications {
			if err := insertNotification(ctx, q, n); err != nil {
				return fmt.Errorf("insert announcement notification for user %d: %w", n.RecipientID, err)
			}
		}
		for _, j := range jobs {
			if err := insertJob(ctx, q, j); err != nil {
				return fmt.Errorf("insert announcement email for user %d: %w", j.RecipientID, err)
			}
		}
		return nil
	})
}
