package models

import "time"

// Announcement is a broadcast posted by an admin or security user.
type Announcement struct {
	ID          int64     `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Message     string    `json:"message" db:"message"`
	PostedBy    int64     `json:"posted_by" db:"posted_by"`
	TargetRoles []string  `json:"target_roles" db:"target_roles"`
	SendToAll   bool      `json:"send_to_all" db:"send_to_all"`
	SendEmail   bool      `json:"send_email" db:"send_email"`
	DatePosted  time.Time `json:"date_posted" db:"date_posted"`
}
