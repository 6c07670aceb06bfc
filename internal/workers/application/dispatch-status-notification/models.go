// internal/workers/application/dispatch-status-notification/models.go
package dispatchstatusnotification

type Input struct {
	RegistrationID int64 `json:"registrationId"`
}

type Output struct {
	RegistrationID   int64  `json:"registrationId"`
	Status           string `json:"registrationStatus"`
	NotificationID   int64  `json:"notificationId"`
	EmailJobID       int64  `json:"emailJobId"`
	EmailSent        bool   `json:"emailSent"`
	SMSSent          bool   `json:"smsSent"`
	NotificationSkip bool   `json:"notificationSkipped"`
}
