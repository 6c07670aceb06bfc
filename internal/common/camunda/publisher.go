// internal/common/camunda/publisher.go
package camunda

import (
	"context"
	"strconv"
	"time"
)

// MessageStatusChanged is correlated by registration number, so a process
// instance started for a registration receives each of its status changes.
const MessageStatusChanged = "veripass.registration-status-changed"

// DefaultMessageTTL keeps a message buffered when no instance is waiting yet.
const DefaultMessageTTL = time.Hour

type StatusPublisher struct {
	client *Client
	ttl    time.Duration
}

func NewStatusPublisher(c *Client, ttl time.Duration) *StatusPublisher {
	if ttl <= 0 {
		ttl = DefaultMessageTTL
	}
	return &StatusPublisher{client: c, ttl: ttl}
}

// PublishStatusChanged publishes one MessageStatusChanged message.
func (p *StatusPublisher) PublishStatusChanged(ctx context.Context, registrationID, registrationNumber int64, status string) error {
	vars := statusVariables(registrationID, registrationNumber, status)
	key := strconv.FormatInt(registrationNumber, 10)

	return p.client.Retry(ctx, "publish "+MessageStatusChanged, func(ctx context.Context) error {
		cmd, err := p.client.client.NewPublishMessageCommand().
			MessageName(MessageStatusChanged).
			CorrelationKey(key).
			TimeToLive(p.ttl).
			VariablesFromMap(vars)
		if err != nil {
			return err
		}
		_, err = cmd.Send(ctx)
		return err
	})
}

// statusVariables are the process variables carried by the message. The
// dispatch-status-notification job reads registrationId from them.
func statusVariables(registrationID, registrationNumber int64, status string) map[string]interface{} {
	return map[string]interface{}{
		"registrationId":     registrationID,
		"registrationNumber": registrationNumber,
		"registrationStatus": status,
	}
}
