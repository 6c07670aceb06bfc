// internal/workers/communication/process-email-queue/models.go
package processemailqueue

import "time"

// Input is optional; a timer-started process usually sends no variables.
type Input struct {
	Limit        int   `json:"limit"`
	ReclaimStale *bool `json:"reclaimStale,omitempty"`
}

type Output struct {
	Claimed     int       `json:"emailQueueClaimed"`
	Sent        int       `json:"emailQueueSent"`
	Failed      int       `json:"emailQueueFailed"`
	Exhausted   int       `json:"emailQueueExhausted"`
	Returned    int       `json:"emailQueueReturned"`
	Reclaimed   int64     `json:"emailQueueReclaimed"`
	ProcessedAt time.Time `json:"emailQueueProcessedAt"`
}
