package dispatcher

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DispatchSubject is the NATS subject dispatch jobs are published on.
const DispatchSubject = "messages.dispatch"

// DispatchJob asks the processor to deliver a message. An empty
// RecipientIDs slice means every PENDING recipient of the message.
type DispatchJob struct {
	MessageID    uuid.UUID   `json:"message_id"`
	RecipientIDs []uuid.UUID `json:"recipient_ids,omitempty"`
	RequestID    string      `json:"request_id,omitempty"`
	EnqueuedAt   time.Time   `json:"enqueued_at"`
}

// JobQueue hands dispatch jobs off to the background processor.
type JobQueue interface {
	Enqueue(ctx context.Context, job DispatchJob) error
}

// JobProcessor runs one dispatch job to completion.
type JobProcessor interface {
	Process(ctx context.Context, job DispatchJob) error
}

func (j DispatchJob) includes(id uuid.UUID) bool {
	if len(j.RecipientIDs) == 0 {
		return true
	}
	for _, rid := range j.RecipientIDs {
		if rid == id {
			return true
		}
	}
	return false
}
