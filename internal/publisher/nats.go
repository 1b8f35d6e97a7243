// Package publisher hands dispatch jobs to NATS JetStream.
package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/blockedby/teamsheet/internal/dispatcher"
)

// NATSClient interface to allow mocking
type NATSClient interface {
	Publish(ctx context.Context, subject string, data any) error
}

// NATSPublisher implements dispatcher.JobQueue
type NATSPublisher struct {
	js NATSClient
}

// NewNATSPublisher creates a new publisher
func NewNATSPublisher(client NATSClient) *NATSPublisher {
	return &NATSPublisher{js: client}
}

// Enqueue publishes a dispatch job on messages.dispatch
func (p *NATSPublisher) Enqueue(ctx context.Context, job dispatcher.DispatchJob) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}

	if err := p.js.Publish(ctx, dispatcher.DispatchSubject, job); err != nil {
		return fmt.Errorf("publish dispatch job: %w", err)
	}

	return nil
}
