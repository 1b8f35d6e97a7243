package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blockedby/teamsheet/internal/logger"
	"github.com/blockedby/teamsheet/internal/models"
)

// DeliveryStatus represents the delivery state of a recipient
type DeliveryStatus = models.DeliveryStatus

const (
	StatusPending    DeliveryStatus = models.DeliveryStatusPending
	StatusProcessing DeliveryStatus = models.DeliveryStatusProcessing
	StatusSent       DeliveryStatus = models.DeliveryStatusSent
	StatusFailed     DeliveryStatus = models.DeliveryStatusFailed
)

// EventRecipientStatus is the websocket event type for recipient status changes.
const EventRecipientStatus = "message.recipient_status"

// StatusStore persists recipient status transitions.
type StatusStore interface {
	TransitionRecipient(ctx context.Context, id uuid.UUID, from, to models.DeliveryStatus, at time.Time, lastErr *string) (bool, error)
}

// Broadcaster pushes events to connected websocket clients.
type Broadcaster interface {
	Broadcast(message interface{})
}

// DeliveryTracker drives recipient status transitions and announces them.
type DeliveryTracker struct {
	store StatusStore
	hub   Broadcaster
	log   *logger.Logger
	now   func() time.Time
}

// NewDeliveryTracker creates a new delivery tracker. hub may be nil.
func NewDeliveryTracker(store StatusStore, hub Broadcaster, log *logger.Logger) *DeliveryTracker {
	return &DeliveryTracker{
		store: store,
		hub:   hub,
		log:   log,
		now:   time.Now,
	}
}

// StatusChangeEvent represents a recipient status change
type StatusChangeEvent struct {
	Type           string    `json:"type"`
	MessageID      string    `json:"message_id"`
	RecipientID    string    `json:"recipient_id"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	CurrentStatus  string    `json:"current_status"`
	Error          string    `json:"error,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TrackStart marks delivery as started (PENDING → PROCESSING). It returns
// false when the recipient was no longer PENDING.
func (t *DeliveryTracker) TrackStart(ctx context.Context, rec *models.MessageRecipient) (bool, error) {
	return t.transition(ctx, rec, StatusPending, StatusProcessing, nil)
}

// TrackSuccess marks delivery as successful (PROCESSING → SENT)
func (t *DeliveryTracker) TrackSuccess(ctx context.Context, rec *models.MessageRecipient) error {
	_, err := t.transition(ctx, rec, StatusProcessing, StatusSent, nil)
	return err
}

// TrackFailure marks delivery as failed (PROCESSING → FAILED) and keeps the error text
func (t *DeliveryTracker) TrackFailure(ctx context.Context, rec *models.MessageRecipient, cause error) error {
	msg := cause.Error()
	_, err := t.transition(ctx, rec, StatusProcessing, StatusFailed, &msg)
	return err
}

func (t *DeliveryTracker) transition(ctx context.Context, rec *models.MessageRecipient, from, to DeliveryStatus, lastErr *string) (bool, error) {
	if !t.ValidateTransition(from, to) {
		return false, fmt.Errorf("invalid status transition: %s → %s", from, to)
	}

	at := t.now()
	ok, err := t.store.TransitionRecipient(ctx, rec.ID, from, to, at, lastErr)
	if err != nil {
		return false, fmt.Errorf("update status to %s: %w", to, err)
	}
	if !ok {
		return false, nil
	}

	rec.Status = to
	rec.StatusUpdatedAt = &at
	rec.LastError = lastErr
	if to == StatusProcessing {
		rec.Attempts++
	}

	evt := StatusChangeEvent{
		Type:           EventRecipientStatus,
		MessageID:      rec.MessageID.String(),
		RecipientID:    rec.ID.String(),
		PreviousStatus: string(from),
		CurrentStatus:  string(to),
		UpdatedAt:      at,
	}
	if lastErr != nil {
		evt.Error = *lastErr
	}
	if t.hub != nil {
		t.hub.Broadcast(evt)
	}

	entry := t.log.Info()
	if to == StatusFailed {
		entry = t.log.Warn().Str("error", evt.Error)
	}
	entry.
		Str("message_id", evt.MessageID).
		Str("recipient_id", evt.RecipientID).
		Str("email", logger.RedactEmail(rec.Email)).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("delivery status changed")

	return true, nil
}

// ValidateTransition checks if status transition is valid
func (t *DeliveryTracker) ValidateTransition(from, to DeliveryStatus) bool {
	// PENDING → PROCESSING | FAILED (hand-off failure)
	// PROCESSING → SENT | FAILED
	// FAILED → PENDING (explicit retry only)
	validTransitions := map[DeliveryStatus][]DeliveryStatus{
		StatusPending:    {StatusProcessing, StatusFailed},
		StatusProcessing: {StatusSent, StatusFailed},
		StatusSent:       {},
		StatusFailed:     {StatusPending},
	}

	allowed, exists := validTransitions[from]
	if !exists {
		return false
	}

	for _, valid := range allowed {
		if valid == to {
			return true
		}
	}
	return false
}
