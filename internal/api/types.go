package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/blockedby/teamsheet/internal/dispatcher"
	"github.com/blockedby/teamsheet/internal/models"
)

// ============================================================================
// Common Types
// ============================================================================

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status   string `json:"status" example:"ok" description:"Health status"`
	Version  string `json:"version" example:"dev" description:"Application version"`
	Database string `json:"database,omitempty" example:"ok" description:"Database reachability"`
}

// ============================================================================
// Message Types
// ============================================================================

// RecipientRequest is one requested recipient. Exactly one of player_id or
// evaluator_id must be set.
type RecipientRequest struct {
	PlayerID    *uuid.UUID `json:"player_id,omitempty" description:"Player ID (PLAYERS messages)"`
	EvaluatorID *uuid.UUID `json:"evaluator_id,omitempty" description:"Evaluator user ID (EVALUATORS messages)"`
	Email       string     `json:"email" description:"Delivery address" example:"ann@club.com"`
}

// SendMessageRequest is the body for sending a message to a group.
type SendMessageRequest struct {
	Subject       string             `json:"subject" description:"Subject, may contain {{firstName}} and {{lastName}}" example:"Hi {{firstName}}"`
	Body          string             `json:"body" description:"HTML body, may contain {{firstName}} and {{lastName}}"`
	RecipientType string             `json:"recipient_type" description:"PLAYERS or EVALUATORS" example:"PLAYERS"`
	Recipients    []RecipientRequest `json:"recipients" description:"Requested recipients"`
	ReplyToID     *uuid.UUID         `json:"reply_to_id,omitempty" description:"User whose email becomes Reply-To"`
	AllInGroup    bool               `json:"all_in_group,omitempty" description:"Send to the whole group roster instead of recipients"`
	Preset        string             `json:"preset,omitempty" description:"Preset name filling an empty subject or body"`
}

// RecipientResponse represents a persisted recipient.
type RecipientResponse struct {
	ID              uuid.UUID  `json:"id" description:"Recipient ID"`
	PlayerID        *uuid.UUID `json:"player_id,omitempty"`
	EvaluatorID     *uuid.UUID `json:"evaluator_id,omitempty"`
	Email           string     `json:"email"`
	Status          string     `json:"status" description:"PENDING, PROCESSING, SENT or FAILED"`
	StatusUpdatedAt *time.Time `json:"status_updated_at,omitempty"`
	LastError       *string    `json:"last_error,omitempty" description:"Transport error of the last failed attempt"`
	Attempts        int        `json:"attempts" description:"Delivery attempts so far"`
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID            uuid.UUID           `json:"id" description:"Message unique identifier"`
	GroupID       uuid.UUID           `json:"group_id"`
	Subject       string              `json:"subject"`
	Body          string              `json:"body"`
	RecipientType string              `json:"recipient_type"`
	ReplyToID     *uuid.UUID          `json:"reply_to_id,omitempty"`
	SentDate      time.Time           `json:"sent_date"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	Recipients    []RecipientResponse `json:"recipients"`
}

// InvalidRecipientResponse is a candidate rejected at validation time.
type InvalidRecipientResponse struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// SendMessageResponse reports what was accepted; delivery is asynchronous.
type SendMessageResponse struct {
	Message           MessageResponse            `json:"message"`
	TotalRecipients   int                        `json:"total_recipients"`
	ValidRecipients   int                        `json:"valid_recipients"`
	InvalidRecipients []InvalidRecipientResponse `json:"invalid_recipients"`
}

// MessagesListResponse lists a group's messages.
type MessagesListResponse struct {
	Messages []MessageResponse `json:"messages"`
	Count    int               `json:"count"`
	Limit    int               `json:"limit"`
}

// MessageStatusResponse aggregates delivery state.
type MessageStatusResponse struct {
	MessageID   uuid.UUID  `json:"message_id"`
	Total       int        `json:"total"`
	Pending     int        `json:"pending"`
	Processing  int        `json:"processing"`
	Sent        int        `json:"sent"`
	Failed      int        `json:"failed"`
	SuccessRate float64    `json:"success_rate" description:"sent / total, 0 when there are no recipients"`
	LastUpdated *time.Time `json:"last_updated"`
}

// RetryResponse reports a retry request.
type RetryResponse struct {
	MessageID    uuid.UUID `json:"message_id"`
	RetriedCount int       `json:"retried_count" description:"Recipients reset to PENDING and re-enqueued"`
	TotalFailed  int       `json:"total_failed" description:"Recipients that were FAILED before the retry"`
}

// PresetResponse is a message preset.
type PresetResponse struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
}

// PresetsResponse lists presets.
type PresetsResponse struct {
	Presets []PresetResponse `json:"presets"`
}

// ============================================================================
// Converters
// ============================================================================

// MessageFromModel converts a models.Message to MessageResponse.
func MessageFromModel(m *models.Message) MessageResponse {
	resp := MessageResponse{
		ID:            m.ID,
		GroupID:       m.GroupID,
		Subject:       m.Subject,
		Body:          m.Body,
		RecipientType: string(m.RecipientType),
		ReplyToID:     m.ReplyToID,
		SentDate:      m.SentDate,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		Recipients:    make([]RecipientResponse, 0, len(m.Recipients)),
	}
	for _, r := range m.Recipients {
		resp.Recipients = append(resp.Recipients, RecipientResponse{
			ID:              r.ID,
			PlayerID:        r.PlayerID,
			EvaluatorID:     r.EvaluatorID,
			Email:           r.Email,
			Status:          string(r.Status),
			StatusUpdatedAt: r.StatusUpdatedAt,
			LastError:       r.LastError,
			Attempts:        r.Attempts,
		})
	}
	return resp
}

// MessagesFromModels converts a slice of messages.
func MessagesFromModels(msgs []models.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, MessageFromModel(&msgs[i]))
	}
	return out
}

func (r SendMessageRequest) toInput() dispatcher.SendMessageInput {
	in := dispatcher.SendMessageInput{
		Subject:       r.Subject,
		Body:          r.Body,
		RecipientType: models.RecipientType(r.RecipientType),
		ReplyToID:     r.ReplyToID,
		AllInGroup:    r.AllInGroup,
		Preset:        r.Preset,
		Recipients:    make([]dispatcher.RecipientCandidate, 0, len(r.Recipients)),
	}
	for _, rec := range r.Recipients {
		in.Recipients = append(in.Recipients, dispatcher.RecipientCandidate{
			PlayerID:    rec.PlayerID,
			EvaluatorID: rec.EvaluatorID,
			Email:       rec.Email,
		})
	}
	return in
}
