// Package models defines shared data types for the application.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RecipientType tells whether a message targets players or evaluators.
type RecipientType string

// RecipientType constants define the supported audiences of a message.
const (
	RecipientTypePlayers    RecipientType = "PLAYERS"
	RecipientTypeEvaluators RecipientType = "EVALUATORS"
)

// IsValid reports whether t is a known recipient type.
func (t RecipientType) IsValid() bool {
	return t == RecipientTypePlayers || t == RecipientTypeEvaluators
}

// DeliveryStatus represents the delivery state of one recipient.
type DeliveryStatus string

// DeliveryStatus constants define the possible states of recipient delivery.
const (
	DeliveryStatusPending    DeliveryStatus = "PENDING"
	DeliveryStatusProcessing DeliveryStatus = "PROCESSING"
	DeliveryStatusSent       DeliveryStatus = "SENT"
	DeliveryStatusFailed     DeliveryStatus = "FAILED"
)

// IsValid reports whether s is a known delivery status.
func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryStatusPending, DeliveryStatusProcessing, DeliveryStatusSent, DeliveryStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether s ends a processing run.
func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusSent || s == DeliveryStatusFailed
}

// Message is one outbound communication sent to the players or evaluators of a group.
// Subject and body may contain template tokens substituted per recipient at send time.
type Message struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID       uuid.UUID     `gorm:"type:uuid;not null;index" json:"group_id"`
	Subject       string        `gorm:"type:text;not null" json:"subject"`
	Body          string        `gorm:"type:text;not null" json:"body"`
	RecipientType RecipientType `gorm:"type:varchar(20);not null" json:"recipient_type"`
	ReplyToID     *uuid.UUID    `gorm:"type:uuid" json:"reply_to_id,omitempty"`
	SentDate      time.Time     `gorm:"not null" json:"sent_date"`

	Recipients []MessageRecipient `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"recipients"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns an id when the caller left it empty.
func (m *Message) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// MessageRecipient is one delivery target of a Message.
// Exactly one of PlayerID and EvaluatorID is set.
type MessageRecipient struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"message_id"`
	PlayerID    *uuid.UUID `gorm:"type:uuid" json:"player_id,omitempty"`
	EvaluatorID *uuid.UUID `gorm:"type:uuid" json:"evaluator_id,omitempty"`
	Email       string     `gorm:"type:varchar(320);not null" json:"email"`

	// insertion order within the message
	Position int `gorm:"not null;default:0" json:"position"`

	// delivery
	Status          DeliveryStatus `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	StatusUpdatedAt *time.Time     `json:"status_updated_at,omitempty"`
	Attempts        int            `gorm:"not null;default:0" json:"attempts"`
	LastError       *string        `gorm:"type:text" json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns an id and the default status.
func (r *MessageRecipient) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = DeliveryStatusPending
	}
	return nil
}

// IsPlayer reports whether the recipient references a player.
func (r *MessageRecipient) IsPlayer() bool {
	return r.PlayerID != nil
}
