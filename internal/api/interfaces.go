package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/blockedby/teamsheet/internal/dispatcher"
	"github.com/blockedby/teamsheet/internal/models"
)

// MessageService defines the messaging operations exposed over HTTP.
type MessageService interface {
	SendMessage(ctx context.Context, groupID uuid.UUID, in dispatcher.SendMessageInput) (*dispatcher.SendResult, error)
	GetMessageByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	GetGroupMessages(ctx context.Context, groupID uuid.UUID, limit int) ([]models.Message, error)
	GetMessageStatus(ctx context.Context, messageID uuid.UUID) (*dispatcher.StatusSummary, error)
	RetryFailedRecipients(ctx context.Context, messageID uuid.UUID) (*dispatcher.RetryResult, error)
	Presets() *dispatcher.PresetCatalog
}

// HealthChecker reports whether a backing service is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
