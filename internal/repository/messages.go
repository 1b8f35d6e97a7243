package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blockedby/teamsheet/internal/logger"
	"github.com/blockedby/teamsheet/internal/models"
)

// MessagesRepository handles messages and message_recipients operations
type MessagesRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewMessagesRepository creates a new messages repository
func NewMessagesRepository(db *gorm.DB, log *logger.Logger) *MessagesRepository {
	return &MessagesRepository{
		db:  db,
		log: log,
	}
}

// CreateWithRecipients inserts the message and its recipients in one transaction.
// Recipient positions follow slice order.
func (r *MessagesRepository) CreateWithRecipients(ctx context.Context, msg *models.Message) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Recipients").Create(msg).Error; err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		if len(msg.Recipients) == 0 {
			return nil
		}

		for i := range msg.Recipients {
			msg.Recipients[i].MessageID = msg.ID
			msg.Recipients[i].Position = i
			if msg.Recipients[i].Status == "" {
				msg.Recipients[i].Status = models.DeliveryStatusPending
			}
		}
		if err := tx.Create(&msg.Recipients).Error; err != nil {
			return fmt.Errorf("insert recipients: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}

	r.log.Info().
		Str("id", msg.ID.String()).
		Str("group_id", msg.GroupID.String()).
		Int("recipients", len(msg.Recipients)).
		Msg("created message")

	return nil
}

// GetByID returns a message with its recipients in insertion order.
func (r *MessagesRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var msg models.Message
	err := r.db.WithContext(ctx).
		Preload("Recipients", orderByPosition).
		First(&msg, "id = ?", id).Error
	if err != nil {
		return nil, fmt.Errorf("get message by id: %w", translate(err))
	}
	return &msg, nil
}

// ListByGroup returns the newest messages of a group.
func (r *MessagesRepository) ListByGroup(ctx context.Context, groupID uuid.UUID, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.WithContext(ctx).
		Preload("Recipients", orderByPosition).
		Where("group_id = ?", groupID).
		Order("sent_date DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("list group messages: %w", err)
	}
	return msgs, nil
}

// ListRecipients returns all recipients of a message in insertion order.
func (r *MessagesRepository) ListRecipients(ctx context.Context, messageID uuid.UUID) ([]models.MessageRecipient, error) {
	var recipients []models.MessageRecipient
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("position ASC").
		Find(&recipients).Error
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	return recipients, nil
}

// TransitionRecipient moves a recipient from one status to another. The update
// is conditional on the current status, so it reports false when another
// writer got there first. Entering PROCESSING counts as one attempt.
func (r *MessagesRepository) TransitionRecipient(ctx context.Context, id uuid.UUID, from, to models.DeliveryStatus, at time.Time, lastErr *string) (bool, error) {
	updates := map[string]any{
		"status":            to,
		"status_updated_at": at,
		"last_error":        lastErr,
		"updated_at":        at,
	}
	if to == models.DeliveryStatusProcessing {
		updates["attempts"] = gorm.Expr("attempts + 1")
	}

	res := r.db.WithContext(ctx).
		Model(&models.MessageRecipient{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("transition recipient %s→%s: %w", from, to, res.Error)
	}

	return res.RowsAffected > 0, nil
}

// ResetFailed moves every FAILED recipient of a message back to PENDING and
// returns the ids that were reset, in insertion order.
func (r *MessagesRepository) ResetFailed(ctx context.Context, messageID uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var failed []models.MessageRecipient
		if err := tx.Select("id").
			Where("message_id = ? AND status = ?", messageID, models.DeliveryStatusFailed).
			Order("position ASC").
			Find(&failed).Error; err != nil {
			return fmt.Errorf("select failed: %w", err)
		}
		if len(failed) == 0 {
			return nil
		}

		for _, f := range failed {
			ids = append(ids, f.ID)
		}

		return tx.Model(&models.MessageRecipient{}).
			Where("id IN ? AND status = ?", ids, models.DeliveryStatusFailed).
			Updates(map[string]any{
				"status":            models.DeliveryStatusPending,
				"status_updated_at": at,
				"last_error":        nil,
				"updated_at":        at,
			}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("reset failed recipients: %w", err)
	}

	if len(ids) > 0 {
		r.log.Info().
			Str("message_id", messageID.String()).
			Int("count", len(ids)).
			Msg("reset failed recipients")
	}

	return ids, nil
}

// FailPending marks the given PENDING recipients as FAILED with reason.
// Used when a dispatch job could not be handed off.
func (r *MessagesRepository) FailPending(ctx context.Context, ids []uuid.UUID, reason string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	res := r.db.WithContext(ctx).
		Model(&models.MessageRecipient{}).
		Where("id IN ? AND status = ?", ids, models.DeliveryStatusPending).
		Updates(map[string]any{
			"status":            models.DeliveryStatusFailed,
			"status_updated_at": at,
			"last_error":        reason,
			"updated_at":        at,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("fail pending recipients: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}
