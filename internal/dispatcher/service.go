package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/blockedby/teamsheet/internal/lock"
	"github.com/blockedby/teamsheet/internal/logger"
	"github.com/blockedby/teamsheet/internal/models"
	"github.com/blockedby/teamsheet/internal/repository"
)

// list limits for GetGroupMessages
const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// MessageStore persists messages and recipient state.
type MessageStore interface {
	CreateWithRecipients(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	ListRecipients(ctx context.Context, messageID uuid.UUID) ([]models.MessageRecipient, error)
	ListByGroup(ctx context.Context, groupID uuid.UUID, limit int) ([]models.Message, error)
	ResetFailed(ctx context.Context, messageID uuid.UUID, at time.Time) ([]uuid.UUID, error)
	FailPending(ctx context.Context, ids []uuid.UUID, reason string, at time.Time) (int64, error)
}

// RosterStore reads the group roster.
type RosterStore interface {
	GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error)
	ListPlayersWithEmail(ctx context.Context, groupID uuid.UUID) ([]models.Player, error)
	ListEvaluators(ctx context.Context, groupID uuid.UUID) ([]models.User, error)
}

// ServiceConfig groups the service's tunables.
type ServiceConfig struct {
	ReadRetries    int
	ReadRetryDelay time.Duration
}

// Service is the synchronous side of message dispatch: it validates,
// persists and hands the delivery off to a JobQueue.
type Service struct {
	messages MessageStore
	roster   RosterStore
	queue    JobQueue
	locker   lock.Locker
	presets  *PresetCatalog
	cfg      ServiceConfig
	log      *logger.Logger
	now      func() time.Time
}

// NewService creates a new dispatch service. presets may be nil.
func NewService(
	messages MessageStore,
	roster RosterStore,
	queue JobQueue,
	locker lock.Locker,
	presets *PresetCatalog,
	cfg ServiceConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		messages: messages,
		roster:   roster,
		queue:    queue,
		locker:   locker,
		presets:  presets,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// SendMessageInput is a request to message part of a group.
type SendMessageInput struct {
	Subject       string
	Body          string
	RecipientType models.RecipientType
	Recipients    []RecipientCandidate
	ReplyToID     *uuid.UUID
	// AllInGroup replaces Recipients with the group roster for RecipientType.
	AllInGroup bool
	// Preset fills an empty Subject or Body.
	Preset string
}

// SendResult reports what was accepted at validation time.
type SendResult struct {
	Message           *models.Message
	TotalRecipients   int
	ValidRecipients   int
	InvalidRecipients []InvalidRecipient
}

// RetryResult reports a retry request.
type RetryResult struct {
	RetriedCount int
	TotalFailed  int
}

// Presets returns the configured preset catalog.
func (s *Service) Presets() *PresetCatalog {
	return s.presets
}

// SendMessage validates the recipients, persists the message with its valid
// recipients and enqueues delivery. Delivery outcome is observed through
// GetMessageStatus.
func (s *Service) SendMessage(ctx context.Context, groupID uuid.UUID, in SendMessageInput) (*SendResult, error) {
	log := logger.FromContext(ctx)

	if err := s.applyPreset(&in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Subject) == "" {
		return nil, validationError("subject is required")
	}
	if strings.TrimSpace(in.Body) == "" {
		return nil, validationError("body is required")
	}
	if !in.RecipientType.IsValid() {
		return nil, validationError("recipient_type must be %s or %s", models.RecipientTypePlayers, models.RecipientTypeEvaluators)
	}

	if _, err := s.roster.GetGroup(ctx, groupID); err != nil {
		return nil, mapNotFound(err, "group")
	}

	candidates := in.Recipients
	if in.AllInGroup {
		resolved, err := s.ResolveGroupRecipients(ctx, groupID, in.RecipientType)
		if err != nil {
			return nil, err
		}
		candidates = resolved
	}
	if len(candidates) == 0 {
		return nil, validationError("recipients are required")
	}

	result := ValidateRecipients(candidates)

	msg := &models.Message{
		GroupID:       groupID,
		Subject:       in.Subject,
		Body:          in.Body,
		RecipientType: in.RecipientType,
		ReplyToID:     in.ReplyToID,
		SentDate:      s.now(),
		Recipients:    make([]models.MessageRecipient, 0, len(result.Valid)),
	}
	for _, v := range result.Valid {
		rec := models.MessageRecipient{Email: v.Email, Status: models.DeliveryStatusPending}
		switch ref := v.Ref.(type) {
		case PlayerRecipient:
			id := ref.PlayerID
			rec.PlayerID = &id
		case EvaluatorRecipient:
			id := ref.EvaluatorID
			rec.EvaluatorID = &id
		}
		msg.Recipients = append(msg.Recipients, rec)
	}

	if err := s.messages.CreateWithRecipients(ctx, msg); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}

	log.Info().
		Str("message_id", msg.ID.String()).
		Str("group_id", groupID.String()).
		Int("total", len(candidates)).
		Int("valid", len(result.Valid)).
		Int("invalid", len(result.Invalid)).
		Msg("message accepted")

	if len(msg.Recipients) > 0 {
		ids := make([]uuid.UUID, len(msg.Recipients))
		for i, r := range msg.Recipients {
			ids[i] = r.ID
		}
		if err := s.enqueue(ctx, msg.ID, ids); err != nil {
			s.failHandoff(ctx, msg, ids, err)
		}
	}

	invalid := result.Invalid
	if invalid == nil {
		invalid = []InvalidRecipient{}
	}

	return &SendResult{
		Message:           msg,
		TotalRecipients:   len(candidates),
		ValidRecipients:   len(result.Valid),
		InvalidRecipients: invalid,
	}, nil
}

func (s *Service) applyPreset(in *SendMessageInput) error {
	if in.Preset == "" {
		return nil
	}
	p, ok := s.presets.Get(in.Preset)
	if !ok {
		return validationError("unknown preset %q", in.Preset)
	}
	if strings.TrimSpace(in.Subject) == "" {
		in.Subject = p.Subject
	}
	if strings.TrimSpace(in.Body) == "" {
		in.Body = p.Body
	}
	return nil
}

func (s *Service) enqueue(ctx context.Context, messageID uuid.UUID, ids []uuid.UUID) error {
	job := DispatchJob{
		MessageID:    messageID,
		RecipientIDs: ids,
		RequestID:    middleware.GetReqID(ctx),
		EnqueuedAt:   s.now(),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue dispatch job: %w", err)
	}
	return nil
}

// failHandoff marks recipients FAILED when the job never reached the queue,
// so a retry can pick them up.
func (s *Service) failHandoff(ctx context.Context, msg *models.Message, ids []uuid.UUID, cause error) {
	log := logger.FromContext(ctx)
	log.Error().Err(cause).Str("message_id", msg.ID.String()).Msg("dispatch handoff failed")

	at := s.now()
	reason := cause.Error()
	if _, err := s.messages.FailPending(context.WithoutCancel(ctx), ids, reason, at); err != nil {
		log.Error().Err(err).Str("message_id", msg.ID.String()).Msg("failed to mark recipients failed")
		return
	}
	for i := range msg.Recipients {
		if msg.Recipients[i].Status == models.DeliveryStatusPending {
			msg.Recipients[i].Status = models.DeliveryStatusFailed
			msg.Recipients[i].StatusUpdatedAt = &at
			msg.Recipients[i].LastError = &reason
		}
	}
}

// GetMessageByID loads a message with its recipients. Not-found reads are
// retried a few times to ride out replica lag.
func (s *Service) GetMessageByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var lastErr error

	for attempt := 0; attempt <= s.cfg.ReadRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.cfg.ReadRetryDelay):
			}
		}

		msg, err := s.messages.GetByID(ctx, id)
		if err == nil {
			return msg, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("get message: %w", err)
		}
		lastErr = err
	}

	return nil, mapNotFound(lastErr, "message")
}

// GetGroupMessages lists a group's messages newest first.
func (s *Service) GetGroupMessages(ctx context.Context, groupID uuid.UUID, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	msgs, err := s.messages.ListByGroup(ctx, groupID, limit)
	if err != nil {
		return nil, fmt.Errorf("list group messages: %w", err)
	}
	return msgs, nil
}

// GetMessageStatus summarizes the delivery state of a message.
func (s *Service) GetMessageStatus(ctx context.Context, messageID uuid.UUID) (*StatusSummary, error) {
	recipients, err := s.messages.ListRecipients(ctx, messageID)
	if err != nil {
		return nil, err
	}

	// no rows means either an unknown message or one with no valid recipients
	if len(recipients) == 0 {
		if _, err := s.messages.GetByID(ctx, messageID); err != nil {
			return nil, mapNotFound(err, "message")
		}
	}

	summary := Summarize(recipients)
	return &summary, nil
}

// RetryFailedRecipients resets the FAILED recipients of a message to PENDING
// and enqueues only that subset. Recipients in any other state are untouched.
func (s *Service) RetryFailedRecipients(ctx context.Context, messageID uuid.UUID) (*RetryResult, error) {
	log := logger.FromContext(ctx)

	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, mapNotFound(err, "message")
	}

	held, err := s.locker.Held(ctx, LockKey(messageID))
	if err != nil {
		return nil, fmt.Errorf("check processing lock: %w", err)
	}
	if held {
		return nil, ErrProcessingInFlight
	}

	totalFailed := 0
	for _, r := range msg.Recipients {
		if r.Status == models.DeliveryStatusFailed {
			totalFailed++
		}
	}

	ids, err := s.messages.ResetFailed(ctx, messageID, s.now())
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &RetryResult{RetriedCount: 0, TotalFailed: totalFailed}, nil
	}

	if err := s.enqueue(ctx, messageID, ids); err != nil {
		if _, ferr := s.messages.FailPending(context.WithoutCancel(ctx), ids, err.Error(), s.now()); ferr != nil {
			log.Error().Err(ferr).Str("message_id", messageID.String()).Msg("failed to restore failed recipients")
		}
		return nil, err
	}

	log.Info().
		Str("message_id", messageID.String()).
		Int("retried", len(ids)).
		Msg("retry enqueued")

	return &RetryResult{RetriedCount: len(ids), TotalFailed: totalFailed}, nil
}

// ResolveGroupRecipients builds candidates from the group roster: players
// with an email address, or the group's evaluators.
func (s *Service) ResolveGroupRecipients(ctx context.Context, groupID uuid.UUID, kind models.RecipientType) ([]RecipientCandidate, error) {
	var out []RecipientCandidate

	switch kind {
	case models.RecipientTypePlayers:
		players, err := s.roster.ListPlayersWithEmail(ctx, groupID)
		if err != nil {
			return nil, fmt.Errorf("list players: %w", err)
		}
		for _, p := range players {
			id := p.ID
			out = append(out, RecipientCandidate{PlayerID: &id, Email: *p.Email})
		}
	case models.RecipientTypeEvaluators:
		users, err := s.roster.ListEvaluators(ctx, groupID)
		if err != nil {
			return nil, fmt.Errorf("list evaluators: %w", err)
		}
		for _, u := range users {
			id := u.ID
			out = append(out, RecipientCandidate{EvaluatorID: &id, Email: u.Email})
		}
	default:
		return nil, validationError("unknown recipient_type %q", kind)
	}

	return out, nil
}

func mapNotFound(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", what, err)
}
