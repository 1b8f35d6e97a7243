package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/blockedby/teamsheet/internal/lock"
	"github.com/blockedby/teamsheet/internal/logger"
	"github.com/blockedby/teamsheet/internal/mail"
	"github.com/blockedby/teamsheet/internal/models"
	"github.com/blockedby/teamsheet/internal/repository"
)

// MessageReader loads messages with their recipients.
type MessageReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
}

// NameLookup resolves recipient display names.
type NameLookup interface {
	FindPlayer(ctx context.Context, id, groupID uuid.UUID) (*models.Player, error)
	FindUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Processor delivers the recipients of a dispatch job one at a time.
type Processor struct {
	messages  MessageReader
	names     NameLookup
	transport mail.Transport
	tracker   *DeliveryTracker
	locker    lock.Locker
	from      string
	log       *logger.Logger
}

// ProcessorConfig groups the processor's tunables. Send timeouts belong to
// the transport (mail.WithTimeout).
type ProcessorConfig struct {
	From string
}

// NewProcessor creates a new dispatch processor.
func NewProcessor(
	messages MessageReader,
	names NameLookup,
	transport mail.Transport,
	tracker *DeliveryTracker,
	locker lock.Locker,
	cfg ProcessorConfig,
	log *logger.Logger,
) *Processor {
	return &Processor{
		messages:  messages,
		names:     names,
		transport: transport,
		tracker:   tracker,
		locker:    locker,
		from:      cfg.From,
		log:       log,
	}
}

// LockKey names the processing lock of a message.
func LockKey(messageID uuid.UUID) string {
	return "message:" + messageID.String()
}

// Process delivers the job's PENDING recipients in insertion order.
// Per-recipient failures are recorded and never returned. ErrProcessingInFlight
// means another run holds the message and the job should be retried later.
func (p *Processor) Process(ctx context.Context, job DispatchJob) (err error) {
	log := p.log.WithRequestID(job.RequestID)
	ctx = logger.IntoContext(ctx, log)
	key := LockKey(job.MessageID)

	acquired, err := p.locker.Acquire(ctx, key)
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		return ErrProcessingInFlight
	}
	defer func() {
		if rerr := p.locker.Release(context.Background(), key); rerr != nil {
			log.Warn().Err(rerr).Str("message_id", job.MessageID.String()).Msg("failed to release lock")
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("message_id", job.MessageID.String()).
				Interface("panic", r).
				Msg("dispatch batch panicked")
			err = nil
		}
	}()

	msg, err := p.messages.GetByID(ctx, job.MessageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn().Str("message_id", job.MessageID.String()).Msg("message not found, dropping job")
			return nil
		}
		return fmt.Errorf("load message: %w", err)
	}

	replyTo := p.replyTo(ctx, msg)

	var sent, failed, skipped int
	for i := range msg.Recipients {
		rec := &msg.Recipients[i]
		if !job.includes(rec.ID) || rec.Status != StatusPending {
			skipped++
			continue
		}

		if ok := p.deliver(ctx, msg, rec, replyTo); ok {
			sent++
		} else if rec.Status == StatusFailed {
			failed++
		}
	}

	log.Info().
		Str("message_id", msg.ID.String()).
		Int("sent", sent).
		Int("failed", failed).
		Int("skipped", skipped).
		Msg("dispatch batch finished")

	return nil
}

// deliver runs one recipient through PROCESSING to SENT or FAILED.
func (p *Processor) deliver(ctx context.Context, msg *models.Message, rec *models.MessageRecipient, replyTo string) (ok bool) {
	log := logger.FromContext(ctx)

	started, err := p.tracker.TrackStart(ctx, rec)
	if err != nil {
		log.Error().Err(err).Str("recipient_id", rec.ID.String()).Msg("failed to mark recipient processing")
		return false
	}
	if !started {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("recipient_id", rec.ID.String()).Interface("panic", r).Msg("recipient delivery panicked")
			p.fail(ctx, rec, fmt.Errorf("panic: %v", r))
			ok = false
		}
	}()

	names := p.resolveNames(ctx, msg, rec)
	email := mail.Email{
		From:    p.from,
		To:      rec.Email,
		ReplyTo: replyTo,
		Subject: Substitute(msg.Subject, names),
		HTML:    Substitute(msg.Body, names),
	}

	if err := p.transport.Send(ctx, email); err != nil {
		p.fail(ctx, rec, &DeliveryError{RecipientID: rec.ID, Err: err})
		return false
	}
	return p.markSent(ctx, rec)
}

// markSent records a delivered email. The write outlives cancellation of ctx
// and is tried twice, since a lost write leaves the row in PROCESSING.
func (p *Processor) markSent(ctx context.Context, rec *models.MessageRecipient) bool {
	ctx = context.WithoutCancel(ctx)
	err := p.tracker.TrackSuccess(ctx, rec)
	if err != nil {
		err = p.tracker.TrackSuccess(ctx, rec)
	}
	if err != nil {
		logger.FromContext(ctx).Error().
			Err(err).
			Str("recipient_id", rec.ID.String()).
			Msg("email delivered but status not recorded, recipient left PROCESSING")
		return false
	}
	return true
}

func (p *Processor) fail(ctx context.Context, rec *models.MessageRecipient, cause error) {
	ctx = context.WithoutCancel(ctx)
	if err := p.tracker.TrackFailure(ctx, rec, cause); err != nil {
		logger.FromContext(ctx).Error().Err(err).Str("recipient_id", rec.ID.String()).Msg("failed to mark recipient failed")
	}
}

// resolveNames looks up the recipient's first and last name. Lookup
// failures leave both names unknown so the tokens stay as typed.
func (p *Processor) resolveNames(ctx context.Context, msg *models.Message, rec *models.MessageRecipient) Names {
	switch {
	case rec.PlayerID != nil:
		player, err := p.names.FindPlayer(ctx, *rec.PlayerID, msg.GroupID)
		if err != nil {
			p.logLookupFailure(ctx, rec, err)
			return Names{}
		}
		return Names{First: player.FirstName, Last: player.LastName}
	case rec.EvaluatorID != nil:
		user, err := p.names.FindUser(ctx, *rec.EvaluatorID)
		if err != nil {
			p.logLookupFailure(ctx, rec, err)
			return Names{}
		}
		return Names{First: user.FirstName, Last: user.LastName}
	}
	return Names{}
}

func (p *Processor) logLookupFailure(ctx context.Context, rec *models.MessageRecipient, err error) {
	logger.FromContext(ctx).Debug().Err(err).Str("recipient_id", rec.ID.String()).Msg("recipient name lookup failed")
}

func (p *Processor) replyTo(ctx context.Context, msg *models.Message) string {
	if msg.ReplyToID == nil {
		return ""
	}
	user, err := p.names.FindUser(ctx, *msg.ReplyToID)
	if err != nil {
		logger.FromContext(ctx).Debug().Err(err).Str("reply_to_id", msg.ReplyToID.String()).Msg("reply-to lookup failed")
		return ""
	}
	return user.Email
}
