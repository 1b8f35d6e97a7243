// Package mail sends outbound email through a pluggable transport.
package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/blockedby/teamsheet/internal/logger"
)

// Email is a single outbound email.
type Email struct {
	To      string
	Subject string
	HTML    string
	ReplyTo string
	From    string
}

// Transport delivers one email. Any returned error counts as a delivery failure.
type Transport interface {
	Send(ctx context.Context, email Email) error
}

// Config selects and configures a transport.
type Config struct {
	Kind       string // log, smtp, ses
	RatePerSec float64
	RateBurst  int

	// SendTimeout bounds one delivery attempt, not the rate limiter wait
	SendTimeout time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string

	AWSRegion      string
	AWSAccessKeyID string
	AWSSecretKey   string
}

var errNoRecipient = errors.New("email has no recipient")

// New builds the configured transport. It is wrapped in WithTimeout when
// SendTimeout is positive and in a rate limiter when RatePerSec is positive.
func New(ctx context.Context, cfg Config, log *logger.Logger) (Transport, error) {
	var (
		t   Transport
		err error
	)

	switch cfg.Kind {
	case "", "log":
		t = NewLogTransport(log)
	case "smtp":
		t = NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	case "ses":
		t, err = NewSESTransport(ctx, cfg.AWSRegion, cfg.AWSAccessKeyID, cfg.AWSSecretKey)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported mail transport %q", cfg.Kind)
	}

	if cfg.SendTimeout > 0 {
		t = NewWithTimeout(t, cfg.SendTimeout)
	}
	if cfg.RatePerSec > 0 {
		t = NewRateLimited(t, cfg.RatePerSec, cfg.RateBurst)
	}
	return t, nil
}

// LogTransport writes emails to the log instead of sending them.
type LogTransport struct {
	log *logger.Logger
}

// NewLogTransport creates a transport for local development.
func NewLogTransport(log *logger.Logger) *LogTransport {
	return &LogTransport{log: log}
}

// Send logs the email and always succeeds.
func (t *LogTransport) Send(_ context.Context, email Email) error {
	if email.To == "" {
		return errNoRecipient
	}
	t.log.Info().
		Str("to", logger.RedactEmail(email.To)).
		Str("subject", email.Subject).
		Str("reply_to", email.ReplyTo).
		Int("html_bytes", len(email.HTML)).
		Msg("email (log transport)")
	return nil
}

// RateLimited throttles calls to the wrapped transport.
type RateLimited struct {
	next    Transport
	limiter *rate.Limiter
}

// NewRateLimited wraps next with a token-bucket limiter.
func NewRateLimited(next Transport, perSec float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSec), burst),
	}
}

// Send waits for a token, then delegates.
func (r *RateLimited) Send(ctx context.Context, email Email) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.Send(ctx, email)
}

// WithTimeout bounds each Send call. A timed-out call returns
// context.DeadlineExceeded and counts as a failure.
type WithTimeout struct {
	next    Transport
	timeout time.Duration
}

// NewWithTimeout wraps next so that no Send outlives timeout.
func NewWithTimeout(next Transport, timeout time.Duration) *WithTimeout {
	return &WithTimeout{next: next, timeout: timeout}
}

// Send runs the wrapped Send under a deadline.
func (w *WithTimeout) Send(ctx context.Context, email Email) error {
	if w.timeout <= 0 {
		return w.next.Send(ctx, email)
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- w.next.Send(ctx, email)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("send to %s: %w", logger.RedactEmail(email.To), ctx.Err())
	}
}
