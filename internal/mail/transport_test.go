package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/teamsheet/internal/logger"
)

type countingTransport struct {
	calls atomic.Int32
	delay time.Duration
}

func (c *countingTransport) Send(ctx context.Context, _ Email) error {
	c.calls.Add(1)
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func TestNew_SelectsTransport(t *testing.T) {
	log := logger.Get()

	tr, err := New(context.Background(), Config{Kind: "log"}, log)
	require.NoError(t, err)
	assert.IsType(t, &LogTransport{}, tr)

	tr, err = New(context.Background(), Config{Kind: "smtp", SMTPHost: "localhost", SMTPPort: 25}, log)
	require.NoError(t, err)
	assert.IsType(t, &SMTPTransport{}, tr)

	tr, err = New(context.Background(), Config{Kind: "log", RatePerSec: 5, RateBurst: 1}, log)
	require.NoError(t, err)
	assert.IsType(t, &RateLimited{}, tr)

	tr, err = New(context.Background(), Config{Kind: "log", SendTimeout: time.Second}, log)
	require.NoError(t, err)
	assert.IsType(t, &WithTimeout{}, tr)

	tr, err = New(context.Background(), Config{Kind: "log", SendTimeout: time.Second, RatePerSec: 5}, log)
	require.NoError(t, err)
	limited, ok := tr.(*RateLimited)
	require.True(t, ok)
	assert.IsType(t, &WithTimeout{}, limited.next, "timeout sits inside the limiter")

	_, err = New(context.Background(), Config{Kind: "pigeon"}, log)
	assert.Error(t, err)
}

func TestLogTransport_Send(t *testing.T) {
	tr := NewLogTransport(logger.Get())
	assert.NoError(t, tr.Send(context.Background(), Email{To: "a@b.co", Subject: "hi"}))
	assert.Error(t, tr.Send(context.Background(), Email{}))
}

func TestRateLimited_Throttles(t *testing.T) {
	inner := &countingTransport{}
	tr := NewRateLimited(inner, 20, 1)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, tr.Send(context.Background(), Email{To: "a@b.co"}))
	}

	assert.Equal(t, int32(3), inner.calls.Load())
	// 1 burst token + 2 waits of 50ms
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestRateLimited_CancelledContext(t *testing.T) {
	inner := &countingTransport{}
	tr := NewRateLimited(inner, 0.001, 1)
	require.NoError(t, tr.Send(context.Background(), Email{To: "a@b.co"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := tr.Send(ctx, Email{To: "a@b.co"})
	assert.Error(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestWithTimeout(t *testing.T) {
	slow := &countingTransport{delay: time.Second}
	tr := NewWithTimeout(slow, 20*time.Millisecond)

	err := tr.Send(context.Background(), Email{To: "a@b.co"})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	fast := NewWithTimeout(&countingTransport{}, time.Second)
	assert.NoError(t, fast.Send(context.Background(), Email{To: "a@b.co"}))
}

func TestSMTPTransport_Send(t *testing.T) {
	tr := NewSMTPTransport("smtp.example.com", 587, "user", "pass")

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	tr.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err := tr.Send(context.Background(), Email{
		From:    "Teamsheet <no-reply@teamsheet.local>",
		To:      "player@example.com",
		ReplyTo: "coach@example.com",
		Subject: "Practice",
		HTML:    "<p>See you</p>",
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "no-reply@teamsheet.local", gotFrom)
	assert.Equal(t, []string{"player@example.com"}, gotTo)

	msg := string(gotMsg)
	assert.Contains(t, msg, "Reply-To: coach@example.com\r\n")
	assert.Contains(t, msg, "Content-Type: text/html")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\n<p>See you</p>"))
}

func TestSMTPTransport_Errors(t *testing.T) {
	tr := NewSMTPTransport("smtp.example.com", 25, "", "")
	tr.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("550 mailbox unavailable")
	}

	err := tr.Send(context.Background(), Email{From: "x@y.co", To: "a@b.co"})
	assert.ErrorContains(t, err, "550")

	err = tr.Send(context.Background(), Email{From: "not an address", To: "a@b.co"})
	assert.Error(t, err)
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{}, nil
}

func TestSESTransport_Send(t *testing.T) {
	client := &fakeSES{}
	tr := NewSESTransportWithClient(client)

	err := tr.Send(context.Background(), Email{
		From:    "no-reply@teamsheet.local",
		To:      "player@example.com",
		ReplyTo: "coach@example.com",
		Subject: "Practice",
		HTML:    "<p>Hi</p>",
	})
	require.NoError(t, err)
	require.NotNil(t, client.input)

	assert.Equal(t, "no-reply@teamsheet.local", *client.input.FromEmailAddress)
	assert.Equal(t, []string{"player@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, []string{"coach@example.com"}, client.input.ReplyToAddresses)
	assert.Equal(t, "Practice", *client.input.Content.Simple.Subject.Data)
	assert.Equal(t, "<p>Hi</p>", *client.input.Content.Simple.Body.Html.Data)
}

func TestSESTransport_Error(t *testing.T) {
	tr := NewSESTransportWithClient(&fakeSES{err: errors.New("throttled")})
	err := tr.Send(context.Background(), Email{To: "a@b.co"})
	assert.ErrorContains(t, err, "throttled")
}
