package mail

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"time"
)

// SMTPTransport sends through an SMTP relay with PLAIN auth.
type SMTPTransport struct {
	addr     string
	auth     smtp.Auth
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPTransport creates an SMTP transport. Empty username disables auth.
func NewSMTPTransport(host string, port int, username, password string) *SMTPTransport {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPTransport{
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		auth:     auth,
		sendMail: smtp.SendMail,
	}
}

// Send delivers the email. net/smtp has no context support, so a cancelled
// ctx abandons the in-flight call.
func (t *SMTPTransport) Send(ctx context.Context, email Email) error {
	if email.To == "" {
		return errNoRecipient
	}

	from, err := mail.ParseAddress(email.From)
	if err != nil {
		return fmt.Errorf("parse from address: %w", err)
	}

	msg := buildMessage(email, time.Now())

	done := make(chan error, 1)
	go func() {
		done <- t.sendMail(t.addr, t.auth, from.Address, []string{email.To}, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// buildMessage renders an RFC 5322 message with an HTML body.
func buildMessage(email Email, date time.Time) []byte {
	var buf bytes.Buffer

	writeHeader := func(k, v string) {
		buf.WriteString(k)
		buf.WriteString(": ")
		buf.WriteString(v)
		buf.WriteString("\r\n")
	}

	writeHeader("From", email.From)
	writeHeader("To", email.To)
	if email.ReplyTo != "" {
		writeHeader("Reply-To", email.ReplyTo)
	}
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", email.Subject))
	writeHeader("Date", date.Format(time.RFC1123Z))
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", `text/html; charset="UTF-8"`)
	buf.WriteString("\r\n")
	buf.WriteString(email.HTML)

	return buf.Bytes()
}
