package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"gopkg.in/mail.v2"

	"github.com/hamed0406/pingmonitor/internal/domain"
)

// Email sends alerts through an SMTP relay with STARTTLS when offered.
type Email struct {
	Server   string
	Port     int
	From     string
	Password string
	To       []string
}

func (e *Email) Name() string { return "email" }

func (e *Email) message(ev domain.AlertEvent) *mail.Message {
	title, text := Format(ev)
	m := mail.NewMessage()
	m.SetHeader("From", e.From)
	m.SetHeader("To", e.To...)
	m.SetHeader("Subject", title)
	m.SetBody("text/plain", text)
	return m
}

func (e *Email) dialer(timeout time.Duration) *mail.Dialer {
	d := mail.NewDialer(e.Server, e.Port, e.From, e.Password)
	d.TLSConfig = &tls.Config{ServerName: e.Server}
	d.Timeout = timeout
	if e.Port == 465 {
		d.SSL = true
	} else {
		d.StartTLSPolicy = mail.OpportunisticStartTLS
	}
	return d
}

// Send delivers ev, giving up when ctx is done. The SMTP client is not
// context aware, so the dial runs in its own goroutine bounded by the
// dialer timeout.
func (e *Email) Send(ctx context.Context, ev domain.AlertEvent) error {
	timeout := 15 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	d := e.dialer(timeout)
	m := e.message(ev)

	done := make(chan error, 1)
	go func() { done <- d.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send email: %w", ctx.Err())
	}
}
