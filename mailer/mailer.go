// Package mailer delivers report emails over SMTP.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/jordan-wright/email"
)

// DefaultFrom is the sender used when none is configured.
const DefaultFrom = "donotreply_annex-end-of-day-reports@brown.edu"

// DefaultSubject is the subject used when none is configured.
const DefaultSubject = "annex end-of-day report"

// Attachment is a named file carried by a Message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Content types used by report attachments.
const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Message is a plain-text email with attachments.
type Message struct {
	Subject     string
	Body        string
	To          []string
	Attachments []Attachment
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Config configures an SMTPMailer.
type Config struct {
	Host string
	Port int
	From string
	// To is used when a message carries no recipients of its own.
	To []string
}

// SMTPMailer sends through an unauthenticated relay, the way the annex
// host's local relay is set up.
type SMTPMailer struct {
	addr string
	from string
	to   []string

	// send is swapped in tests.
	send func(addr string, e *email.Email) error
}

var _ Sender = (*SMTPMailer)(nil)

// New validates the config and returns a mailer.
func New(cfg Config) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("mailer host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("mailer port %d out of range", cfg.Port)
	}
	from := cfg.From
	if from == "" {
		from = DefaultFrom
	}
	return &SMTPMailer{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from: from,
		to:   cfg.To,
		send: func(addr string, e *email.Email) error { return e.Send(addr, nil) },
	}, nil
}

// Send builds the message and hands it to the relay.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, err := m.build(msg)
	if err != nil {
		return err
	}
	if err := m.send(m.addr, e); err != nil {
		return fmt.Errorf("send mail via %s: %w", m.addr, err)
	}
	return nil
}

func (m *SMTPMailer) build(msg Message) (*email.Email, error) {
	to := msg.To
	if len(to) == 0 {
		to = m.to
	}
	if len(to) == 0 {
		return nil, errors.New("no recipients")
	}

	e := email.NewEmail()
	e.From = m.from
	e.To = append([]string(nil), to...)
	e.Subject = msg.Subject
	if e.Subject == "" {
		e.Subject = DefaultSubject
	}
	e.Text = []byte(msg.Body)

	for _, a := range msg.Attachments {
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		if _, err := e.Attach(bytes.NewReader(a.Data), a.Name, ct); err != nil {
			return nil, fmt.Errorf("attach %s: %w", a.Name, err)
		}
	}
	return e, nil
}

// Render returns the raw RFC 5322 bytes for msg without sending it.
func (m *SMTPMailer) Render(msg Message) ([]byte, error) {
	e, err := m.build(msg)
	if err != nil {
		return nil, err
	}
	return e.Bytes()
}
