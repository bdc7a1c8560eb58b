package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     Sender
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer relays messages through a plain SMTP server.
type SMTPMailer struct {
	opts     SMTPOptions
	sendMail sendMailFunc
	now      func() time.Time
}

func NewSMTP(opts SMTPOptions) (*SMTPMailer, error) {
	if strings.TrimSpace(opts.Host) == "" {
		return nil, fmt.Errorf("smtp host required")
	}
	if strings.TrimSpace(opts.From.Address) == "" {
		return nil, fmt.Errorf("smtp from address required")
	}
	if opts.Port == 0 {
		opts.Port = 587
	}
	return &SMTPMailer{opts: opts, sendMail: smtp.SendMail, now: time.Now}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) (string, error) {
	if err := validate(msg); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var auth smtp.Auth
	if m.opts.Username != "" {
		auth = smtp.PlainAuth("", m.opts.Username, m.opts.Password, m.opts.Host)
	}
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), m.opts.Host)
	raw := buildMIME(m.opts.From, msg, messageID, m.now())
	addr := fmt.Sprintf("%s:%d", m.opts.Host, m.opts.Port)
	if err := m.sendMail(addr, auth, m.opts.From.Address, []string{msg.To}, raw); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	return messageID, nil
}

func buildMIME(from Sender, msg Message, messageID string, at time.Time) []byte {
	to := msg.To
	if msg.ToName != "" {
		to = fmt.Sprintf("%s <%s>", msg.ToName, msg.To)
	}
	var b strings.Builder
	b.WriteString("From: " + from.header() + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("Message-ID: " + messageID + "\r\n")
	b.WriteString("Date: " + at.UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	return []byte(b.String())
}
