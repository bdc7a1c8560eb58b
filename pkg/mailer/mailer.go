package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/groupbuy-backend/pkg/config"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
)

// Message is one rendered outbound email.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
}

// Mailer hands a rendered message to a transport and returns the provider's
// message id used to correlate delivery webhooks.
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Sender identifies the From header for every transport.
type Sender struct {
	Address string
	Name    string
}

func (s Sender) header() string {
	if strings.TrimSpace(s.Name) == "" {
		return s.Address
	}
	return fmt.Sprintf("%s <%s>", s.Name, s.Address)
}

// New selects the transport named by the email provider setting.
func New(cfg *config.Config, logg *logger.Logger) (Mailer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	from := Sender{Address: cfg.Email.FromAddress, Name: cfg.Email.FromName}
	switch cfg.Email.ProviderName() {
	case config.EmailProviderSendgrid:
		return NewSendgrid(SendgridOptions{
			APIKey:  cfg.Sendgrid.APIKey,
			BaseURL: cfg.Sendgrid.BaseURL,
			From:    from,
			Timeout: cfg.Email.RequestTimeout,
		})
	case config.EmailProviderSMTP:
		return NewSMTP(SMTPOptions{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     from,
		})
	case config.EmailProviderLog, "":
		return NewLog(logg), nil
	default:
		return nil, fmt.Errorf("unsupported email provider %q", cfg.Email.Provider)
	}
}

func validate(msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("recipient required")
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return fmt.Errorf("subject required")
	}
	return nil
}
