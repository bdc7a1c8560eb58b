package mailer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const sendgridSendPath = "/v3/mail/send"

type SendgridOptions struct {
	APIKey  string
	BaseURL string
	From    Sender
	Timeout time.Duration
}

// SendgridMailer posts messages to the SendGrid v3 mail/send API.
type SendgridMailer struct {
	client *resty.Client
	from   Sender
}

type sendgridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendgridPersonalization struct {
	To []sendgridAddress `json:"to"`
}

type sendgridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendgridRequest struct {
	Personalizations []sendgridPersonalization `json:"personalizations"`
	From             sendgridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendgridContent         `json:"content"`
}

func NewSendgrid(opts SendgridOptions) (*SendgridMailer, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("sendgrid api key required")
	}
	if strings.TrimSpace(opts.From.Address) == "" {
		return nil, fmt.Errorf("sendgrid from address required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.sendgrid.com"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetAuthToken(opts.APIKey).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	return &SendgridMailer{client: client, from: opts.From}, nil
}

func (m *SendgridMailer) Send(ctx context.Context, msg Message) (string, error) {
	if err := validate(msg); err != nil {
		return "", err
	}
	body := sendgridRequest{
		Personalizations: []sendgridPersonalization{{
			To: []sendgridAddress{{Email: msg.To, Name: msg.ToName}},
		}},
		From:    sendgridAddress{Email: m.from.Address, Name: m.from.Name},
		Subject: msg.Subject,
		Content: []sendgridContent{{Type: "text/html", Value: msg.HTML}},
	}

	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(sendgridSendPath)
	if err != nil {
		return "", fmt.Errorf("sendgrid request: %w", err)
	}
	if resp.StatusCode() != http.StatusAccepted && resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("sendgrid send failed with status %d: %s", resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
	}
	messageID := resp.Header().Get("X-Message-Id")
	if messageID == "" {
		return "", fmt.Errorf("sendgrid response missing X-Message-Id")
	}
	return messageID, nil
}
