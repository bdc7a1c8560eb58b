package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

//go:embed templates/*.html
var templateFS embed.FS

// TemplateData is the view model every email template renders.
type TemplateData struct {
	RecipientName     string
	BatchNumber       string
	OrderNumber       string
	Reason            string
	MinThreshold      string
	CurrentAmount     string
	EstimatedDelivery string
	ActualDelivery    string
}

type messageCopy struct {
	title   string
	subject string
	message string
}

var messageCopies = map[enums.NotificationType]messageCopy{
	enums.NotificationTypeOrderConfirmed: {
		title:   "Order confirmed",
		subject: "Order %s confirmed",
		message: "Your payment for batch %s was received.",
	},
	enums.NotificationTypeThresholdMet: {
		title:   "Group order threshold reached",
		subject: "Batch %s reached its target",
		message: "Batch %s reached its minimum and will be ordered soon.",
	},
	enums.NotificationTypeGroupOrdered: {
		title:   "Group order placed",
		subject: "Batch %s has been ordered",
		message: "Batch %s was ordered from the supplier.",
	},
	enums.NotificationTypeShipped: {
		title:   "Group order shipped",
		subject: "Batch %s has shipped",
		message: "Batch %s is on its way.",
	},
	enums.NotificationTypeDelivered: {
		title:   "Group order delivered",
		subject: "Batch %s was delivered",
		message: "Batch %s was delivered.",
	},
	enums.NotificationTypeCancelled: {
		title:   "Group order cancelled",
		subject: "Batch %s was cancelled",
		message: "Batch %s was cancelled and your order will be refunded.",
	},
	enums.NotificationTypeExpired: {
		title:   "Group order expired",
		subject: "Batch %s expired",
		message: "Batch %s closed before reaching its minimum.",
	},
}

// Renderer turns a notification type and view model into email bytes.
type Renderer struct {
	templates map[enums.NotificationType]*template.Template
}

// NewRenderer parses every embedded template once.
func NewRenderer() (*Renderer, error) {
	templates := make(map[enums.NotificationType]*template.Template, len(messageCopies))
	for kind := range messageCopies {
		tmpl, err := template.New(string(kind)).ParseFS(templateFS, "templates/layout.html", "templates/"+string(kind)+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", kind, err)
		}
		templates[kind] = tmpl
	}
	return &Renderer{templates: templates}, nil
}

// Render returns the email subject and HTML body.
func (r *Renderer) Render(kind enums.NotificationType, data TemplateData) (string, string, error) {
	mc, ok := messageCopies[kind]
	if !ok {
		return "", "", fmt.Errorf("no template for %s", kind)
	}
	tmpl, ok := r.templates[kind]
	if !ok {
		return "", "", fmt.Errorf("template %s not loaded", kind)
	}
	var body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&body, "layout", data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", kind, err)
	}
	return subjectFor(kind, mc, data), body.String(), nil
}

func subjectFor(kind enums.NotificationType, mc messageCopy, data TemplateData) string {
	if kind == enums.NotificationTypeOrderConfirmed && data.OrderNumber != "" {
		return fmt.Sprintf(mc.subject, data.OrderNumber)
	}
	return fmt.Sprintf(mc.subject, data.BatchNumber)
}

// inAppMessage returns the title and body stored on the Notification row.
func inAppMessage(kind enums.NotificationType, batchNumber string) (string, string) {
	mc, ok := messageCopies[kind]
	if !ok {
		return string(kind), ""
	}
	return mc.title, fmt.Sprintf(mc.message, batchNumber)
}
