package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

type Notification struct {
	ID           uuid.UUID              `json:"id"`
	UserID       uuid.UUID              `json:"user_id"`
	GroupOrderID *uuid.UUID             `json:"group_order_id,omitempty"`
	Type         enums.NotificationType `json:"type"`
	Title        string                 `json:"title"`
	Message      string                 `json:"message"`
	Payload      json.RawMessage        `json:"payload,omitempty"`
	Read         bool                   `json:"read"`
	ReadAt       *time.Time             `json:"read_at,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

func NewNotification(n models.Notification) Notification {
	view := Notification{
		ID:           n.ID,
		UserID:       n.UserID,
		GroupOrderID: n.GroupOrderID,
		Type:         n.Type,
		Title:        n.Title,
		Message:      n.Message,
		Read:         n.ReadAt != nil,
		ReadAt:       n.ReadAt,
		CreatedAt:    n.CreatedAt,
	}
	if len(n.Payload) > 0 {
		view.Payload = json.RawMessage(n.Payload)
	}
	return view
}

// NotificationPage is one cursor page of a user's notifications.
type NotificationPage struct {
	Items       []Notification `json:"items"`
	Cursor      string         `json:"cursor,omitempty"`
	UnreadCount int64          `json:"unread_count"`
}

// EmailDelivery is the operator view of a tracked email. Content is omitted.
type EmailDelivery struct {
	ID                uuid.UUID                 `json:"id"`
	Recipient         string                    `json:"recipient"`
	Subject           string                    `json:"subject"`
	TemplateName      string                    `json:"template_name"`
	Status            enums.EmailDeliveryStatus `json:"status"`
	ProviderMessageID *string                   `json:"provider_message_id,omitempty"`
	Error             *string                   `json:"error,omitempty"`
	RetryCount        int                       `json:"retry_count"`
	MaxRetries        int                       `json:"max_retries"`
	FailedAt          *time.Time                `json:"failed_at,omitempty"`
	CreatedAt         time.Time                 `json:"created_at"`
}

func NewEmailDelivery(d models.EmailDelivery) EmailDelivery {
	return EmailDelivery{
		ID:                d.ID,
		Recipient:         d.Recipient,
		Subject:           d.Subject,
		TemplateName:      d.TemplateName,
		Status:            d.Status,
		ProviderMessageID: d.ProviderMessageID,
		Error:             d.Error,
		RetryCount:        d.RetryCount,
		MaxRetries:        d.MaxRetries,
		FailedAt:          d.FailedAt,
		CreatedAt:         d.CreatedAt,
	}
}
