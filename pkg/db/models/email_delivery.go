package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

// EmailDelivery is the durable record of one outbound email. Subject and
// content are stored verbatim so retries resend identical bytes.
type EmailDelivery struct {
	ID                uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	Recipient         string                    `gorm:"column:recipient;not null"`
	Subject           string                    `gorm:"column:subject;not null"`
	TemplateName      string                    `gorm:"column:template_name;not null"`
	Content           string                    `gorm:"column:content;type:text;not null"`
	Status            enums.EmailDeliveryStatus `gorm:"column:status;type:email_delivery_status;not null;index"`
	ProviderMessageID *string                   `gorm:"column:provider_message_id;index"`
	SentAt            *time.Time                `gorm:"column:sent_at"`
	FailedAt          *time.Time                `gorm:"column:failed_at"`
	DeliveredAt       *time.Time                `gorm:"column:delivered_at"`
	Error             *string                   `gorm:"column:error"`
	RetryCount        int                       `gorm:"column:retry_count;not null;default:0"`
	MaxRetries        int                       `gorm:"column:max_retries;not null;default:3"`
	RelatedUserID     *uuid.UUID                `gorm:"column:related_user_id;type:uuid"`
	RelatedCampaignID *uuid.UUID                `gorm:"column:related_campaign_id;type:uuid"`
	CreatedAt         time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (EmailDelivery) TableName() string { return "email_deliveries" }

// Exhausted reports whether the retry budget is spent.
func (e EmailDelivery) Exhausted() bool {
	return e.Status == enums.EmailDeliveryStatusFailed && e.RetryCount >= e.MaxRetries
}
