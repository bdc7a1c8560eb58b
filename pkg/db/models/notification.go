package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

// Notification stores in-app notification payloads scoped to users.
type Notification struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID       uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	GroupOrderID *uuid.UUID             `gorm:"column:group_order_id;type:uuid"`
	Type         enums.NotificationType `gorm:"column:type;type:notification_type;not null"`
	Title        string                 `gorm:"column:title;type:text;not null"`
	Message      string                 `gorm:"column:message;type:text;not null"`
	Payload      datatypes.JSON         `gorm:"column:payload;type:jsonb"`
	ReadAt       *time.Time             `gorm:"column:read_at"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (Notification) TableName() string { return "notifications" }
