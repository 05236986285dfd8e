package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationTypeSuccess NotificationType = "success"
	NotificationTypeInfo    NotificationType = "info"
	NotificationTypeWarning NotificationType = "warning"
	NotificationTypeError   NotificationType = "error"
	NotificationTypePrize   NotificationType = "prize"
)

type DeliveryStatus string

const (
	DeliveryStatusDraft     DeliveryStatus = "draft"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
)

// NotificationData is the optional structured payload attached to a notification
type NotificationData struct {
	PrizeID     *string          `json:"prize_id,omitempty"`
	PrizeName   *string          `json:"prize_name,omitempty"`
	PrizeValue  *decimal.Decimal `json:"prize_value,omitempty"`
	ActionURL   *string          `json:"action_url,omitempty"`
	ActionLabel *string          `json:"action_label,omitempty"`
	ImageURL    *string          `json:"image_url,omitempty"`
}

func (d NotificationData) Value() (driver.Value, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (d *NotificationData) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*d = NotificationData{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported notification data type %T", value)
	}
	if len(raw) == 0 {
		*d = NotificationData{}
		return nil
	}
	return json.Unmarshal(raw, d)
}

// Notification is a broadcast message. It is immutable once delivered.
type Notification struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Type           NotificationType  `gorm:"size:20;not null" json:"type"`
	Title          string            `gorm:"size:100;not null" json:"title"`
	Message        string            `gorm:"size:500;not null" json:"message"`
	Data           *NotificationData `gorm:"type:jsonb" json:"data,omitempty"`
	DeliveryStatus DeliveryStatus    `gorm:"size:20;not null;default:draft;index" json:"delivery_status"`
	RecipientCount int64             `gorm:"default:0" json:"recipient_count"`
	DeliveredAt    *time.Time        `json:"delivered_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// UserNotification is one recipient's inbox entry for a notification
type UserNotification struct {
	UserID         string         `gorm:"primaryKey;size:191" json:"user_id"`
	NotificationID uuid.UUID      `gorm:"primaryKey;type:uuid" json:"notification_id"`
	Notification   *Notification  `gorm:"foreignKey:NotificationID" json:"notification,omitempty"`
	ReadAt         *time.Time     `json:"read_at,omitempty"`
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (UserNotification) TableName() string {
	return "user_notifications"
}

// InboxItem is a notification as seen by one recipient
type InboxItem struct {
	Notification
	Read       bool       `json:"read"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	ReceivedAt time.Time  `json:"received_at"`
}
