package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SubscriberRole string

const (
	SubscriberRoleCustomer SubscriberRole = "customer"
	SubscriberRoleAdmin    SubscriberRole = "admin"
)

type NotificationEvent string

const (
	NotifyParkingConfirmed NotificationEvent = "parking_confirmed"
	NotifyPaymentSubmitted NotificationEvent = "payment_submitted"
	NotifyPaymentValidated NotificationEvent = "payment_validated"
	NotifyPaymentRejected  NotificationEvent = "payment_rejected"
	NotifyExitRequested    NotificationEvent = "exit_requested"
	NotifyVehicleDelivered NotificationEvent = "vehicle_delivered"
)

// NotificationSubscription binds a push endpoint to a ticket code (customer)
// or to a role. Expired endpoints are deactivated, never deleted.
type NotificationSubscription struct {
	ID            uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Endpoint      string            `gorm:"type:varchar(512);not null;uniqueIndex" json:"endpoint"`
	Keys          datatypes.JSONMap `gorm:"type:jsonb" json:"keys"`
	TicketCode    *string           `gorm:"type:varchar(32);index" json:"ticket_code"`
	Role          SubscriberRole    `gorm:"type:varchar(16);not null;index" json:"role"`
	IsActive      bool              `gorm:"not null" json:"is_active"`
	DeactivatedAt *time.Time        `json:"deactivated_at"`
	CreatedAt     time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (NotificationSubscription) TableName() string {
	return "notification_subscriptions"
}

func (s *NotificationSubscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusDispatched OutboxStatus = "dispatched"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// NotificationOutbox is a notification recorded inside the business
// transaction and dispatched after commit.
type NotificationOutbox struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Event          NotificationEvent `gorm:"type:varchar(32);not null" json:"event"`
	TargetRole     SubscriberRole    `gorm:"type:varchar(16);not null" json:"target_role"`
	TicketCode     *string           `gorm:"type:varchar(32)" json:"ticket_code"`
	Payload        datatypes.JSON    `gorm:"type:jsonb" json:"payload"`
	Status         OutboxStatus      `gorm:"type:varchar(16);not null;index" json:"status"`
	Attempts       int               `gorm:"not null;default:0" json:"attempts"`
	DeliveredCount int               `gorm:"not null;default:0" json:"delivered_count"`
	LastError      string            `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
	DispatchedAt   *time.Time        `json:"dispatched_at"`
}

func (NotificationOutbox) TableName() string {
	return "notification_outbox"
}

func (o *NotificationOutbox) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

type DeliveryOutcome string

const (
	DeliveryDelivered DeliveryOutcome = "delivered"
	DeliveryExpired   DeliveryOutcome = "expired"
	DeliveryFailed    DeliveryOutcome = "failed"
)

// NotificationDelivery records a final outcome for one subscriber of one
// outbox row, so a re-run never sends twice.
type NotificationDelivery struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OutboxID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uniq_notification_deliveries_outbox_sub" json:"outbox_id"`
	SubscriptionID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uniq_notification_deliveries_outbox_sub" json:"subscription_id"`
	Outcome        DeliveryOutcome `gorm:"type:varchar(16);not null" json:"outcome"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (NotificationDelivery) TableName() string {
	return "notification_deliveries"
}

func (d *NotificationDelivery) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
