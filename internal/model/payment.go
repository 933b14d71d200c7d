package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentMethod string

const (
	PaymentMethodMobile      PaymentMethod = "mobile"
	PaymentMethodWire        PaymentMethod = "wire"
	PaymentMethodCashLocal   PaymentMethod = "cash_local"
	PaymentMethodCashForeign PaymentMethod = "cash_foreign"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodMobile, PaymentMethodWire, PaymentMethodCashLocal, PaymentMethodCashForeign:
		return true
	}
	return false
}

type PaymentState string

const (
	PaymentStatePending   PaymentState = "pending"
	PaymentStateValidated PaymentState = "validated"
	PaymentStateRejected  PaymentState = "rejected"
)

// Payment is one payment attempt. It is mutated once, on validate or reject,
// and never deleted.
type Payment struct {
	ID                uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	TicketCode        string              `gorm:"type:varchar(32);not null;index" json:"ticket_code"`
	VehicleID         uuid.UUID           `gorm:"type:uuid;not null;index" json:"vehicle_id"`
	Method            PaymentMethod       `gorm:"type:varchar(32);not null" json:"method"`
	AmountPaid        decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"amount_paid"`
	AmountPaidForeign decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"amount_paid_foreign"`
	ExchangeRateUsed  decimal.NullDecimal `gorm:"type:numeric(14,4)" json:"exchange_rate_used"`
	Reference         string              `gorm:"type:varchar(64)" json:"reference,omitempty"`
	Bank              string              `gorm:"type:varchar(64)" json:"bank,omitempty"`
	Phone             string              `gorm:"type:varchar(32)" json:"phone,omitempty"`
	IDDocument        string              `gorm:"type:varchar(32)" json:"id_document,omitempty"`
	ReceiptImageURL   string              `gorm:"type:text" json:"receipt_image_url,omitempty"`
	SubmittedAt       time.Time           `gorm:"not null" json:"submitted_at"`
	ValidationState   PaymentState        `gorm:"type:varchar(16);not null;index" json:"validation_state"`
	ValidatedAt       *time.Time          `json:"validated_at"`
	ValidatedBy       *uuid.UUID          `gorm:"type:uuid" json:"validated_by"`
	RejectionReason   string              `gorm:"type:text" json:"rejection_reason,omitempty"`
	AcceptedAmount    decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"accepted_amount"`
	OverpaidAmount    decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"overpaid_amount"`
	CreatedAt         time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
