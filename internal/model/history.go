package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type HistoryEventType string

const (
	HistoryVehicleRegistered HistoryEventType = "vehicle_registered"
	HistoryParkingConfirmed  HistoryEventType = "parking_confirmed"
	HistoryPaymentSubmitted  HistoryEventType = "payment_submitted"
	HistoryPaymentValidated  HistoryEventType = "payment_validated"
	HistoryPaymentRejected   HistoryEventType = "payment_rejected"
	HistoryPlannedExitSet    HistoryEventType = "planned_exit_set"
	HistoryVehicleExited     HistoryEventType = "vehicle_exited"
)

// HistoryEvent is one immutable fact about a vehicle's journey.
type HistoryEvent struct {
	ID         uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	VehicleID  uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:uniq_history_events_vehicle_seq" json:"vehicle_id"`
	Seq        int64            `gorm:"not null;uniqueIndex:uniq_history_events_vehicle_seq" json:"seq"`
	Type       HistoryEventType `gorm:"type:varchar(32);not null" json:"type"`
	State      string           `gorm:"type:varchar(32);not null" json:"state"`
	OccurredAt time.Time        `gorm:"not null" json:"occurred_at"`
	Payload    datatypes.JSON   `gorm:"type:jsonb" json:"payload"`
}

func (HistoryEvent) TableName() string {
	return "history_events"
}

func (e *HistoryEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// VehicleHistory is the per-vehicle aggregate over history_events. Every
// field is derivable by replaying the log.
type VehicleHistory struct {
	VehicleID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"vehicle_id"`
	Plate              string           `gorm:"type:varchar(16);not null;index" json:"plate"`
	TicketCode         string           `gorm:"type:varchar(32);not null;index" json:"ticket_code"`
	CheckInAt          *time.Time       `json:"check_in_at"`
	ExitedAt           *time.Time       `json:"exited_at"`
	TotalPaidAmount    decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0" json:"total_paid_amount"`
	TotalMinutesParked int64            `gorm:"not null;default:0" json:"total_minutes_parked"`
	EventCount         int64            `gorm:"not null;default:0" json:"event_count"`
	LastEventType      HistoryEventType `gorm:"type:varchar(32)" json:"last_event_type"`
	LastState          string           `gorm:"type:varchar(32)" json:"last_state"`
	LastEventAt        *time.Time       `json:"last_event_at"`
	CreatedAt          time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (VehicleHistory) TableName() string {
	return "vehicle_histories"
}

type eventTotals struct {
	AmountPaid    *decimal.Decimal `json:"amount_paid"`
	MinutesParked *int64           `json:"minutes_parked"`
}

// Apply folds one event into the aggregate. An event whose payload cannot be
// decoded leaves the aggregate untouched.
func (h *VehicleHistory) Apply(e HistoryEvent) error {
	var totals eventTotals
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, &totals); err != nil {
			return fmt.Errorf("decode payload of event %d (%s): %w", e.Seq, e.Type, err)
		}
	}

	occurred := e.OccurredAt
	h.EventCount = e.Seq
	h.LastEventType = e.Type
	h.LastState = e.State
	h.LastEventAt = &occurred

	switch e.Type {
	case HistoryVehicleRegistered:
		h.CheckInAt = &occurred
	case HistoryPaymentValidated:
		if totals.AmountPaid != nil {
			h.TotalPaidAmount = h.TotalPaidAmount.Add(*totals.AmountPaid)
		}
	case HistoryVehicleExited:
		h.ExitedAt = &occurred
		if totals.MinutesParked != nil {
			h.TotalMinutesParked = *totals.MinutesParked
		}
	}
	return nil
}

// Replay rebuilds the derived fields from an ordered event sequence and stops
// at the first event that cannot be applied.
func (h *VehicleHistory) Replay(events []HistoryEvent) error {
	h.CheckInAt = nil
	h.ExitedAt = nil
	h.TotalPaidAmount = decimal.Zero
	h.TotalMinutesParked = 0
	h.EventCount = 0
	h.LastEventType = ""
	h.LastState = ""
	h.LastEventAt = nil
	for _, e := range events {
		if err := h.Apply(e); err != nil {
			return err
		}
	}
	return nil
}

// EventPayload marshals a payload for a history event or outbox row.
func EventPayload(v any) (datatypes.JSON, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
