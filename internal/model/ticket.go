package model

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TicketState string

const (
	TicketStateAvailable      TicketState = "available"
	TicketStateOccupied       TicketState = "occupied"
	TicketStateConfirmed      TicketState = "confirmed"
	TicketStatePaymentPending TicketState = "payment_pending"
	TicketStateValidated      TicketState = "validated"
)

// Billable reports whether the fee is recalculated on read.
func (s TicketState) Billable() bool {
	return s == TicketStateConfirmed || s == TicketStatePaymentPending || s == TicketStateValidated
}

type TicketEvent string

const (
	TicketEventAssignVehicle   TicketEvent = "assign_vehicle"
	TicketEventConfirmParking  TicketEvent = "confirm_parking"
	TicketEventSubmitPayment   TicketEvent = "submit_payment"
	TicketEventValidatePayment TicketEvent = "validate_payment"
	TicketEventRejectPayment   TicketEvent = "reject_payment"
	TicketEventProcessExit     TicketEvent = "process_exit"
)

type ticketTransition struct {
	From TicketState
	To   TicketState
}

var ticketTransitions = map[TicketEvent]ticketTransition{
	TicketEventAssignVehicle:   {From: TicketStateAvailable, To: TicketStateOccupied},
	TicketEventConfirmParking:  {From: TicketStateOccupied, To: TicketStateConfirmed},
	TicketEventSubmitPayment:   {From: TicketStateConfirmed, To: TicketStatePaymentPending},
	TicketEventValidatePayment: {From: TicketStatePaymentPending, To: TicketStateValidated},
	TicketEventRejectPayment:   {From: TicketStatePaymentPending, To: TicketStateConfirmed},
	TicketEventProcessExit:     {From: TicketStateValidated, To: TicketStateAvailable},
}

// NextTicketState returns the target state when event is legal from the given state.
func NextTicketState(from TicketState, event TicketEvent) (TicketState, bool) {
	t, ok := ticketTransitions[event]
	if !ok || t.From != from {
		return "", false
	}
	return t.To, true
}

type PlannedExitOffset string

const (
	PlannedExitNow PlannedExitOffset = "now"
	PlannedExit5m  PlannedExitOffset = "5m"
	PlannedExit10m PlannedExitOffset = "10m"
	PlannedExit15m PlannedExitOffset = "15m"
	PlannedExit20m PlannedExitOffset = "20m"
	PlannedExit30m PlannedExitOffset = "30m"
	PlannedExit45m PlannedExitOffset = "45m"
	PlannedExit60m PlannedExitOffset = "60m"
)

var plannedExitDurations = map[PlannedExitOffset]time.Duration{
	PlannedExitNow: 0,
	PlannedExit5m:  5 * time.Minute,
	PlannedExit10m: 10 * time.Minute,
	PlannedExit15m: 15 * time.Minute,
	PlannedExit20m: 20 * time.Minute,
	PlannedExit30m: 30 * time.Minute,
	PlannedExit45m: 45 * time.Minute,
	PlannedExit60m: 60 * time.Minute,
}

func (o PlannedExitOffset) Duration() (time.Duration, bool) {
	d, ok := plannedExitDurations[o]
	return d, ok
}

var ticketCodePattern = regexp.MustCompile(`^[A-Z]+[0-9]+$`)

func ValidTicketCode(code string) bool {
	return ticketCodePattern.MatchString(code)
}

// TicketCode formats a seeded code, e.g. ("PARK", 3, 3) -> "PARK003".
func TicketCode(prefix string, seq, width int) string {
	return fmt.Sprintf("%s%0*d", prefix, width, seq)
}

// Ticket is one physical parking space. It is never deleted.
type Ticket struct {
	Code              string             `gorm:"type:varchar(32);primaryKey" json:"code"`
	State             TicketState        `gorm:"type:varchar(32);not null;index" json:"state"`
	VehicleID         *uuid.UUID         `gorm:"type:uuid" json:"vehicle_id"`
	OccupiedAt        *time.Time         `json:"occupied_at"`
	ExitAt            *time.Time         `json:"exit_at"`
	ComputedAmount    decimal.Decimal    `gorm:"type:numeric(12,2);not null;default:0" json:"computed_amount"`
	PlannedExitOffset *PlannedExitOffset `gorm:"type:varchar(8)" json:"planned_exit_offset"`
	LastPaymentID     *uuid.UUID         `gorm:"type:uuid" json:"last_payment_id"`
	CreatedAt         time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Ticket) TableName() string {
	return "tickets"
}
