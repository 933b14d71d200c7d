package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type VehicleBrief struct {
	ID         uuid.UUID    `json:"id"`
	Plate      string       `json:"plate"`
	Make       string       `json:"make"`
	Model      string       `json:"model"`
	Color      string       `json:"color"`
	OwnerName  string       `json:"owner_name"`
	State      VehicleState `json:"state"`
	CheckInAt  time.Time    `json:"check_in_at"`
	PlateImage string       `json:"plate_image_url,omitempty"`
}

type PaymentBrief struct {
	ID              uuid.UUID     `json:"id"`
	Method          PaymentMethod `json:"method"`
	AmountPaid      string        `json:"amount_paid"`
	ValidationState PaymentState  `json:"validation_state"`
	SubmittedAt     time.Time     `json:"submitted_at"`
	RejectionReason string        `json:"rejection_reason,omitempty"`
}

// TicketView is the read model returned on ticket lookup.
type TicketView struct {
	Ticket           Ticket          `json:"ticket"`
	Vehicle          *VehicleBrief   `json:"vehicle"`
	LastPayment      *PaymentBrief   `json:"last_payment"`
	MinutesParked    int64           `json:"minutes_parked"`
	AmountDue        decimal.Decimal `json:"amount_due"`
	AmountDueForeign decimal.Decimal `json:"amount_due_foreign"`
	FXRate           decimal.Decimal `json:"fx_rate"`
}

type HistorySummary struct {
	VehicleID       uuid.UUID        `json:"vehicle_id"`
	Plate           string           `json:"plate"`
	TicketCode      string           `json:"ticket_code"`
	LastEventType   HistoryEventType `json:"last_event_type"`
	LastState       string           `json:"last_state"`
	LastEventAt     *time.Time       `json:"last_event_at"`
	TotalPaidAmount decimal.Decimal  `json:"total_paid_amount"`
	TotalMinutes    int64            `json:"total_minutes_parked"`
	EventCount      int64            `json:"event_count"`
}

type HistoryDetail struct {
	Summary          VehicleHistory `json:"summary"`
	Events           []HistoryEvent `json:"events"`
	Payments         []Payment      `json:"payments"`
	RejectedPayments []Payment      `json:"rejected_payments"`
}

func BriefVehicle(v *Vehicle) *VehicleBrief {
	if v == nil {
		return nil
	}
	return &VehicleBrief{
		ID:         v.ID,
		Plate:      v.Plate,
		Make:       v.Make,
		Model:      v.Model,
		Color:      v.Color,
		OwnerName:  v.OwnerName,
		State:      v.State,
		CheckInAt:  v.CheckInAt,
		PlateImage: v.PlateImageURL,
	}
}

func BriefPayment(p *Payment) *PaymentBrief {
	if p == nil {
		return nil
	}
	return &PaymentBrief{
		ID:              p.ID,
		Method:          p.Method,
		AmountPaid:      p.AmountPaid.StringFixed(2),
		ValidationState: p.ValidationState,
		SubmittedAt:     p.SubmittedAt,
		RejectionReason: p.RejectionReason,
	}
}

func SummaryOf(h VehicleHistory) HistorySummary {
	return HistorySummary{
		VehicleID:       h.VehicleID,
		Plate:           h.Plate,
		TicketCode:      h.TicketCode,
		LastEventType:   h.LastEventType,
		LastState:       h.LastState,
		LastEventAt:     h.LastEventAt,
		TotalPaidAmount: h.TotalPaidAmount,
		TotalMinutes:    h.TotalMinutesParked,
		EventCount:      h.EventCount,
	}
}
