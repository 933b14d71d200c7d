package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"parking-service/internal/fee"
	"parking-service/internal/model"
	"parking-service/internal/repository"
)

const (
	ticketCodeWidth = 3
	maxSeedCount    = 1000
)

type TicketService struct {
	engine
	prefix string
}

func NewTicketService(p Params) *TicketService {
	prefix := strings.ToUpper(strings.TrimSpace(p.TicketPrefix))
	if prefix == "" {
		prefix = "PARK"
	}
	return &TicketService{engine: newEngine(p), prefix: prefix}
}

type AssignVehicleInput struct {
	Plate           string
	Make            string
	Model           string
	Color           string
	OwnerName       string
	OwnerPhone      string
	PlateImageURL   string
	VehicleImageURL string
	CaptureMeta     map[string]interface{}
}

// AssignVehicle registers a vehicle on an available ticket.
func (s *TicketService) AssignVehicle(ctx context.Context, principal model.Principal, code string, input AssignVehicleInput) (*model.Vehicle, error) {
	if !principal.IsStaff() {
		return nil, ErrPermissionDenied
	}
	code = normalizeCode(code)
	plate := normalizePlate(input.Plate)
	if !model.ValidTicketCode(code) || plate == "" {
		return nil, ErrInvalidInput
	}

	now := s.now()
	vehicle := &model.Vehicle{
		Plate:           plate,
		Make:            strings.TrimSpace(input.Make),
		Model:           strings.TrimSpace(input.Model),
		Color:           strings.TrimSpace(input.Color),
		OwnerName:       strings.TrimSpace(input.OwnerName),
		OwnerPhone:      strings.TrimSpace(input.OwnerPhone),
		TicketCode:      code,
		State:           model.VehicleStateParked,
		CheckInAt:       now,
		PlateImageURL:   input.PlateImageURL,
		VehicleImageURL: input.VehicleImageURL,
		CaptureMeta:     input.CaptureMeta,
	}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		ticket, err := tx.Tickets.Get(ctx, code)
		if err != nil {
			return err
		}
		to, ok := model.NextTicketState(ticket.State, model.TicketEventAssignVehicle)
		if !ok {
			return ErrInvalidTransition
		}
		if existing, err := tx.Vehicles.GetByTicketCode(ctx, code); err == nil && existing != nil {
			return ErrInvalidTransition
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		// Customer subscriptions can only be registered on an occupied ticket,
		// so any still active here belong to the previous session.
		if _, err := tx.Subscriptions.DeactivateAllForTicket(ctx, code, now); err != nil {
			return err
		}
		if err := tx.Vehicles.Create(ctx, vehicle); err != nil {
			return err
		}
		if err := tx.Tickets.Transition(ctx, code, ticket.State, to, map[string]interface{}{
			"vehicle_id":          vehicle.ID,
			"occupied_at":         now,
			"exit_at":             nil,
			"computed_amount":     decimal.Zero,
			"planned_exit_offset": nil,
			"last_payment_id":     nil,
		}); err != nil {
			return err
		}
		return appendHistory(ctx, tx, vehicle, model.HistoryVehicleRegistered, string(to), map[string]interface{}{
			"plate":       vehicle.Plate,
			"make":        vehicle.Make,
			"model":       vehicle.Model,
			"color":       vehicle.Color,
			"ticket_code": code,
			"assigned_by": principal.UserID,
		}, now)
	})
	if err := s.committed("assign_vehicle", err); err != nil {
		return nil, err
	}

	s.log.Info().Str("ticket_code", code).Str("plate", plate).Str("vehicle_id", vehicle.ID.String()).Msg("vehicle assigned")
	return vehicle, nil
}

// ConfirmParking records that staff verified the vehicle is correctly parked.
// The vehicle is confirmed first, then the ticket.
func (s *TicketService) ConfirmParking(ctx context.Context, principal model.Principal, code string) (*model.Ticket, error) {
	if !principal.IsStaff() {
		return nil, ErrPermissionDenied
	}
	code = normalizeCode(code)
	now := s.now()

	var ticket *model.Ticket
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		current, err := tx.Tickets.Get(ctx, code)
		if err != nil {
			return err
		}
		to, ok := model.NextTicketState(current.State, model.TicketEventConfirmParking)
		if !ok {
			return ErrInvalidTransition
		}
		vehicle, err := tx.Vehicles.GetByTicketCode(ctx, code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidTransition
			}
			return err
		}
		if err := tx.Vehicles.Transition(ctx, vehicle.ID, model.VehicleStateParked, model.VehicleStateParkedConfirmed); err != nil {
			return err
		}
		if err := tx.Tickets.Transition(ctx, code, current.State, to, nil); err != nil {
			return err
		}
		if err := appendHistory(ctx, tx, vehicle, model.HistoryParkingConfirmed, string(to), map[string]interface{}{
			"ticket_code":  code,
			"confirmed_by": principal.UserID,
		}, now); err != nil {
			return err
		}
		if err := enqueue(ctx, tx, model.NotifyParkingConfirmed, model.SubscriberRoleCustomer, code, map[string]interface{}{
			"ticket_code": code,
			"plate":       vehicle.Plate,
		}); err != nil {
			return err
		}
		ticket, err = tx.Tickets.Get(ctx, code)
		return err
	})
	if err := s.committed("confirm_parking", err); err != nil {
		return nil, err
	}

	s.log.Info().Str("ticket_code", code).Msg("parking confirmed")
	return ticket, nil
}

// Get returns the ticket view. While the ticket is billable the fee is
// recalculated from check-in through now and persisted.
func (s *TicketService) Get(ctx context.Context, code string) (*model.TicketView, error) {
	code = normalizeCode(code)
	if !model.ValidTicketCode(code) {
		return nil, ErrInvalidInput
	}

	ticket, err := s.store.Tickets.Get(ctx, code)
	if err != nil {
		return nil, storageError(err)
	}

	view := &model.TicketView{Ticket: *ticket}
	if ticket.VehicleID != nil {
		vehicle, err := s.store.Vehicles.GetByTicketCode(ctx, code)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storageError(err)
		}
		view.Vehicle = model.BriefVehicle(vehicle)
	}
	if ticket.LastPaymentID != nil {
		payment, err := s.store.Payments.GetByID(ctx, *ticket.LastPaymentID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storageError(err)
		}
		view.LastPayment = model.BriefPayment(payment)
	}

	if !ticket.State.Billable() || ticket.OccupiedAt == nil {
		view.AmountDue = ticket.ComputedAmount
		return view, nil
	}

	schedule, err := s.schedule(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	amount := fee.ComputeOpen(*ticket.OccupiedAt, now, schedule.Schedule)
	if !amount.Equal(ticket.ComputedAmount) {
		err := s.store.Tickets.UpdateComputedAmount(ctx, code, ticket.State, amount)
		switch {
		case errors.Is(err, repository.ErrStateMismatch):
			s.log.Debug().Str("ticket_code", code).Msg("ticket moved while recalculating fee")
		case err != nil:
			return nil, storageError(err)
		}
	}
	view.Ticket.ComputedAmount = amount
	view.MinutesParked = fee.Minutes(*ticket.OccupiedAt, now)
	view.AmountDue = amount
	view.FXRate = schedule.FXRate
	view.AmountDueForeign = amount.Mul(schedule.FXRate).Round(2)
	return view, nil
}

func (s *TicketService) List(ctx context.Context, principal model.Principal, filter repository.TicketFilter) ([]model.Ticket, error) {
	if !principal.IsStaff() {
		return nil, ErrPermissionDenied
	}
	tickets, err := s.store.Tickets.List(ctx, filter)
	if err != nil {
		return nil, storageError(err)
	}
	return tickets, nil
}

// Seed creates tickets PREFIX001..PREFIXnnn that do not exist yet.
func (s *TicketService) Seed(ctx context.Context, principal model.Principal, count int) (int, error) {
	if !principal.IsAdmin() {
		return 0, ErrPermissionDenied
	}
	if count <= 0 || count > maxSeedCount {
		return 0, ErrInvalidInput
	}
	width := ticketCodeWidth
	if count >= maxSeedCount {
		width = 4
	}
	codes := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		codes = append(codes, model.TicketCode(s.prefix, i, width))
	}
	created, err := s.store.Tickets.Seed(ctx, codes)
	if err != nil {
		return 0, storageError(err)
	}
	s.log.Info().Int("requested", count).Int("created", created).Msg("tickets seeded")
	return created, nil
}

// SetPlannedExit records when the customer intends to leave. The ticket state
// is unchanged; staff are notified.
func (s *TicketService) SetPlannedExit(ctx context.Context, code string, offset model.PlannedExitOffset) (*model.Ticket, error) {
	code = normalizeCode(code)
	d, ok := offset.Duration()
	if !ok || !model.ValidTicketCode(code) {
		return nil, ErrInvalidInput
	}
	now := s.now()
	exitAt := now.Add(d)

	var ticket *model.Ticket
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		current, err := tx.Tickets.Get(ctx, code)
		if err != nil {
			return err
		}
		if !current.State.Billable() {
			return ErrInvalidTransition
		}
		vehicle, err := tx.Vehicles.GetByTicketCode(ctx, code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidTransition
			}
			return err
		}
		if err := tx.Tickets.Transition(ctx, code, current.State, current.State, map[string]interface{}{
			"planned_exit_offset": offset,
			"exit_at":             exitAt,
		}); err != nil {
			return err
		}
		if err := appendHistory(ctx, tx, vehicle, model.HistoryPlannedExitSet, string(current.State), map[string]interface{}{
			"offset":  offset,
			"exit_at": exitAt,
		}, now); err != nil {
			return err
		}
		if err := enqueue(ctx, tx, model.NotifyExitRequested, model.SubscriberRoleAdmin, code, map[string]interface{}{
			"ticket_code": code,
			"plate":       vehicle.Plate,
			"offset":      offset,
			"exit_at":     exitAt,
		}); err != nil {
			return err
		}
		ticket, err = tx.Tickets.Get(ctx, code)
		return err
	})
	if err := s.committed("set_planned_exit", err); err != nil {
		return nil, err
	}
	return ticket, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func normalizePlate(plate string) string {
	return strings.ToUpper(strings.Join(strings.Fields(plate), ""))
}
