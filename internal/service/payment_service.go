package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"parking-service/internal/fee"
	"parking-service/internal/model"
	"parking-service/internal/repository"
)

type PaymentService struct {
	engine
}

func NewPaymentService(p Params) *PaymentService {
	return &PaymentService{engine: newEngine(p)}
}

type SubmitPaymentInput struct {
	Method            model.PaymentMethod
	AmountPaid        decimal.Decimal
	AmountPaidForeign *decimal.Decimal
	ExchangeRate      *decimal.Decimal
	Reference         string
	Bank              string
	Phone             string
	IDDocument        string
	ReceiptImageURL   string
}

func (in SubmitPaymentInput) validate() error {
	if !in.Method.Valid() || !in.AmountPaid.IsPositive() {
		return ErrInvalidInput
	}
	switch in.Method {
	case model.PaymentMethodMobile, model.PaymentMethodWire:
		if strings.TrimSpace(in.Reference) == "" {
			return ErrInvalidInput
		}
	case model.PaymentMethodCashForeign:
		if in.AmountPaidForeign == nil || !in.AmountPaidForeign.IsPositive() {
			return ErrInvalidInput
		}
	}
	if in.ExchangeRate != nil && !in.ExchangeRate.IsPositive() {
		return ErrInvalidInput
	}
	return nil
}

// Submit records a customer's payment proof against a confirmed ticket. Only
// one pending payment may exist per ticket: the ticket update is conditional
// on the confirmed state and the payments table carries a partial unique index.
func (s *PaymentService) Submit(ctx context.Context, code string, input SubmitPaymentInput) (*model.Payment, error) {
	code = normalizeCode(code)
	if !model.ValidTicketCode(code) {
		return nil, ErrInvalidInput
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	payment := &model.Payment{
		ID:              uuid.New(),
		TicketCode:      code,
		Method:          input.Method,
		AmountPaid:      input.AmountPaid.Round(2),
		Reference:       strings.TrimSpace(input.Reference),
		Bank:            strings.TrimSpace(input.Bank),
		Phone:           strings.TrimSpace(input.Phone),
		IDDocument:      strings.TrimSpace(input.IDDocument),
		ReceiptImageURL: input.ReceiptImageURL,
		ValidationState: model.PaymentStatePending,
	}
	if input.AmountPaidForeign != nil {
		payment.AmountPaidForeign = decimal.NewNullDecimal(input.AmountPaidForeign.Round(2))
	}
	if input.ExchangeRate != nil {
		payment.ExchangeRateUsed = decimal.NewNullDecimal(*input.ExchangeRate)
	} else if input.Method == model.PaymentMethodCashForeign {
		schedule, err := s.schedule(ctx)
		if err != nil {
			return nil, err
		}
		payment.ExchangeRateUsed = decimal.NewNullDecimal(schedule.FXRate)
	}

	now := s.now()
	payment.SubmittedAt = now

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		ticket, err := tx.Tickets.Get(ctx, code)
		if err != nil {
			return err
		}
		if err := pendingGuard(ctx, tx, code); err != nil {
			return err
		}
		to, ok := model.NextTicketState(ticket.State, model.TicketEventSubmitPayment)
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
		payment.VehicleID = vehicle.ID

		if err := tx.Tickets.Transition(ctx, code, ticket.State, to, map[string]interface{}{
			"last_payment_id": payment.ID,
		}); err != nil {
			if errors.Is(err, repository.ErrStateMismatch) {
				if guardErr := pendingGuard(ctx, tx, code); guardErr != nil {
					return guardErr
				}
			}
			return err
		}
		if err := tx.Payments.Create(ctx, payment); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrConflictingPendingPayment
			}
			return err
		}
		if err := appendHistory(ctx, tx, vehicle, model.HistoryPaymentSubmitted, string(to), paymentSnapshot(payment), now); err != nil {
			return err
		}
		return enqueue(ctx, tx, model.NotifyPaymentSubmitted, model.SubscriberRoleAdmin, code, map[string]interface{}{
			"ticket_code": code,
			"payment_id":  payment.ID,
			"method":      payment.Method,
			"amount_paid": payment.AmountPaid,
		})
	})
	if err := s.committed("submit_payment", err); err != nil {
		return nil, err
	}

	s.log.Info().Str("ticket_code", code).Str("payment_id", payment.ID.String()).Str("method", string(payment.Method)).Msg("payment submitted")
	return payment, nil
}

func pendingGuard(ctx context.Context, tx *repository.Store, code string) error {
	pending, err := tx.Payments.FindPending(ctx, code)
	if err != nil {
		return err
	}
	if pending != nil {
		return ErrConflictingPendingPayment
	}
	return nil
}

// Validate accepts a pending payment and makes the ticket ready for exit.
func (s *PaymentService) Validate(ctx context.Context, principal model.Principal, paymentID uuid.UUID) (*model.Payment, error) {
	if !principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	now := s.now()

	var payment *model.Payment
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		current, vehicle, err := resolvable(ctx, tx, paymentID, model.TicketEventValidatePayment)
		if err != nil {
			return err
		}
		validator := principal.UserID
		if err := tx.Payments.Resolve(ctx, current.ID, model.PaymentStateValidated, map[string]interface{}{
			"validated_at": now,
			"validated_by": validator,
		}); err != nil {
			return err
		}
		if err := tx.Tickets.Transition(ctx, current.TicketCode, model.TicketStatePaymentPending, model.TicketStateValidated, nil); err != nil {
			return err
		}
		current.ValidationState = model.PaymentStateValidated
		current.ValidatedAt = &now
		current.ValidatedBy = &validator

		if err := appendHistory(ctx, tx, vehicle, model.HistoryPaymentValidated, string(model.TicketStateValidated), paymentSnapshot(current), now); err != nil {
			return err
		}
		if err := enqueue(ctx, tx, model.NotifyPaymentValidated, model.SubscriberRoleCustomer, current.TicketCode, map[string]interface{}{
			"ticket_code": current.TicketCode,
			"payment_id":  current.ID,
			"amount_paid": current.AmountPaid,
		}); err != nil {
			return err
		}
		payment, err = tx.Payments.GetByID(ctx, current.ID)
		return err
	})
	if err := s.committed("validate_payment", err); err != nil {
		return nil, err
	}

	s.log.Info().Str("ticket_code", payment.TicketCode).Str("payment_id", payment.ID.String()).Msg("payment validated")
	return payment, nil
}

type RejectPaymentInput struct {
	Reason         string
	AcceptedAmount *decimal.Decimal
	OverpaidAmount *decimal.Decimal
}

// Reject declines a pending payment and makes the ticket payable again.
// Accepted and overpaid amounts are recorded as given, without reconciliation.
func (s *PaymentService) Reject(ctx context.Context, principal model.Principal, paymentID uuid.UUID, input RejectPaymentInput) (*model.Payment, error) {
	if !principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, ErrInvalidInput
	}
	for _, amount := range []*decimal.Decimal{input.AcceptedAmount, input.OverpaidAmount} {
		if amount != nil && amount.IsNegative() {
			return nil, ErrInvalidInput
		}
	}
	now := s.now()

	var payment *model.Payment
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		current, vehicle, err := resolvable(ctx, tx, paymentID, model.TicketEventRejectPayment)
		if err != nil {
			return err
		}
		validator := principal.UserID
		fields := map[string]interface{}{
			"validated_at":     now,
			"validated_by":     validator,
			"rejection_reason": reason,
		}
		partial := map[string]interface{}{}
		if input.AcceptedAmount != nil {
			fields["accepted_amount"] = input.AcceptedAmount.Round(2)
			partial["accepted_amount"] = input.AcceptedAmount.Round(2)
		}
		if input.OverpaidAmount != nil {
			fields["overpaid_amount"] = input.OverpaidAmount.Round(2)
			partial["overpaid_amount"] = input.OverpaidAmount.Round(2)
		}
		if err := tx.Payments.Resolve(ctx, current.ID, model.PaymentStateRejected, fields); err != nil {
			return err
		}
		if err := tx.Tickets.Transition(ctx, current.TicketCode, model.TicketStatePaymentPending, model.TicketStateConfirmed, nil); err != nil {
			return err
		}
		current.ValidationState = model.PaymentStateRejected
		current.RejectionReason = reason

		payload := paymentSnapshot(current)
		payload["rejection_reason"] = reason
		payload["rejected_by"] = validator
		if len(partial) > 0 {
			payload["partial_acceptance"] = partial
		}
		if err := appendHistory(ctx, tx, vehicle, model.HistoryPaymentRejected, string(model.TicketStateConfirmed), payload, now); err != nil {
			return err
		}
		if err := enqueue(ctx, tx, model.NotifyPaymentRejected, model.SubscriberRoleCustomer, current.TicketCode, map[string]interface{}{
			"ticket_code": current.TicketCode,
			"payment_id":  current.ID,
			"reason":      reason,
		}); err != nil {
			return err
		}
		payment, err = tx.Payments.GetByID(ctx, current.ID)
		return err
	})
	if err := s.committed("reject_payment", err); err != nil {
		return nil, err
	}

	s.log.Info().Str("ticket_code", payment.TicketCode).Str("payment_id", payment.ID.String()).Msg("payment rejected")
	return payment, nil
}

// resolvable loads a payment that may still be validated or rejected, along
// with the vehicle it was made for.
func resolvable(ctx context.Context, tx *repository.Store, paymentID uuid.UUID, event model.TicketEvent) (*model.Payment, *model.Vehicle, error) {
	payment, err := tx.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	if payment.ValidationState != model.PaymentStatePending {
		return nil, nil, ErrInvalidTransition
	}
	ticket, err := tx.Tickets.Get(ctx, payment.TicketCode)
	if err != nil {
		return nil, nil, err
	}
	if _, ok := model.NextTicketState(ticket.State, event); !ok {
		return nil, nil, ErrInvalidTransition
	}
	if ticket.LastPaymentID == nil || *ticket.LastPaymentID != payment.ID {
		return nil, nil, ErrInvalidTransition
	}
	vehicle, err := tx.Vehicles.GetByID(ctx, payment.VehicleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidTransition
		}
		return nil, nil, err
	}
	return payment, vehicle, nil
}

// ExitReceipt summarizes a completed parking session.
type ExitReceipt struct {
	TicketCode    string                `json:"ticket_code"`
	Vehicle       model.ArchivedVehicle `json:"vehicle"`
	FinalAmount   decimal.Decimal       `json:"final_amount"`
	MinutesParked int64                 `json:"minutes_parked"`
}

// ProcessExit releases a validated ticket: the final fee is computed, the
// vehicle archived and the ticket reset to available.
func (s *PaymentService) ProcessExit(ctx context.Context, principal model.Principal, code string) (*ExitReceipt, error) {
	if !principal.IsStaff() {
		return nil, ErrPermissionDenied
	}
	code = normalizeCode(code)
	if !model.ValidTicketCode(code) {
		return nil, ErrInvalidInput
	}
	schedule, err := s.schedule(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()

	var receipt *ExitReceipt
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		ticket, err := tx.Tickets.Get(ctx, code)
		if err != nil {
			return err
		}
		to, ok := model.NextTicketState(ticket.State, model.TicketEventProcessExit)
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

		amount := fee.Compute(vehicle.CheckInAt, now, schedule.Schedule)
		minutes := fee.Minutes(vehicle.CheckInAt, now)
		archived := vehicle.Archive(now, amount, minutes)
		if err := tx.Vehicles.Archive(ctx, &archived); err != nil {
			return err
		}
		if err := tx.Tickets.Transition(ctx, code, ticket.State, to, map[string]interface{}{
			"vehicle_id":          nil,
			"occupied_at":         nil,
			"exit_at":             nil,
			"computed_amount":     decimal.Zero,
			"planned_exit_offset": nil,
			"last_payment_id":     nil,
		}); err != nil {
			return err
		}
		if err := appendHistory(ctx, tx, vehicle, model.HistoryVehicleExited, string(model.VehicleStateExited), map[string]interface{}{
			"ticket_code":    code,
			"final_amount":   amount,
			"minutes_parked": minutes,
			"released_by":    principal.UserID,
		}, now); err != nil {
			return err
		}
		delivered := map[string]interface{}{
			"ticket_code":    code,
			"plate":          vehicle.Plate,
			"final_amount":   amount,
			"minutes_parked": minutes,
		}
		if err := enqueue(ctx, tx, model.NotifyVehicleDelivered, model.SubscriberRoleCustomer, code, delivered); err != nil {
			return err
		}
		if err := enqueue(ctx, tx, model.NotifyVehicleDelivered, model.SubscriberRoleAdmin, code, delivered); err != nil {
			return err
		}
		receipt = &ExitReceipt{
			TicketCode:    code,
			Vehicle:       archived,
			FinalAmount:   amount,
			MinutesParked: minutes,
		}
		return nil
	})
	if err := s.committed("process_exit", err); err != nil {
		return nil, err
	}

	s.log.Info().Str("ticket_code", code).Str("vehicle_id", receipt.Vehicle.ID.String()).Str("final_amount", receipt.FinalAmount.StringFixed(2)).Msg("vehicle exited")
	return receipt, nil
}

func (s *PaymentService) List(ctx context.Context, principal model.Principal, filter repository.PaymentFilter) ([]model.Payment, error) {
	if !principal.IsStaff() {
		return nil, ErrPermissionDenied
	}
	filter.TicketCode = normalizeCode(filter.TicketCode)
	payments, err := s.store.Payments.List(ctx, filter)
	if err != nil {
		return nil, storageError(err)
	}
	return payments, nil
}

func paymentSnapshot(p *model.Payment) map[string]interface{} {
	snapshot := map[string]interface{}{
		"payment_id":  p.ID,
		"method":      p.Method,
		"amount_paid": p.AmountPaid,
		"reference":   p.Reference,
	}
	if p.AmountPaidForeign.Valid {
		snapshot["amount_paid_foreign"] = p.AmountPaidForeign.Decimal
	}
	if p.ExchangeRateUsed.Valid {
		snapshot["exchange_rate_used"] = p.ExchangeRateUsed.Decimal
	}
	if p.Bank != "" {
		snapshot["bank"] = p.Bank
	}
	if p.ValidatedBy != nil {
		snapshot["validated_by"] = *p.ValidatedBy
	}
	return snapshot
}
