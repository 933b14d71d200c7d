package service

import (
	"context"

	"github.com/google/uuid"

	"parking-service/internal/model"
	"parking-service/internal/repository"
)

type HistoryService struct {
	engine
}

func NewHistoryService(p Params) *HistoryService {
	return &HistoryService{engine: newEngine(p)}
}

func (s *HistoryService) Summaries(ctx context.Context, principal model.Principal, filter repository.HistoryFilter) ([]model.HistorySummary, error) {
	if !principal.IsStaff() {
		return nil, ErrPermissionDenied
	}
	filter.TicketCode = normalizeCode(filter.TicketCode)
	aggregates, err := s.store.History.Summaries(ctx, filter)
	if err != nil {
		return nil, storageError(err)
	}
	summaries := make([]model.HistorySummary, 0, len(aggregates))
	for _, a := range aggregates {
		summaries = append(summaries, model.SummaryOf(a))
	}
	return summaries, nil
}

func (s *HistoryService) Summary(ctx context.Context, principal model.Principal, vehicleID uuid.UUID) (*model.HistorySummary, error) {
	if !principal.IsStaff() {
		return nil, ErrPermissionDenied
	}
	aggregate, err := s.store.History.Summary(ctx, vehicleID)
	if err != nil {
		return nil, storageError(err)
	}
	summary := model.SummaryOf(*aggregate)
	return &summary, nil
}

// Detail returns the full ordered log of a vehicle plus its payments, with
// rejected payments listed separately. It only reads.
func (s *HistoryService) Detail(ctx context.Context, principal model.Principal, vehicleID uuid.UUID) (*model.HistoryDetail, error) {
	if !principal.IsStaff() {
		return nil, ErrPermissionDenied
	}
	aggregate, err := s.store.History.Summary(ctx, vehicleID)
	if err != nil {
		return nil, storageError(err)
	}
	events, err := s.store.History.Events(ctx, vehicleID)
	if err != nil {
		return nil, storageError(err)
	}
	payments, err := s.store.Payments.ListByVehicle(ctx, vehicleID)
	if err != nil {
		return nil, storageError(err)
	}

	detail := &model.HistoryDetail{
		Summary:          *aggregate,
		Events:           events,
		Payments:         make([]model.Payment, 0, len(payments)),
		RejectedPayments: make([]model.Payment, 0),
	}
	for _, p := range payments {
		if p.ValidationState == model.PaymentStateRejected {
			detail.RejectedPayments = append(detail.RejectedPayments, p)
			continue
		}
		detail.Payments = append(detail.Payments, p)
	}
	return detail, nil
}

// Rebuild recomputes a vehicle's aggregate by replaying its log.
func (s *HistoryService) Rebuild(ctx context.Context, principal model.Principal, vehicleID uuid.UUID) (*model.HistorySummary, error) {
	if !principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	aggregate, err := s.store.History.Rebuild(ctx, vehicleID)
	if err != nil {
		return nil, storageError(err)
	}
	s.log.Info().Str("vehicle_id", vehicleID.String()).Int64("events", aggregate.EventCount).Msg("history rebuilt")
	summary := model.SummaryOf(*aggregate)
	return &summary, nil
}
