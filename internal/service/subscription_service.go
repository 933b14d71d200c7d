package service

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"gorm.io/gorm"

	"parking-service/internal/model"
	"parking-service/internal/repository"
)

type SubscriptionService struct {
	engine
}

func NewSubscriptionService(p Params) *SubscriptionService {
	return &SubscriptionService{engine: newEngine(p)}
}

type SubscribeInput struct {
	Endpoint string
	Keys     map[string]interface{}
}

func (in SubscribeInput) endpoint() (string, error) {
	endpoint := strings.TrimSpace(in.Endpoint)
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "https" && parsed.Scheme != "http") {
		return "", ErrInvalidInput
	}
	return endpoint, nil
}

// SubscribeCustomer binds an endpoint to an occupied ticket.
func (s *SubscriptionService) SubscribeCustomer(ctx context.Context, code string, input SubscribeInput) (*model.NotificationSubscription, error) {
	code = normalizeCode(code)
	endpoint, err := input.endpoint()
	if err != nil || !model.ValidTicketCode(code) {
		return nil, ErrInvalidInput
	}
	ticket, err := s.store.Tickets.Get(ctx, code)
	if err != nil {
		return nil, storageError(err)
	}
	if ticket.State == model.TicketStateAvailable {
		return nil, ErrInvalidTransition
	}
	return s.upsert(ctx, &model.NotificationSubscription{
		Endpoint:   endpoint,
		Keys:       input.Keys,
		TicketCode: &code,
		Role:       model.SubscriberRoleCustomer,
	})
}

// SubscribeStaff binds an endpoint to the admin role.
func (s *SubscriptionService) SubscribeStaff(ctx context.Context, principal model.Principal, input SubscribeInput) (*model.NotificationSubscription, error) {
	if !principal.IsStaff() {
		return nil, ErrPermissionDenied
	}
	endpoint, err := input.endpoint()
	if err != nil {
		return nil, err
	}
	return s.upsert(ctx, &model.NotificationSubscription{
		Endpoint: endpoint,
		Keys:     input.Keys,
		Role:     model.SubscriberRoleAdmin,
	})
}

func (s *SubscriptionService) Unsubscribe(ctx context.Context, endpoint string) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return ErrInvalidInput
	}
	err := s.store.Subscriptions.DeactivateByEndpoint(ctx, endpoint, s.now())
	if errors.Is(err, repository.ErrStateMismatch) {
		return ErrNotFound
	}
	return storageError(err)
}

func (s *SubscriptionService) upsert(ctx context.Context, sub *model.NotificationSubscription) (*model.NotificationSubscription, error) {
	if err := s.store.Subscriptions.Upsert(ctx, sub); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrInvalidTransition
		}
		return nil, storageError(err)
	}
	s.log.Info().Str("subscription_id", sub.ID.String()).Str("role", string(sub.Role)).Msg("subscription registered")
	return sub, nil
}

// Outbox lists notification outbox rows, newest first.
func (s *SubscriptionService) Outbox(ctx context.Context, principal model.Principal, status model.OutboxStatus, limit int) ([]model.NotificationOutbox, error) {
	if !principal.IsStaff() {
		return nil, ErrPermissionDenied
	}
	switch status {
	case "", model.OutboxStatusPending, model.OutboxStatusDispatched, model.OutboxStatusFailed:
	default:
		return nil, ErrInvalidInput
	}
	rows, err := s.store.Outbox.List(ctx, status, limit)
	if err != nil {
		return nil, storageError(err)
	}
	return rows, nil
}
