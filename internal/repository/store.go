package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrStateMismatch is returned by conditional writes that matched no row:
// the entity was not in the expected state.
var ErrStateMismatch = errors.New("state mismatch")

// Store groups the repositories sharing one connection or transaction.
type Store struct {
	db *gorm.DB

	Tickets       *TicketRepository
	Vehicles      *VehicleRepository
	Payments      *PaymentRepository
	History       *HistoryRepository
	Outbox        *OutboxRepository
	Subscriptions *SubscriptionRepository
	Settings      *SettingsRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:            db,
		Tickets:       NewTicketRepository(db),
		Vehicles:      NewVehicleRepository(db),
		Payments:      NewPaymentRepository(db),
		History:       NewHistoryRepository(db),
		Outbox:        NewOutboxRepository(db),
		Subscriptions: NewSubscriptionRepository(db),
		Settings:      NewSettingsRepository(db),
	}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn against a Store bound to a single transaction. Only
// the tx-bound Store may be used inside fn.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

func conditional(result *gorm.DB) error {
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStateMismatch
	}
	return nil
}
