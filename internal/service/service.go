package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"parking-service/internal/metrics"
	"parking-service/internal/model"
	"parking-service/internal/rates"
	"parking-service/internal/repository"
)

// Clock returns the current instant. Services never call time.Now directly.
type Clock func() time.Time

// Notifier is told that new outbox rows were committed.
type Notifier interface {
	Kick()
}

type noopNotifier struct{}

func (noopNotifier) Kick() {}

type Params struct {
	Store        *repository.Store
	Rates        rates.Source
	Notifier     Notifier
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
	Clock        Clock
	RatesTimeout time.Duration
	TicketPrefix string
}

type engine struct {
	store        *repository.Store
	rates        rates.Source
	notifier     Notifier
	metrics      *metrics.Metrics
	log          zerolog.Logger
	now          Clock
	ratesTimeout time.Duration
}

func newEngine(p Params) engine {
	e := engine{
		store:        p.Store,
		rates:        p.Rates,
		notifier:     p.Notifier,
		metrics:      p.Metrics,
		log:          p.Logger,
		now:          p.Clock,
		ratesTimeout: p.RatesTimeout,
	}
	if e.notifier == nil {
		e.notifier = noopNotifier{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.ratesTimeout <= 0 {
		e.ratesTimeout = 2 * time.Second
	}
	return e
}

// schedule fetches the rate schedule outside any transaction, bounded by
// the configured timeout.
func (e engine) schedule(ctx context.Context) (rates.Schedule, error) {
	ctx, cancel := context.WithTimeout(ctx, e.ratesTimeout)
	defer cancel()
	s, err := e.rates.Schedule(ctx)
	if err != nil {
		return rates.Schedule{}, storageError(err)
	}
	return s, nil
}

// committed finishes an operation: counts it, and wakes the notification
// worker once the transaction is durable.
func (e engine) committed(operation string, err error) error {
	e.metrics.Transition(operation, err)
	if err != nil {
		return storageError(err)
	}
	e.notifier.Kick()
	return nil
}

func enqueue(ctx context.Context, tx *repository.Store, event model.NotificationEvent, role model.SubscriberRole, ticketCode string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	row := &model.NotificationOutbox{
		Event:      event,
		TargetRole: role,
		Payload:    raw,
		Status:     model.OutboxStatusPending,
	}
	if role == model.SubscriberRoleCustomer {
		code := ticketCode
		row.TicketCode = &code
	}
	return tx.Outbox.Enqueue(ctx, row)
}

func appendHistory(ctx context.Context, tx *repository.Store, vehicle *model.Vehicle, eventType model.HistoryEventType, state string, payload interface{}, at time.Time) error {
	raw, err := model.EventPayload(payload)
	if err != nil {
		return err
	}
	_, err = tx.History.Append(ctx, repository.HistorySubject{
		VehicleID:  vehicle.ID,
		Plate:      vehicle.Plate,
		TicketCode: vehicle.TicketCode,
	}, eventType, state, raw, at)
	return err
}
