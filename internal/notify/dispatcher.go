package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"parking-service/internal/metrics"
	"parking-service/internal/model"
	"parking-service/internal/repository"
)

// Target selects subscribers: customer subscriptions of a ticket, or every
// active subscription of a role.
type Target struct {
	Role       model.SubscriberRole
	TicketCode string
}

// Result counts the outcomes of one dispatch. Err is set when subscribers
// could not be resolved, in which case nothing was attempted.
type Result struct {
	Delivered int
	Expired   int
	Failed    int
	Skipped   int
	Err       error
}

// Retryable reports whether the row must be dispatched again.
func (r Result) Retryable() bool {
	return r.Err != nil || r.Failed > 0
}

type Dispatcher struct {
	subs        *repository.SubscriptionRepository
	outbox      *repository.OutboxRepository
	transport   Transport
	metrics     *metrics.Metrics
	log         zerolog.Logger
	sendTimeout time.Duration
	now         func() time.Time
}

func NewDispatcher(store *repository.Store, transport Transport, m *metrics.Metrics, log zerolog.Logger, sendTimeout time.Duration) *Dispatcher {
	if sendTimeout <= 0 {
		sendTimeout = 5 * time.Second
	}
	return &Dispatcher{
		subs:        store.Subscriptions,
		outbox:      store.Outbox,
		transport:   transport,
		metrics:     m,
		log:         log.With().Str("component", "notify").Logger(),
		sendTimeout: sendTimeout,
		now:         time.Now,
	}
}

// Dispatch delivers payload to every subscriber selected by target and
// returns the number of successful deliveries. It never fails: resolution
// and delivery errors are logged.
func (d *Dispatcher) Dispatch(ctx context.Context, event model.NotificationEvent, target Target, payload json.RawMessage) int {
	return d.dispatch(ctx, event, target, payload, nil).Delivered
}

// DispatchOutbox delivers one outbox row, skipping subscriptions that already
// reached a final outcome for it and recording new final outcomes.
func (d *Dispatcher) DispatchOutbox(ctx context.Context, row model.NotificationOutbox) Result {
	target := Target{Role: row.TargetRole}
	if row.TicketCode != nil {
		target.TicketCode = *row.TicketCode
	}
	return d.dispatch(ctx, row.Event, target, json.RawMessage(row.Payload), &row)
}

func (d *Dispatcher) dispatch(ctx context.Context, event model.NotificationEvent, target Target, payload json.RawMessage, row *model.NotificationOutbox) Result {
	started := d.now()
	defer func() { d.metrics.ObserveDispatch(string(event), d.now().Sub(started)) }()

	log := d.log.With().Str("event", string(event)).Str("role", string(target.Role)).Str("ticket_code", target.TicketCode).Logger()

	var result Result
	subs, err := d.resolve(ctx, target)
	if err != nil {
		log.Error().Err(err).Msg("resolve subscribers")
		return Result{Err: fmt.Errorf("resolve subscribers: %w", err)}
	}

	settled := map[uuid.UUID]model.DeliveryOutcome{}
	if row != nil {
		if settled, err = d.outbox.SettledSubscriptions(ctx, row.ID); err != nil {
			log.Error().Err(err).Msg("load settled deliveries")
			return Result{Err: fmt.Errorf("load settled deliveries: %w", err)}
		}
	}

	msg := Message{Event: event, TicketCode: target.TicketCode, Payload: payload, SentAt: d.now()}
	for _, sub := range subs {
		if _, done := settled[sub.ID]; done {
			result.Skipped++
			continue
		}

		outcome, sendErr := d.send(ctx, sub, msg)
		d.metrics.Notification(string(event), string(outcome))
		subLog := log.With().Str("subscription_id", sub.ID.String()).Logger()

		switch outcome {
		case model.DeliveryDelivered:
			result.Delivered++
		case model.DeliveryExpired:
			result.Expired++
			subLog.Warn().Msg("subscription expired, deactivating")
			if err := d.subs.Deactivate(ctx, sub.ID, d.now()); err != nil {
				subLog.Error().Err(err).Msg("deactivate subscription")
			}
		default:
			result.Failed++
			subLog.Warn().Err(sendErr).Msg("notification delivery failed")
			continue
		}

		if row != nil {
			if err := d.outbox.RecordDelivery(ctx, &model.NotificationDelivery{
				OutboxID:       row.ID,
				SubscriptionID: sub.ID,
				Outcome:        outcome,
			}); err != nil {
				subLog.Error().Err(err).Msg("record delivery")
			}
		}
	}

	if row != nil && result.Failed == 0 {
		d.CloseSession(ctx, *row)
	}

	return result
}

// CloseSession ends the customer subscriptions of the session a
// vehicle_delivered row belongs to. Other rows are ignored.
func (d *Dispatcher) CloseSession(ctx context.Context, row model.NotificationOutbox) {
	if row.Event != model.NotifyVehicleDelivered || row.TargetRole != model.SubscriberRoleCustomer || row.TicketCode == nil || *row.TicketCode == "" {
		return
	}
	log := d.log.With().Str("outbox_id", row.ID.String()).Str("ticket_code", *row.TicketCode).Logger()
	closed, err := d.subs.DeactivateTicketSubscriptions(ctx, *row.TicketCode, row.CreatedAt, d.now())
	if err != nil {
		log.Error().Err(err).Msg("close ticket subscriptions")
		return
	}
	if closed > 0 {
		log.Debug().Int64("closed", closed).Msg("ticket subscriptions closed")
	}
}

func (d *Dispatcher) resolve(ctx context.Context, target Target) ([]model.NotificationSubscription, error) {
	if target.Role == model.SubscriberRoleCustomer {
		if target.TicketCode == "" {
			return nil, nil
		}
		return d.subs.ActiveForTicket(ctx, target.TicketCode)
	}
	return d.subs.ActiveForRole(ctx, target.Role)
}

// send bounds one delivery by the send timeout. A timeout is a transient failure.
func (d *Dispatcher) send(ctx context.Context, sub model.NotificationSubscription, msg Message) (outcome model.DeliveryOutcome, err error) {
	ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Str("subscription_id", sub.ID.String()).Msg("transport panicked")
			outcome = model.DeliveryFailed
		}
	}()
	outcome, err = d.transport.Send(ctx, sub, msg)
	switch outcome {
	case model.DeliveryDelivered, model.DeliveryExpired:
	default:
		outcome = model.DeliveryFailed
	}
	return outcome, err
}
