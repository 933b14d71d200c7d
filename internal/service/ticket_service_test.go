package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-service/internal/model"
	"parking-service/internal/repository"
)

func TestAssignVehicle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	vehicle, err := env.tickets.AssignVehicle(ctx, env.operator, " park001 ", AssignVehicleInput{Plate: "abc 123", Make: " Ford "})
	require.NoError(t, err)
	assert.Equal(t, "ABC123", vehicle.Plate)
	assert.Equal(t, "Ford", vehicle.Make)
	assert.Equal(t, model.VehicleStateParked, vehicle.State)
	assert.Equal(t, env.clock.Now(), vehicle.CheckInAt)

	ticket := env.ticket(t, "PARK001")
	assert.Equal(t, model.TicketStateOccupied, ticket.State)
	require.NotNil(t, ticket.VehicleID)
	assert.Equal(t, vehicle.ID, *ticket.VehicleID)
	require.NotNil(t, ticket.OccupiedAt)
	assert.True(t, ticket.OccupiedAt.Equal(env.clock.Now()))

	summary, err := env.history.Summary(ctx, env.admin, vehicle.ID)
	require.NoError(t, err)
	assert.Equal(t, model.HistoryVehicleRegistered, summary.LastEventType)
	assert.Equal(t, string(model.TicketStateOccupied), summary.LastState)
	assert.Equal(t, int64(1), summary.EventCount)
	assert.Empty(t, env.outbox(t))
}

func TestAssignVehicleRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.tickets.AssignVehicle(ctx, env.operator, "PARK001", AssignVehicleInput{Plate: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = env.tickets.AssignVehicle(ctx, env.operator, "PARK-1", AssignVehicleInput{Plate: "ABC123"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = env.tickets.AssignVehicle(ctx, env.operator, "PARK999", AssignVehicleInput{Plate: "ABC123"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.tickets.AssignVehicle(ctx, model.Principal{}, "PARK001", AssignVehicleInput{Plate: "ABC123"})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	assert.Equal(t, model.TicketStateAvailable, env.ticket(t, "PARK001").State)
}

func TestConfirmParking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	vehicle := env.assign(t, "PARK001", "ABC123")

	ticket, err := env.tickets.ConfirmParking(ctx, env.operator, "PARK001")
	require.NoError(t, err)
	assert.Equal(t, model.TicketStateConfirmed, ticket.State)

	stored, err := env.store.Vehicles.GetByID(ctx, vehicle.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VehicleStateParkedConfirmed, stored.State)

	rows := env.outbox(t)
	require.Len(t, rows, 1)
	assert.Equal(t, model.NotifyParkingConfirmed, rows[0].Event)
	assert.Equal(t, model.SubscriberRoleCustomer, rows[0].TargetRole)
	require.NotNil(t, rows[0].TicketCode)
	assert.Equal(t, "PARK001", *rows[0].TicketCode)
	assert.Equal(t, model.OutboxStatusPending, rows[0].Status)
}

func TestGetRecomputesFeeAcrossMidnight(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.clock.Set(time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC))
	env.assign(t, "PARK001", "ABC123")

	view, err := env.tickets.Get(ctx, "PARK001")
	require.NoError(t, err)
	assert.True(t, view.AmountDue.IsZero())
	require.NotNil(t, view.Vehicle)
	assert.Equal(t, "ABC123", view.Vehicle.Plate)

	env.confirm(t, "PARK001")
	env.clock.Set(time.Date(2024, 5, 2, 0, 30, 0, 0, time.UTC))

	view, err = env.tickets.Get(ctx, "park001")
	require.NoError(t, err)
	assert.Equal(t, "3.50", view.AmountDue.StringFixed(2))
	assert.Equal(t, "127.75", view.AmountDueForeign.StringFixed(2))
	assert.Equal(t, int64(60), view.MinutesParked)
	assert.Equal(t, "3.50", env.ticket(t, "PARK001").ComputedAmount.StringFixed(2))

	env.clock.Advance(time.Hour)
	view, err = env.tickets.Get(ctx, "PARK001")
	require.NoError(t, err)
	assert.Equal(t, "7.50", view.AmountDue.StringFixed(2))
}

func TestGetShowsLastPayment(t *testing.T) {
	env := newTestEnv(t)
	env.assign(t, "PARK001", "ABC123")
	env.confirm(t, "PARK001")
	payment := env.submit(t, "PARK001", "3.00", "REF-1")

	view, err := env.tickets.Get(context.Background(), "PARK001")
	require.NoError(t, err)
	require.NotNil(t, view.LastPayment)
	assert.Equal(t, payment.ID, view.LastPayment.ID)
	assert.Equal(t, "3.00", view.LastPayment.AmountPaid)
	assert.Equal(t, model.PaymentStatePending, view.LastPayment.ValidationState)
}

func TestGetUnknownTicket(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.tickets.Get(context.Background(), "PARK777")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.tickets.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSetPlannedExit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	vehicle := env.assign(t, "PARK001", "ABC123")

	_, err := env.tickets.SetPlannedExit(ctx, "PARK001", model.PlannedExit15m)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	env.confirm(t, "PARK001")
	_, err = env.tickets.SetPlannedExit(ctx, "PARK001", model.PlannedExitOffset("7m"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	ticket, err := env.tickets.SetPlannedExit(ctx, "PARK001", model.PlannedExit15m)
	require.NoError(t, err)
	assert.Equal(t, model.TicketStateConfirmed, ticket.State)
	require.NotNil(t, ticket.PlannedExitOffset)
	assert.Equal(t, model.PlannedExit15m, *ticket.PlannedExitOffset)
	require.NotNil(t, ticket.ExitAt)
	assert.True(t, ticket.ExitAt.Equal(env.clock.Now().Add(15*time.Minute)))

	detail, err := env.history.Detail(ctx, env.admin, vehicle.ID)
	require.NoError(t, err)
	last := detail.Events[len(detail.Events)-1]
	assert.Equal(t, model.HistoryPlannedExitSet, last.Type)
	assert.Equal(t, string(model.TicketStateConfirmed), last.State)

	rows := env.outbox(t)
	var requested *model.NotificationOutbox
	for i := range rows {
		if rows[i].Event == model.NotifyExitRequested {
			requested = &rows[i]
		}
	}
	require.NotNil(t, requested)
	assert.Equal(t, model.SubscriberRoleAdmin, requested.TargetRole)
	assert.Nil(t, requested.TicketCode)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(requested.Payload, &payload))
	assert.Equal(t, "PARK001", payload["ticket_code"])
	assert.Equal(t, "15m", payload["offset"])
}

func TestSeedIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.tickets.Seed(ctx, env.admin, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	created, err = env.tickets.Seed(ctx, env.admin, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	tickets, err := env.tickets.List(ctx, env.operator, repository.TicketFilter{})
	require.NoError(t, err)
	require.Len(t, tickets, 5)
	assert.Equal(t, "PARK001", tickets[0].Code)
	assert.Equal(t, "PARK005", tickets[4].Code)

	_, err = env.tickets.Seed(ctx, env.operator, 5)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = env.tickets.Seed(ctx, env.admin, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestListTicketsByState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.assign(t, "PARK002", "ABC123")

	occupied, err := env.tickets.List(ctx, env.operator, repository.TicketFilter{States: []model.TicketState{model.TicketStateOccupied}})
	require.NoError(t, err)
	require.Len(t, occupied, 1)
	assert.Equal(t, "PARK002", occupied[0].Code)

	_, err = env.tickets.List(ctx, model.Principal{}, repository.TicketFilter{})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}
