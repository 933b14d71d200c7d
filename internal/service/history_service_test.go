package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-service/internal/model"
	"parking-service/internal/repository"
)

func completeSession(t *testing.T, env *testEnv, code, plate string) *model.Vehicle {
	t.Helper()
	ctx := context.Background()
	vehicle := env.assign(t, code, plate)
	env.confirm(t, code)
	env.clock.Advance(time.Hour)
	payment := env.submit(t, code, "3.00", "REF-"+plate)
	_, err := env.payments.Validate(ctx, env.admin, payment.ID)
	require.NoError(t, err)
	_, err = env.payments.ProcessExit(ctx, env.operator, code)
	require.NoError(t, err)
	return vehicle
}

func TestDetailIsReadOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	vehicle := completeSession(t, env, "PARK001", "ABC123")

	first, err := env.history.Detail(ctx, env.operator, vehicle.ID)
	require.NoError(t, err)
	before := env.snapshot(t)
	second, err := env.history.Detail(ctx, env.operator, vehicle.ID)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
	assert.Equal(t, before, env.snapshot(t))
	assert.Empty(t, first.RejectedPayments)
}

func TestDetailUnknownVehicle(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.history.Detail(context.Background(), env.admin, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.history.Detail(context.Background(), model.Principal{}, uuid.New())
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestRebuildRestoresAggregate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	vehicle := completeSession(t, env, "PARK001", "ABC123")

	expected, err := env.history.Summary(ctx, env.admin, vehicle.ID)
	require.NoError(t, err)

	require.NoError(t, env.store.DB().Model(&model.VehicleHistory{}).
		Where("vehicle_id = ?", vehicle.ID).
		Updates(map[string]interface{}{
			"total_paid_amount":    decimal.NewFromInt(999),
			"total_minutes_parked": 1,
			"event_count":          42,
			"last_state":           "bogus",
		}).Error)

	_, err = env.history.Rebuild(ctx, env.operator, vehicle.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	rebuilt, err := env.history.Rebuild(ctx, env.admin, vehicle.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), rebuilt.EventCount)
	assert.Equal(t, "3.00", rebuilt.TotalPaidAmount.StringFixed(2))
	assert.Equal(t, int64(60), rebuilt.TotalMinutes)
	assert.Equal(t, string(model.VehicleStateExited), rebuilt.LastState)
	assert.Equal(t, expected.LastEventType, rebuilt.LastEventType)
	assert.True(t, expected.TotalPaidAmount.Equal(rebuilt.TotalPaidAmount))
}

func TestRebuildRefusesUndecodablePayload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	vehicle := completeSession(t, env, "PARK001", "ABC123")

	before, err := env.history.Summary(ctx, env.admin, vehicle.ID)
	require.NoError(t, err)

	require.NoError(t, env.store.DB().Model(&model.HistoryEvent{}).
		Where("vehicle_id = ? AND seq = ?", vehicle.ID, 4).
		Update("payload", "{not json").Error)

	_, err = env.history.Rebuild(ctx, env.admin, vehicle.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)
	assert.Contains(t, err.Error(), "event 4")

	after, err := env.history.Summary(ctx, env.admin, vehicle.ID)
	require.NoError(t, err)
	assert.Equal(t, before.EventCount, after.EventCount)
	assert.True(t, before.TotalPaidAmount.Equal(after.TotalPaidAmount))
}

func TestSummariesFilterByPlate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := completeSession(t, env, "PARK001", "ABC123")
	second := completeSession(t, env, "PARK001", "ABC123")
	env.assign(t, "PARK002", "XYZ789")

	summaries, err := env.history.Summaries(ctx, env.operator, repository.HistoryFilter{Plate: "abc123"})
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, second.ID, summaries[0].VehicleID)
	assert.Equal(t, first.ID, summaries[1].VehicleID)

	byTicket, err := env.history.Summaries(ctx, env.operator, repository.HistoryFilter{TicketCode: "park002"})
	require.NoError(t, err)
	require.Len(t, byTicket, 1)
	assert.Equal(t, "XYZ789", byTicket[0].Plate)
}
