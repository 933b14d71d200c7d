package service

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"parking-service/internal/db"
	"parking-service/internal/fee"
	"parking-service/internal/model"
	"parking-service/internal/rates"
	"parking-service/internal/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type countingNotifier struct {
	kicks atomic.Int32
}

func (n *countingNotifier) Kick() {
	n.kicks.Add(1)
}

type testEnv struct {
	store         *repository.Store
	clock         *fakeClock
	notifier      *countingNotifier
	tickets       *TicketService
	payments      *PaymentService
	history       *HistoryService
	subscriptions *SubscriptionService
	admin         model.Principal
	operator      model.Principal
}

func testSchedule() rates.Schedule {
	return rates.Schedule{
		Schedule: fee.Schedule{
			DayRate:    decimal.NewFromInt(3),
			NightRate:  decimal.NewFromInt(4),
			NightStart: fee.MustClock("00:00"),
			NightEnd:   fee.MustClock("06:00"),
			Location:   time.UTC,
		},
		FXRate: decimal.RequireFromString("36.5"),
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	database, err := db.OpenSQLite("file:service_"+uuid.NewString()+"?mode=memory&cache=shared", zerolog.Nop(), "test")
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	notifier := &countingNotifier{}
	params := Params{
		Store:        repository.NewStore(database),
		Rates:        rates.Static(testSchedule()),
		Notifier:     notifier,
		Logger:       zerolog.Nop(),
		Clock:        clock.Now,
		TicketPrefix: "PARK",
	}
	env := &testEnv{
		store:         params.Store,
		clock:         clock,
		notifier:      notifier,
		tickets:       NewTicketService(params),
		payments:      NewPaymentService(params),
		history:       NewHistoryService(params),
		subscriptions: NewSubscriptionService(params),
		admin:         model.Principal{UserID: uuid.New(), Role: model.UserRoleAdmin},
		operator:      model.Principal{UserID: uuid.New(), Role: model.UserRoleOperator},
	}

	_, err = env.tickets.Seed(context.Background(), env.admin, 3)
	require.NoError(t, err)
	return env
}

func (e *testEnv) assign(t *testing.T, code, plate string) *model.Vehicle {
	t.Helper()
	vehicle, err := e.tickets.AssignVehicle(context.Background(), e.operator, code, AssignVehicleInput{
		Plate: plate,
		Make:  "Toyota",
		Model: "Corolla",
		Color: "white",
	})
	require.NoError(t, err)
	return vehicle
}

func (e *testEnv) confirm(t *testing.T, code string) {
	t.Helper()
	_, err := e.tickets.ConfirmParking(context.Background(), e.operator, code)
	require.NoError(t, err)
}

func (e *testEnv) submit(t *testing.T, code, amount, reference string) *model.Payment {
	t.Helper()
	payment, err := e.payments.Submit(context.Background(), code, mobilePayment(amount, reference))
	require.NoError(t, err)
	return payment
}

func mobilePayment(amount, reference string) SubmitPaymentInput {
	return SubmitPaymentInput{
		Method:     model.PaymentMethodMobile,
		AmountPaid: decimal.RequireFromString(amount),
		Reference:  reference,
		Bank:       "0102",
		Phone:      "04141234567",
	}
}

func (e *testEnv) ticket(t *testing.T, code string) *model.Ticket {
	t.Helper()
	ticket, err := e.store.Tickets.Get(context.Background(), code)
	require.NoError(t, err)
	return ticket
}

func (e *testEnv) outbox(t *testing.T) []model.NotificationOutbox {
	t.Helper()
	var rows []model.NotificationOutbox
	require.NoError(t, e.store.DB().Order("created_at ASC, id ASC").Find(&rows).Error)
	return rows
}

// snapshot serializes every persisted row the state machines own.
func (e *testEnv) snapshot(t *testing.T) string {
	t.Helper()
	var (
		tickets    []model.Ticket
		vehicles   []model.Vehicle
		archived   []model.ArchivedVehicle
		payments   []model.Payment
		events     []model.HistoryEvent
		aggregates []model.VehicleHistory
		outbox     []model.NotificationOutbox
	)
	gdb := e.store.DB()
	require.NoError(t, gdb.Order("code").Find(&tickets).Error)
	require.NoError(t, gdb.Order("id").Find(&vehicles).Error)
	require.NoError(t, gdb.Order("id").Find(&archived).Error)
	require.NoError(t, gdb.Order("id").Find(&payments).Error)
	require.NoError(t, gdb.Order("vehicle_id, seq").Find(&events).Error)
	require.NoError(t, gdb.Order("vehicle_id").Find(&aggregates).Error)
	require.NoError(t, gdb.Order("id").Find(&outbox).Error)

	raw, err := json.Marshal([]interface{}{tickets, vehicles, archived, payments, events, aggregates, outbox})
	require.NoError(t, err)
	return string(raw)
}
