package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-service/internal/model"
)

func TestSubscribeCustomer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	input := SubscribeInput{Endpoint: "https://push.example.com/abc", Keys: map[string]interface{}{"auth": "token"}}

	_, err := env.subscriptions.SubscribeCustomer(ctx, "PARK001", input)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	env.assign(t, "PARK001", "ABC123")
	sub, err := env.subscriptions.SubscribeCustomer(ctx, "park001", input)
	require.NoError(t, err)
	assert.True(t, sub.IsActive)
	assert.Equal(t, model.SubscriberRoleCustomer, sub.Role)
	require.NotNil(t, sub.TicketCode)
	assert.Equal(t, "PARK001", *sub.TicketCode)

	again, err := env.subscriptions.SubscribeCustomer(ctx, "PARK001", input)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, again.ID)

	active, err := env.store.Subscriptions.ActiveForTicket(ctx, "PARK001")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestSubscribeRejectsBadEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.assign(t, "PARK001", "ABC123")

	for _, endpoint := range []string{"", "not a url", "ftp://push.example.com/x", "https://"} {
		_, err := env.subscriptions.SubscribeCustomer(ctx, "PARK001", SubscribeInput{Endpoint: endpoint})
		assert.ErrorIs(t, err, ErrInvalidInput, endpoint)
	}
}

func TestSubscribeStaffAndUnsubscribe(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	endpoint := "https://push.example.com/staff"

	_, err := env.subscriptions.SubscribeStaff(ctx, model.Principal{}, SubscribeInput{Endpoint: endpoint})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	sub, err := env.subscriptions.SubscribeStaff(ctx, env.operator, SubscribeInput{Endpoint: endpoint})
	require.NoError(t, err)
	assert.Equal(t, model.SubscriberRoleAdmin, sub.Role)
	assert.Nil(t, sub.TicketCode)

	require.NoError(t, env.subscriptions.Unsubscribe(ctx, endpoint))
	stored, err := env.store.Subscriptions.GetByEndpoint(ctx, endpoint)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.NotNil(t, stored.DeactivatedAt)

	assert.ErrorIs(t, env.subscriptions.Unsubscribe(ctx, endpoint), ErrNotFound)
	assert.ErrorIs(t, env.subscriptions.Unsubscribe(ctx, " "), ErrInvalidInput)

	resubscribed, err := env.subscriptions.SubscribeStaff(ctx, env.admin, SubscribeInput{Endpoint: endpoint})
	require.NoError(t, err)
	assert.Equal(t, sub.ID, resubscribed.ID)
	assert.True(t, resubscribed.IsActive)
	assert.Nil(t, resubscribed.DeactivatedAt)
}

func TestNextSessionClosesPreviousCustomerSubscriptions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.assign(t, "PARK001", "ABC123")
	previous, err := env.subscriptions.SubscribeCustomer(ctx, "PARK001", SubscribeInput{Endpoint: "https://push.example.com/previous"})
	require.NoError(t, err)
	staff, err := env.subscriptions.SubscribeStaff(ctx, env.operator, SubscribeInput{Endpoint: "https://push.example.com/staff"})
	require.NoError(t, err)

	env.confirm(t, "PARK001")
	env.clock.Advance(time.Hour)
	payment := env.submit(t, "PARK001", "3.00", "REF-1")
	_, err = env.payments.Validate(ctx, env.admin, payment.ID)
	require.NoError(t, err)
	_, err = env.payments.ProcessExit(ctx, env.operator, "PARK001")
	require.NoError(t, err)

	stored, err := env.store.Subscriptions.GetByEndpoint(ctx, previous.Endpoint)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)

	env.assign(t, "PARK001", "XYZ789")

	stored, err = env.store.Subscriptions.GetByEndpoint(ctx, previous.Endpoint)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.NotNil(t, stored.DeactivatedAt)

	active, err := env.store.Subscriptions.ActiveForTicket(ctx, "PARK001")
	require.NoError(t, err)
	assert.Empty(t, active)

	kept, err := env.store.Subscriptions.GetByEndpoint(ctx, staff.Endpoint)
	require.NoError(t, err)
	assert.True(t, kept.IsActive)
}
