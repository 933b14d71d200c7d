package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"parking-service/internal/model"
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Upsert registers an endpoint, rebinding and reactivating it when it is
// already known.
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *model.NotificationSubscription) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.NotificationSubscription
		err := tx.First(&existing, "endpoint = ?", sub.Endpoint).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			sub.IsActive = true
			return tx.Create(sub).Error
		case err != nil:
			return err
		}

		if err := tx.Model(&existing).Updates(map[string]interface{}{
			"keys":           sub.Keys,
			"ticket_code":    sub.TicketCode,
			"role":           sub.Role,
			"is_active":      true,
			"deactivated_at": nil,
		}).Error; err != nil {
			return err
		}
		return tx.First(sub, "id = ?", existing.ID).Error
	})
}

func (r *SubscriptionRepository) GetByEndpoint(ctx context.Context, endpoint string) (*model.NotificationSubscription, error) {
	var sub model.NotificationSubscription
	if err := r.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepository) ActiveForTicket(ctx context.Context, code string) ([]model.NotificationSubscription, error) {
	var subs []model.NotificationSubscription
	if err := r.db.WithContext(ctx).
		Where("role = ? AND ticket_code = ? AND is_active = ?", model.SubscriberRoleCustomer, code, true).
		Order("created_at ASC, id ASC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *SubscriptionRepository) ActiveForRole(ctx context.Context, role model.SubscriberRole) ([]model.NotificationSubscription, error) {
	var subs []model.NotificationSubscription
	if err := r.db.WithContext(ctx).
		Where("role = ? AND is_active = ?", role, true).
		Order("created_at ASC, id ASC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *SubscriptionRepository) Deactivate(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.NotificationSubscription{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]interface{}{"is_active": false, "deactivated_at": at}).Error
}

func (r *SubscriptionRepository) DeactivateByEndpoint(ctx context.Context, endpoint string, at time.Time) error {
	return conditional(r.db.WithContext(ctx).
		Model(&model.NotificationSubscription{}).
		Where("endpoint = ? AND is_active = ?", endpoint, true).
		Updates(map[string]interface{}{"is_active": false, "deactivated_at": at}))
}

// DeactivateTicketSubscriptions closes the customer subscriptions of a ticket
// registered before the given instant. Later ones belong to the next session.
func (r *SubscriptionRepository) DeactivateTicketSubscriptions(ctx context.Context, code string, before, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.NotificationSubscription{}).
		Where("role = ? AND ticket_code = ? AND is_active = ? AND created_at <= ?", model.SubscriberRoleCustomer, code, true, before).
		Updates(map[string]interface{}{"is_active": false, "deactivated_at": at})
	return result.RowsAffected, result.Error
}

// DeactivateAllForTicket closes every active customer subscription of a ticket.
func (r *SubscriptionRepository) DeactivateAllForTicket(ctx context.Context, code string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.NotificationSubscription{}).
		Where("role = ? AND ticket_code = ? AND is_active = ?", model.SubscriberRoleCustomer, code, true).
		Updates(map[string]interface{}{"is_active": false, "deactivated_at": at})
	return result.RowsAffected, result.Error
}
