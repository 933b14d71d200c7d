package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parking-service/internal/model"
)

type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Enqueue(ctx context.Context, row *model.NotificationOutbox) error {
	if row.Status == "" {
		row.Status = model.OutboxStatusPending
	}
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *OutboxRepository) Get(ctx context.Context, id uuid.UUID) (*model.NotificationOutbox, error) {
	var row model.NotificationOutbox
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Pending returns the oldest undispatched rows.
func (r *OutboxRepository) Pending(ctx context.Context, limit int) ([]model.NotificationOutbox, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []model.NotificationOutbox
	if err := r.db.WithContext(ctx).
		Where("status = ?", model.OutboxStatusPending).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *OutboxRepository) List(ctx context.Context, status model.OutboxStatus, limit int) ([]model.NotificationOutbox, error) {
	query := r.db.WithContext(ctx).Model(&model.NotificationOutbox{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if limit <= 0 {
		limit = 200
	}
	var rows []model.NotificationOutbox
	if err := query.Order("created_at DESC, id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Finish records the result of a dispatch attempt on a row that is still pending.
func (r *OutboxRepository) Finish(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return conditional(r.db.WithContext(ctx).
		Model(&model.NotificationOutbox{}).
		Where("id = ? AND status = ?", id, model.OutboxStatusPending).
		Updates(fields))
}

// SettledSubscriptions returns the subscriptions that already reached a final
// outcome for an outbox row.
func (r *OutboxRepository) SettledSubscriptions(ctx context.Context, outboxID uuid.UUID) (map[uuid.UUID]model.DeliveryOutcome, error) {
	var deliveries []model.NotificationDelivery
	if err := r.db.WithContext(ctx).
		Where("outbox_id = ?", outboxID).
		Find(&deliveries).Error; err != nil {
		return nil, err
	}
	settled := make(map[uuid.UUID]model.DeliveryOutcome, len(deliveries))
	for _, d := range deliveries {
		settled[d.SubscriptionID] = d.Outcome
	}
	return settled, nil
}

func (r *OutboxRepository) RecordDelivery(ctx context.Context, delivery *model.NotificationDelivery) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "outbox_id"}, {Name: "subscription_id"}},
			DoNothing: true,
		}).
		Create(delivery).Error
}
