package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"parking-service/internal/model"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

type PaymentFilter struct {
	States     []model.PaymentState
	TicketCode string
	Limit      int
	Offset     int
}

func (r *PaymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var payment model.Payment
	if err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindPending returns the pending payment of a ticket, if any.
func (r *PaymentRepository) FindPending(ctx context.Context, ticketCode string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("ticket_code = ? AND validation_state = ?", ticketCode, model.PaymentStatePending).
		Limit(1).
		Find(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == uuid.Nil {
		return nil, nil
	}
	return &payment, nil
}

func (r *PaymentRepository) List(ctx context.Context, filter PaymentFilter) ([]model.Payment, error) {
	query := r.db.WithContext(ctx).Model(&model.Payment{})
	if len(filter.States) > 0 {
		query = query.Where("validation_state IN ?", filter.States)
	}
	if filter.TicketCode != "" {
		query = query.Where("ticket_code = ?", filter.TicketCode)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	} else {
		query = query.Limit(200)
	}

	var payments []model.Payment
	if err := query.Order("submitted_at ASC, id ASC").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *PaymentRepository) ListByVehicle(ctx context.Context, vehicleID uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	if err := r.db.WithContext(ctx).
		Where("vehicle_id = ?", vehicleID).
		Order("submitted_at ASC, id ASC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// Resolve moves a pending payment to its final state. It matches only while
// the payment is still pending, so a payment is resolved at most once.
func (r *PaymentRepository) Resolve(ctx context.Context, id uuid.UUID, to model.PaymentState, fields map[string]interface{}) error {
	data := map[string]interface{}{"validation_state": to}
	for k, v := range fields {
		data[k] = v
	}
	return conditional(r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND validation_state = ?", id, model.PaymentStatePending).
		Updates(data))
}
