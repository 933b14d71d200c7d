package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parking-service/internal/model"
)

type TicketRepository struct {
	db *gorm.DB
}

func NewTicketRepository(db *gorm.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

type TicketFilter struct {
	States []model.TicketState
	Limit  int
	Offset int
}

func (r *TicketRepository) Get(ctx context.Context, code string) (*model.Ticket, error) {
	var ticket model.Ticket
	if err := r.db.WithContext(ctx).First(&ticket, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *TicketRepository) List(ctx context.Context, filter TicketFilter) ([]model.Ticket, error) {
	query := r.db.WithContext(ctx).Model(&model.Ticket{})
	if len(filter.States) > 0 {
		query = query.Where("state IN ?", filter.States)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	} else {
		query = query.Limit(500)
	}

	var tickets []model.Ticket
	if err := query.Order("code ASC").Find(&tickets).Error; err != nil {
		return nil, err
	}
	return tickets, nil
}

// Seed inserts the given codes as available tickets, skipping existing ones.
func (r *TicketRepository) Seed(ctx context.Context, codes []string) (int, error) {
	if len(codes) == 0 {
		return 0, nil
	}
	tickets := make([]model.Ticket, 0, len(codes))
	for _, code := range codes {
		tickets = append(tickets, model.Ticket{
			Code:           code,
			State:          model.TicketStateAvailable,
			ComputedAmount: decimal.Zero,
		})
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(&tickets)
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

// Transition moves a ticket from one state to another in a single
// conditional write. fields are applied together with the new state.
func (r *TicketRepository) Transition(ctx context.Context, code string, from, to model.TicketState, fields map[string]interface{}) error {
	data := map[string]interface{}{"state": to}
	for k, v := range fields {
		data[k] = v
	}
	return conditional(r.db.WithContext(ctx).
		Model(&model.Ticket{}).
		Where("code = ? AND state = ?", code, from).
		Updates(data))
}

// UpdateComputedAmount stores a recalculated fee while the ticket is still
// in the state it was read in.
func (r *TicketRepository) UpdateComputedAmount(ctx context.Context, code string, state model.TicketState, amount decimal.Decimal) error {
	return conditional(r.db.WithContext(ctx).
		Model(&model.Ticket{}).
		Where("code = ? AND state = ?", code, state).
		Update("computed_amount", amount))
}
