package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parking-service/internal/model"
)

type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// HistorySubject identifies the vehicle an event belongs to.
type HistorySubject struct {
	VehicleID  uuid.UUID
	Plate      string
	TicketCode string
}

type HistoryFilter struct {
	Plate      string
	TicketCode string
	Limit      int
	Offset     int
}

// Append inserts one event and folds it into the vehicle's running totals.
// It must run inside a transaction. Incrementing event_count first takes the
// aggregate row lock, so appends for the same vehicle are serialized and
// seq never repeats.
func (r *HistoryRepository) Append(ctx context.Context, subject HistorySubject, eventType model.HistoryEventType, state string, payload datatypes.JSON, at time.Time) (*model.HistoryEvent, error) {
	db := r.db.WithContext(ctx)

	seed := model.VehicleHistory{
		VehicleID:       subject.VehicleID,
		Plate:           subject.Plate,
		TicketCode:      subject.TicketCode,
		TotalPaidAmount: decimal.Zero,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "vehicle_id"}},
		DoNothing: true,
	}).Create(&seed).Error; err != nil {
		return nil, err
	}

	if err := conditional(db.Model(&model.VehicleHistory{}).
		Where("vehicle_id = ?", subject.VehicleID).
		Update("event_count", gorm.Expr("event_count + 1"))); err != nil {
		return nil, err
	}

	var aggregate model.VehicleHistory
	if err := db.First(&aggregate, "vehicle_id = ?", subject.VehicleID).Error; err != nil {
		return nil, err
	}

	event := &model.HistoryEvent{
		VehicleID:  subject.VehicleID,
		Seq:        aggregate.EventCount,
		Type:       eventType,
		State:      state,
		OccurredAt: at,
		Payload:    payload,
	}
	if err := db.Create(event).Error; err != nil {
		return nil, err
	}

	if err := aggregate.Apply(*event); err != nil {
		return nil, err
	}
	if err := db.Save(&aggregate).Error; err != nil {
		return nil, err
	}
	return event, nil
}

func (r *HistoryRepository) Summary(ctx context.Context, vehicleID uuid.UUID) (*model.VehicleHistory, error) {
	var aggregate model.VehicleHistory
	if err := r.db.WithContext(ctx).First(&aggregate, "vehicle_id = ?", vehicleID).Error; err != nil {
		return nil, err
	}
	return &aggregate, nil
}

func (r *HistoryRepository) Summaries(ctx context.Context, filter HistoryFilter) ([]model.VehicleHistory, error) {
	query := r.db.WithContext(ctx).Model(&model.VehicleHistory{})
	if plate := strings.TrimSpace(filter.Plate); plate != "" {
		query = query.Where("plate = ?", strings.ToUpper(plate))
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

	var aggregates []model.VehicleHistory
	if err := query.Order("last_event_at DESC, vehicle_id ASC").Find(&aggregates).Error; err != nil {
		return nil, err
	}
	return aggregates, nil
}

// Events returns the full log of a vehicle in append order.
func (r *HistoryRepository) Events(ctx context.Context, vehicleID uuid.UUID) ([]model.HistoryEvent, error) {
	var events []model.HistoryEvent
	if err := r.db.WithContext(ctx).
		Where("vehicle_id = ?", vehicleID).
		Order("seq ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// Rebuild recomputes the aggregate from the log.
func (r *HistoryRepository) Rebuild(ctx context.Context, vehicleID uuid.UUID) (*model.VehicleHistory, error) {
	var rebuilt *model.VehicleHistory
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var aggregate model.VehicleHistory
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&aggregate, "vehicle_id = ?", vehicleID).Error; err != nil {
			return err
		}
		var events []model.HistoryEvent
		if err := tx.Where("vehicle_id = ?", vehicleID).Order("seq ASC").Find(&events).Error; err != nil {
			return err
		}
		if err := aggregate.Replay(events); err != nil {
			return err
		}
		if err := tx.Save(&aggregate).Error; err != nil {
			return err
		}
		rebuilt = &aggregate
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rebuilt, nil
}
