package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"parking-service/internal/model"
)

type VehicleRepository struct {
	db *gorm.DB
}

func NewVehicleRepository(db *gorm.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

func (r *VehicleRepository) Create(ctx context.Context, vehicle *model.Vehicle) error {
	return r.db.WithContext(ctx).Create(vehicle).Error
}

func (r *VehicleRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Vehicle, error) {
	var vehicle model.Vehicle
	if err := r.db.WithContext(ctx).First(&vehicle, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func (r *VehicleRepository) GetByTicketCode(ctx context.Context, code string) (*model.Vehicle, error) {
	var vehicle model.Vehicle
	if err := r.db.WithContext(ctx).First(&vehicle, "ticket_code = ?", code).Error; err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func (r *VehicleRepository) Transition(ctx context.Context, id uuid.UUID, from, to model.VehicleState) error {
	return conditional(r.db.WithContext(ctx).
		Model(&model.Vehicle{}).
		Where("id = ? AND state = ?", id, from).
		Update("state", to))
}

// Archive moves a confirmed vehicle out of the active collection.
func (r *VehicleRepository) Archive(ctx context.Context, archived *model.ArchivedVehicle) error {
	if err := conditional(r.db.WithContext(ctx).
		Where("id = ? AND state = ?", archived.ID, model.VehicleStateParkedConfirmed).
		Delete(&model.Vehicle{})); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(archived).Error
}

func (r *VehicleRepository) GetArchived(ctx context.Context, id uuid.UUID) (*model.ArchivedVehicle, error) {
	var archived model.ArchivedVehicle
	if err := r.db.WithContext(ctx).First(&archived, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &archived, nil
}
