package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type VehicleState string

const (
	VehicleStateParked          VehicleState = "parked"
	VehicleStateParkedConfirmed VehicleState = "parked_confirmed"
	VehicleStateExited          VehicleState = "exited"
)

// Vehicle is an active parking session. At most one exists per ticket code.
type Vehicle struct {
	ID              uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Plate           string            `gorm:"type:varchar(16);not null;index" json:"plate"`
	Make            string            `gorm:"type:varchar(64)" json:"make"`
	Model           string            `gorm:"type:varchar(64)" json:"model"`
	Color           string            `gorm:"type:varchar(32)" json:"color"`
	OwnerName       string            `gorm:"type:varchar(128)" json:"owner_name"`
	OwnerPhone      string            `gorm:"type:varchar(32)" json:"owner_phone"`
	TicketCode      string            `gorm:"type:varchar(32);not null;uniqueIndex:uniq_vehicles_ticket_code" json:"ticket_code"`
	State           VehicleState      `gorm:"type:varchar(32);not null" json:"state"`
	CheckInAt       time.Time         `gorm:"not null" json:"check_in_at"`
	PlateImageURL   string            `gorm:"type:text" json:"plate_image_url"`
	VehicleImageURL string            `gorm:"type:text" json:"vehicle_image_url"`
	CaptureMeta     datatypes.JSONMap `gorm:"type:jsonb" json:"capture_meta,omitempty"`
	CreatedAt       time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Vehicle) TableName() string {
	return "vehicles"
}

func (v *Vehicle) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// ArchivedVehicle is a vehicle that has exited. Its id stays valid for history lookups.
type ArchivedVehicle struct {
	ID              uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Plate           string            `gorm:"type:varchar(16);not null;index" json:"plate"`
	Make            string            `gorm:"type:varchar(64)" json:"make"`
	Model           string            `gorm:"type:varchar(64)" json:"model"`
	Color           string            `gorm:"type:varchar(32)" json:"color"`
	OwnerName       string            `gorm:"type:varchar(128)" json:"owner_name"`
	OwnerPhone      string            `gorm:"type:varchar(32)" json:"owner_phone"`
	TicketCode      string            `gorm:"type:varchar(32);not null;index" json:"ticket_code"`
	CheckInAt       time.Time         `gorm:"not null" json:"check_in_at"`
	ExitedAt        time.Time         `gorm:"not null" json:"exited_at"`
	FinalAmount     decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"final_amount"`
	MinutesParked   int64             `gorm:"not null" json:"minutes_parked"`
	PlateImageURL   string            `gorm:"type:text" json:"plate_image_url"`
	VehicleImageURL string            `gorm:"type:text" json:"vehicle_image_url"`
	CaptureMeta     datatypes.JSONMap `gorm:"type:jsonb" json:"capture_meta,omitempty"`
	CreatedAt       time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

func (ArchivedVehicle) TableName() string {
	return "archived_vehicles"
}

// Archive snapshots an exiting vehicle.
func (v Vehicle) Archive(exitedAt time.Time, amount decimal.Decimal, minutes int64) ArchivedVehicle {
	return ArchivedVehicle{
		ID:              v.ID,
		Plate:           v.Plate,
		Make:            v.Make,
		Model:           v.Model,
		Color:           v.Color,
		OwnerName:       v.OwnerName,
		OwnerPhone:      v.OwnerPhone,
		TicketCode:      v.TicketCode,
		CheckInAt:       v.CheckInAt,
		ExitedAt:        exitedAt,
		FinalAmount:     amount,
		MinutesParked:   minutes,
		PlateImageURL:   v.PlateImageURL,
		VehicleImageURL: v.VehicleImageURL,
		CaptureMeta:     v.CaptureMeta,
	}
}
