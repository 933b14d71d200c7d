package db

import (
	"fmt"

	"gorm.io/gorm"

	"parking-service/internal/model"
)

var migrationModels = []interface{}{
	&model.Ticket{},
	&model.Vehicle{},
	&model.ArchivedVehicle{},
	&model.Payment{},
	&model.HistoryEvent{},
	&model.VehicleHistory{},
	&model.FacilitySettings{},
	&model.NotificationSubscription{},
	&model.NotificationOutbox{},
	&model.NotificationDelivery{},
}

// Constraints that gorm tags cannot express. Both postgres and sqlite
// accept partial indexes.
var migrationStatements = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_payments_ticket_pending
		ON payments (ticket_code)
		WHERE validation_state = 'pending';`,
	`CREATE INDEX IF NOT EXISTS idx_payments_ticket_submitted
		ON payments (ticket_code, submitted_at);`,
	`CREATE INDEX IF NOT EXISTS idx_history_events_vehicle_occurred
		ON history_events (vehicle_id, occurred_at);`,
	`CREATE INDEX IF NOT EXISTS idx_notification_outbox_pending
		ON notification_outbox (created_at)
		WHERE status = 'pending';`,
}

// Migrate brings the schema up to date. Safe to run repeatedly.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(migrationModels...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
