package repository

import (
	"fmt"

	"github.com/gigfactory/designhub/internal/design/entity"
	"gorm.io/gorm"
)

// Models lists every table owned by the service.
func Models() []interface{} {
	return []interface{}{
		&entity.Project{},
		&entity.Deliverable{},
		&entity.Task{},
		&entity.Drawing{},
		&entity.DrawingVersion{},
		&entity.DrawingComment{},
		&entity.Submission{},
		&entity.RFI{},
		&entity.OutboxEvent{},
		&entity.TeamMember{},
	}
}

// constraints gorm tags cannot express
var migrationSQL = []string{
	// one latest version per drawing
	"CREATE UNIQUE INDEX IF NOT EXISTS uq_drawing_versions_latest ON drawing_versions (drawing_id) WHERE is_latest",
	// one open submission per drawing
	"CREATE UNIQUE INDEX IF NOT EXISTS uq_drawing_submissions_open ON drawing_submissions (drawing_id) WHERE status = 'pending'",
	"CREATE INDEX IF NOT EXISTS idx_outbox_events_unpublished ON outbox_events (occurred_at) WHERE published_at IS NULL AND dead_lettered_at IS NULL",
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	for _, stmt := range migrationSQL {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %q: %w", stmt, err)
		}
	}
	return nil
}
