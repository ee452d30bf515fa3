package database

import (
	"fmt"

	"power_dashboard/logger"
	"power_dashboard/models"

	"gorm.io/gorm"
)

type tabler interface {
	TableName() string
}

// TableStatus reports whether a model's table exists
type TableStatus struct {
	Table  string
	Exists bool
}

// Migrate creates or updates the export tables
func Migrate(db *gorm.DB) error {
	all := models.GetAllModels()
	logger.Debugf("Migrating %d model(s)\n", len(all))
	if err := db.AutoMigrate(all...); err != nil {
		return fmt.Errorf("failed to migrate export tables: %w", err)
	}
	return nil
}

// GetMigrationStatus returns the status of every export table
func GetMigrationStatus(db *gorm.DB) []TableStatus {
	var out []TableStatus
	for _, m := range models.GetAllModels() {
		name := fmt.Sprintf("%T", m)
		if t, ok := m.(tabler); ok {
			name = t.TableName()
		}
		out = append(out, TableStatus{Table: name, Exists: db.Migrator().HasTable(m)})
	}
	return out
}
