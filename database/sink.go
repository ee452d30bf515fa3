package database

import (
	"fmt"

	"power_dashboard/logger"
	"power_dashboard/models"
	"power_dashboard/validate"

	"gorm.io/gorm"
)

const batchSize = 1000

// Sink writes exported tables into the power_readings table
type Sink struct {
	db *gorm.DB
}

// NewSink wraps db; the table is migrated on first use
func NewSink(db *gorm.DB) (*Sink, error) {
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return &Sink{db: db}, nil
}

// ExportSummary describes one stored export
type ExportSummary struct {
	ExportName string
	RowCount   int64
}

// toRecords converts session rows keeping their position. Power and the
// timestamp are stored parsed when they coerce and always raw.
func toRecords(name string, rows []models.Reading) []models.PowerReading {
	out := make([]models.PowerReading, len(rows))
	for i, r := range rows {
		rec := models.PowerReading{
			ExportName: name,
			Position:   i,
			DateTime:   r.DateTime,
			RawPower:   r.Power,
		}
		if ts, ok := validate.CoerceTime(r.DateTime); ok {
			ts := ts.UTC()
			rec.RecordedAt = &ts
		}
		if v, ok := validate.CoerceNumeric(r.Power); ok {
			v := v
			rec.Power = &v
		}
		out[i] = rec
	}
	return out
}

// SaveExport stores rows under name in one transaction. An earlier export
// with the same name is replaced.
func (s *Sink) SaveExport(name string, rows []models.Reading) (int, error) {
	records := toRecords(name, rows)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("export_name = ?", name).Delete(&models.PowerReading{}).Error; err != nil {
			return fmt.Errorf("failed to replace export %s: %w", name, err)
		}
		if len(records) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(records, batchSize).Error; err != nil {
			return fmt.Errorf("failed to insert readings: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.Printf("Saved %d reading(s) as export %q\n", len(records), name)
	return len(records), nil
}

// LoadExport reads back the rows of a stored export in table order
func (s *Sink) LoadExport(name string) ([]models.Reading, error) {
	var records []models.PowerReading
	if err := s.db.Where("export_name = ?", name).Order("position ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load export %s: %w", name, err)
	}
	out := make([]models.Reading, len(records))
	for i, rec := range records {
		out[i] = models.Reading{DateTime: rec.DateTime, Power: rec.RawPower}
	}
	return out, nil
}

// ListExports summarises stored exports, most recent first
func (s *Sink) ListExports() ([]ExportSummary, error) {
	var out []ExportSummary
	err := s.db.Model(&models.PowerReading{}).
		Select("export_name, COUNT(*) AS row_count").
		Group("export_name").
		Order("MAX(id) DESC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	return out, nil
}
