package models

import (
	"time"
)

// Column names shared by every export format
const (
	ColumnDateTime = "Date Time"
	ColumnPower    = "Power"
)

// Reading is one row of the session table. Both fields hold the raw text as
// entered or edited; an empty or unparsable Power is kept until the row is
// deleted.
type Reading struct {
	DateTime string `json:"Date Time"`
	Power    string `json:"Power"`
}

// CopyReadings returns an independent copy of rows
func CopyReadings(rows []Reading) []Reading {
	if rows == nil {
		return []Reading{}
	}
	out := make([]Reading, len(rows))
	copy(out, rows)
	return out
}

// PowerReading is a row written to the database export sink
type PowerReading struct {
	ID         uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	ExportName string     `gorm:"index;not null;size:255" json:"export_name"`
	Position   int        `gorm:"not null" json:"position"`
	DateTime   string     `gorm:"size:64" json:"date_time"`
	RecordedAt *time.Time `json:"recorded_at"`
	Power      *float64   `json:"power"`
	RawPower   string     `gorm:"size:64" json:"raw_power"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// TableName customizes the table name
func (PowerReading) TableName() string {
	return "power_readings"
}

// GetAllModels returns all models for migration
func GetAllModels() []interface{} {
	return []interface{}{
		&PowerReading{},
	}
}
