package models

import (
	"time"
)

// ReadingModel represents one row of the append-only sensor_readings table.
// Sequence is the insertion order used to break timestamp ties.
type ReadingModel struct {
	Sequence  int64     `gorm:"column:sequence;primaryKey;autoIncrement"`
	ReadingID string    `gorm:"column:reading_id;type:uuid;not null;uniqueIndex"`
	DeviceID  string    `gorm:"column:device_id;type:varchar(255);not null;index:idx_readings_device_time,priority:1"`
	Humidity  *float64  `gorm:"type:double precision"`
	Fluoride  float64   `gorm:"type:double precision;not null"`
	Location  string    `gorm:"type:varchar(255);not null;default:'Unknown'"`
	Timestamp time.Time `gorm:"column:timestamp;type:timestamptz;not null;index:idx_readings_device_time,priority:2,sort:desc"`
	CreatedAt time.Time `gorm:"not null"`
}

func (ReadingModel) TableName() string {
	return "sensor_readings"
}
