package models

import (
	"time"
)

// DeviceModel represents the database model for Devices.
type DeviceModel struct {
	DeviceID   string    `gorm:"column:device_id;type:varchar(255);primaryKey"`
	Location   string    `gorm:"type:varchar(255);not null;default:'Unknown'"`
	RelayState string    `gorm:"type:varchar(8);not null;default:'off'"`
	LastSeen   time.Time `gorm:"column:last_seen;type:timestamptz;not null"`
	Latitude   *float64  `gorm:"type:double precision"`
	Longitude  *float64  `gorm:"type:double precision"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (DeviceModel) TableName() string {
	return "devices"
}
