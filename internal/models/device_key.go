package models

import (
	"time"
)

// DeviceKey tracks the last activity instant of a participant token. Rows are
// created on first touch and updated forever after; they are never deleted.
type DeviceKey struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	Key      string    `gorm:"type:varchar(16);unique;not null;index:idx_device_key" json:"deviceKey"`
	LastSeen time.Time `gorm:"not null" json:"lastSeen"`
}

// TableName specifies the table name
func (DeviceKey) TableName() string {
	return "device_keys"
}
