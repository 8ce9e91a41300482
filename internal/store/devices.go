package store

import (
	"context"
	"time"

	"github.com/visrodeck/relaygo/internal/database"
	"github.com/visrodeck/relaygo/internal/models"
	"gorm.io/gorm/clause"
)

// Devices is the participant registry: one row per device key ever seen,
// carrying only its last activity instant.
type Devices struct {
	db *database.DB
}

// NewDevices creates a device registry over the shared database handle
func NewDevices(db *database.DB) *Devices {
	return &Devices{db: db}
}

// Touch records activity for key, inserting the row on first contact and
// bumping last_seen on every one after.
func (d *Devices) Touch(ctx context.Context, key string) error {
	now := time.Now().UTC()
	return d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"last_seen": now}),
		}).
		Create(&models.DeviceKey{Key: key, LastSeen: now}).Error
}

// CountActiveSince returns the number of distinct keys seen at or after cutoff
func (d *Devices) CountActiveSince(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).
		Model(&models.DeviceKey{}).
		Where("last_seen >= ?", cutoff).
		Count(&count).Error
	return count, err
}
