// Package store implements the two relay relations on top of the pooled
// database handle: the message table and the device-key registry.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/visrodeck/relaygo/internal/database"
	"github.com/visrodeck/relaygo/internal/models"
)

// ErrMissingField is returned by Append when a required column would be empty.
var ErrMissingField = errors.New("store: missing required message field")

// Messages is the relay record store. Rows are append-mostly: once inserted,
// a message row is only ever removed, either by the retention trim or by a
// participant wipe.
type Messages struct {
	db *database.DB
}

// NewMessages creates a message store over the shared database handle
func NewMessages(db *database.DB) *Messages {
	return &Messages{db: db}
}

// Append persists one sealed message and returns its assigned id
func (s *Messages) Append(ctx context.Context, senderKey, recipientKey, envelope, noise string, timestamp time.Time) (uint, error) {
	if senderKey == "" || recipientKey == "" || envelope == "" {
		return 0, ErrMissingField
	}

	msg := models.Message{
		SenderKey:     senderKey,
		RecipientKey:  recipientKey,
		EncryptedData: envelope,
		GarbageNoise:  noise,
		Timestamp:     timestamp,
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return 0, err
	}
	return msg.ID, nil
}

// RecentFor returns up to limit messages where key appears as sender or
// recipient, newest first. Rows with the same timestamp (the store keeps
// second precision) are ordered by descending id, so the later insert wins.
func (s *Messages) RecentFor(ctx context.Context, key string, limit int) ([]models.Message, error) {
	var rows []models.Message
	err := s.db.WithContext(ctx).
		Where("sender_key = ? OR recipient_key = ?", key, key).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteFor removes every message sent or received by key and reports how
// many rows went away.
func (s *Messages) DeleteFor(ctx context.Context, key string) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("sender_key = ? OR recipient_key = ?", key, key).
		Delete(&models.Message{})
	return res.RowsAffected, res.Error
}

// TrimToTail deletes everything except the keep youngest messages. Youth is
// judged by timestamp with id as tiebreak, matching the read path ordering.
func (s *Messages) TrimToTail(ctx context.Context, keep int) (int64, error) {
	res := s.db.WithContext(ctx).Exec(`
		DELETE FROM messages
		WHERE id NOT IN (
			SELECT id FROM messages
			ORDER BY timestamp DESC, id DESC
			LIMIT ?
		)`, keep)
	return res.RowsAffected, res.Error
}

// Ping probes the underlying connection for the health endpoint
func (s *Messages) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
