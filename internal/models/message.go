package models

import (
	"time"
)

// Message is one relayed payload at rest. The client's submission is re-sealed
// server-side before it lands here, so EncryptedData is always the server
// envelope (base64 of salt + nonce + tag + ciphertext), never the raw client
// payload. GarbageNoise pads the stored row size and is never serialized.
type Message struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SenderKey     string    `gorm:"type:varchar(16);not null;index:idx_sender" json:"senderKey"`
	RecipientKey  string    `gorm:"type:varchar(16);not null;index:idx_recipient" json:"recipientKey"`
	EncryptedData string    `gorm:"type:text;not null" json:"encryptedData"`
	GarbageNoise  string    `gorm:"type:text" json:"-"`
	Timestamp     time.Time `gorm:"not null;index:idx_timestamp" json:"timestamp"`
	CreatedAt     time.Time `json:"-"`
}

// TableName specifies the table name
func (Message) TableName() string {
	return "messages"
}
