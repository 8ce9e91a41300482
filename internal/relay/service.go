// Package relay implements the store-and-forward pipeline between the HTTP
// surface and storage: validate, record activity, seal, persist, and on the
// way back out, unseal and project.
package relay

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/visrodeck/relaygo/internal/envelope"
	"github.com/visrodeck/relaygo/internal/models"
)

const (
	// fetchLimit caps how many messages one fetch returns.
	fetchLimit = 100

	// activeWindow is how far back a device key counts as active.
	activeWindow = 5 * time.Minute

	// decryptionFailed is projected in place of a payload whose envelope
	// would not open. The row itself is never dropped.
	decryptionFailed = "[Decryption failed]"

	// instantLayout is the wire format of message timestamps: the stored
	// second-precision instant, no zone suffix.
	instantLayout = "2006-01-02T15:04:05"
)

// Validation failures, all answered with 400 before any storage call is made.
var (
	ErrMissingFields    = errors.New("relay: missing required fields")
	ErrInvalidKey       = errors.New("relay: invalid device key format")
	ErrInvalidTimestamp = errors.New("relay: invalid timestamp")
)

// MessageStore is the slice of the record store the service drives
type MessageStore interface {
	Append(ctx context.Context, senderKey, recipientKey, envelope, noise string, timestamp time.Time) (uint, error)
	RecentFor(ctx context.Context, key string, limit int) ([]models.Message, error)
	DeleteFor(ctx context.Context, key string) (int64, error)
	Ping(ctx context.Context) error
}

// DeviceRegistry is the slice of the participant registry the service drives
type DeviceRegistry interface {
	Touch(ctx context.Context, key string) error
	CountActiveSince(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionMaintainer runs the probabilistic FIFO trim
type RetentionMaintainer interface {
	MaybeTrim(ctx context.Context)
}

// Service wires the codec, registry, record store and retention maintainer
// into the four relay operations.
type Service struct {
	messages   MessageStore
	devices    DeviceRegistry
	maintainer RetentionMaintainer
}

// NewService creates a relay service over the given collaborators
func NewService(messages MessageStore, devices DeviceRegistry, maintainer RetentionMaintainer) *Service {
	return &Service{
		messages:   messages,
		devices:    devices,
		maintainer: maintainer,
	}
}

// SubmitRequest carries one inbound message exactly as posted
type SubmitRequest struct {
	SenderKey     string `json:"senderKey"`
	RecipientKey  string `json:"recipientKey"`
	EncryptedData string `json:"encryptedData"`
	Timestamp     string `json:"timestamp"`
}

// SubmitResult reports the stored message id and the server instant
type SubmitResult struct {
	MessageID uint
	Timestamp time.Time
}

// VisibleMessage is the per-participant projection of a stored message:
// the unsealed payload plus addressing, never the noise padding.
type VisibleMessage struct {
	ID            uint   `json:"id"`
	SenderKey     string `json:"senderKey"`
	RecipientKey  string `json:"recipientKey"`
	EncryptedData string `json:"encryptedData"`
	Timestamp     string `json:"timestamp"`
}

// Submit validates, touches both device keys, seals the payload and persists
// it. The registry touches run before sealing so that activity is recorded
// even if a later step fails; a touch failure itself is logged and does not
// abort the submit.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if req.SenderKey == "" || req.RecipientKey == "" || req.EncryptedData == "" {
		return SubmitResult{}, ErrMissingFields
	}
	if !validKey(req.SenderKey) || !validKey(req.RecipientKey) {
		return SubmitResult{}, ErrInvalidKey
	}
	instant, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		return SubmitResult{}, ErrInvalidTimestamp
	}

	if err := s.devices.Touch(ctx, req.SenderKey); err != nil {
		log.Printf("Device key registration failed: %v", err)
	}
	if err := s.devices.Touch(ctx, req.RecipientKey); err != nil {
		log.Printf("Device key registration failed: %v", err)
	}

	sealed, err := envelope.Seal(req.EncryptedData, req.SenderKey, req.RecipientKey)
	if err != nil {
		return SubmitResult{}, err
	}
	noise, err := envelope.Noise()
	if err != nil {
		return SubmitResult{}, err
	}

	id, err := s.messages.Append(ctx, req.SenderKey, req.RecipientKey, sealed, noise,
		instant.UTC().Truncate(time.Second))
	if err != nil {
		return SubmitResult{}, err
	}

	// Fire and forget: the trim must not delay the response, and may still
	// be running when the next submit arrives.
	go s.maintainer.MaybeTrim(context.WithoutCancel(ctx))

	return SubmitResult{MessageID: id, Timestamp: time.Now().UTC()}, nil
}

// Fetch returns the recent conversation history touching key, newest first.
// A message whose envelope will not open is kept in the sequence with the
// placeholder payload.
func (s *Service) Fetch(ctx context.Context, key string) ([]VisibleMessage, error) {
	if !validKey(key) {
		return nil, ErrInvalidKey
	}

	rows, err := s.messages.RecentFor(ctx, key, fetchLimit)
	if err != nil {
		return nil, err
	}

	visible := make([]VisibleMessage, 0, len(rows))
	for _, row := range rows {
		payload, err := envelope.Unseal(row.EncryptedData, row.SenderKey, row.RecipientKey)
		if err != nil {
			payload = decryptionFailed
		}
		visible = append(visible, VisibleMessage{
			ID:            row.ID,
			SenderKey:     row.SenderKey,
			RecipientKey:  row.RecipientKey,
			EncryptedData: payload,
			Timestamp:     row.Timestamp.UTC().Format(instantLayout),
		})
	}
	return visible, nil
}

// Purge deletes every message sent or received by key
func (s *Service) Purge(ctx context.Context, key string) error {
	if !validKey(key) {
		return ErrInvalidKey
	}
	_, err := s.messages.DeleteFor(ctx, key)
	return err
}

// ActiveCount returns the number of device keys seen in the last five minutes
func (s *Service) ActiveCount(ctx context.Context) (int64, error) {
	return s.devices.CountActiveSince(ctx, time.Now().UTC().Add(-activeWindow))
}

// Ping probes storage for the health endpoint
func (s *Service) Ping(ctx context.Context) error {
	return s.messages.Ping(ctx)
}
