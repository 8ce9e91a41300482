// Package envelope seals relay payloads into self-describing authenticated
// blobs before they hit storage. Each envelope carries its own salt and nonce,
// so a record can be opened with nothing but the two device keys it was
// addressed with. The derived key concatenates senderKey+recipientKey in that
// order: opening with the keys swapped fails authentication, which is the
// intended behavior.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Wire-contract parameters. Stored envelopes embed their salt and nonce, so
// none of these can change without breaking every record already at rest.
const (
	keyLength     = 32     // AES-256
	nonceLength   = 16     // GCM with extended nonce, matching the Node crypto default
	saltLength    = 64     // PBKDF2 salt, drawn fresh per seal
	tagLength     = 16     // GCM authentication tag
	kdfIterations = 100000 // PBKDF2-SHA512 rounds

	// Overhead is the fixed envelope framing around the ciphertext.
	Overhead = saltLength + nonceLength + tagLength
)

// ErrTamperOrWrongKey is the single failure mode of Unseal. Distinguishing a
// corrupted blob from a wrong key pair would leak which one it was, so the
// caller only ever learns that the envelope did not open.
var ErrTamperOrWrongKey = errors.New("envelope: tampered data or wrong key pair")

// deriveKey stretches the concatenated device keys into an AES-256 key
func deriveKey(senderKey, recipientKey string, salt []byte) []byte {
	return pbkdf2.Key([]byte(senderKey+recipientKey), salt, kdfIterations, keyLength, sha512.New)
}

// Seal encrypts payload under a key derived from the (sender, recipient) pair
// and returns base64(salt + nonce + tag + ciphertext). Two seals of the same
// payload produce distinct envelopes because salt and nonce are fresh each
// time.
func Seal(payload, senderKey, recipientKey string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	nonce := make([]byte, nonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	block, err := aes.NewCipher(deriveKey(senderKey, recipientKey, salt))
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, nonceLength)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	// GCM appends the tag after the ciphertext; the envelope layout puts the
	// tag before it, so the two parts are reassembled explicitly.
	sealed := gcm.Seal(nil, nonce, []byte(payload), nil)
	ciphertext := sealed[:len(sealed)-tagLength]
	tag := sealed[len(sealed)-tagLength:]

	blob := make([]byte, 0, Overhead+len(ciphertext))
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, tag...)
	blob = append(blob, ciphertext...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Unseal parses an envelope produced by Seal and returns the original payload.
// Any failure (bad base64, truncated blob, authentication mismatch) yields
// ErrTamperOrWrongKey.
func Unseal(envelope, senderKey, recipientKey string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return "", ErrTamperOrWrongKey
	}
	if len(blob) < Overhead {
		return "", ErrTamperOrWrongKey
	}

	salt := blob[:saltLength]
	nonce := blob[saltLength : saltLength+nonceLength]
	tag := blob[saltLength+nonceLength : Overhead]
	ciphertext := blob[Overhead:]

	block, err := aes.NewCipher(deriveKey(senderKey, recipientKey, salt))
	if err != nil {
		return "", ErrTamperOrWrongKey
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, nonceLength)
	if err != nil {
		return "", ErrTamperOrWrongKey
	}

	sealed := make([]byte, 0, len(ciphertext)+tagLength)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	payload, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrTamperOrWrongKey
	}
	return string(payload), nil
}
