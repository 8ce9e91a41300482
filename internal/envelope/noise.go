package envelope

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	mrand "math/rand/v2"
)

const (
	noiseMin = 100
	noiseMax = 600
)

// Noise returns a random filler blob of 100 to 599 octets, base64 encoded.
// Every stored message carries one so that row sizes do not reveal payload
// sizes to anyone reading the table.
func Noise() (string, error) {
	buf := make([]byte, noiseMin+mrand.IntN(noiseMax-noiseMin))
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to generate noise: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}
