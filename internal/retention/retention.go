// Package retention keeps the message table bounded. There is no schedule:
// each successful submit rolls a die, and roughly one in ten rolls trims the
// table down to the tail cap. Between trims the table may run over the cap;
// that slack is accepted.
package retention

import (
	"context"
	"log"
	"math/rand/v2"
)

const (
	// TailCap is the number of youngest messages a trim leaves behind.
	TailCap = 1000

	// TrimProbability is the per-submit chance that a trim runs.
	TrimProbability = 0.10
)

// Trimmer is the slice of the message store a trim needs
type Trimmer interface {
	TrimToTail(ctx context.Context, keep int) (int64, error)
}

// Maintainer enforces the FIFO tail cap on the message store
type Maintainer struct {
	store Trimmer
	keep  int
	prob  float64
	roll  func() float64
}

// NewMaintainer creates a maintainer with the standard cap and probability
func NewMaintainer(store Trimmer) *Maintainer {
	return &Maintainer{
		store: store,
		keep:  TailCap,
		prob:  TrimProbability,
		roll:  rand.Float64,
	}
}

// MaybeTrim rolls once and, on a hit, cuts the table to the tail cap. Trim
// failures are logged and swallowed; the submit that triggered the roll has
// already been answered.
func (m *Maintainer) MaybeTrim(ctx context.Context) {
	if m.roll() >= m.prob {
		return
	}
	deleted, err := m.store.TrimToTail(ctx, m.keep)
	if err != nil {
		log.Printf("Message cleanup failed: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("🧹 FIFO cleanup removed %d old messages", deleted)
	}
}
