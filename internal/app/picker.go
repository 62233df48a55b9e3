package app

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// Picker returns a uniformly distributed index in [0, n).
type Picker interface {
	IntN(n int) int
}

type lockedPicker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (p *lockedPicker) IntN(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.IntN(n)
}

// NewRandomPicker returns a PCG-backed picker seeded from crypto/rand. Safe for
// concurrent use.
func NewRandomPicker() Picker {
	var seed [16]byte
	_, _ = crand.Read(seed[:])
	return NewSeededPicker(binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:]))
}

// NewSeededPicker returns a deterministic picker for replays and tests.
func NewSeededPicker(seed1, seed2 uint64) Picker {
	return &lockedPicker{rng: rand.New(rand.NewPCG(seed1, seed2))}
}
