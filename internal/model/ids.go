package model

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

// IDGenerator yields uniformly distributed 16-bit values,
// used for generated client identifiers and packet identifiers.
type IDGenerator interface {
	NextID() uint16
}

type randomIDs struct {
	sync.Mutex
	r *rand.Rand
}

// NewRandomIDs returns a generator seeded with seed, or with the current time if seed is 0.
func NewRandomIDs(seed int64) IDGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &randomIDs{r: rand.New(rand.NewSource(seed))}
}

func (g *randomIDs) NextID() uint16 {
	g.Lock()
	id := uint16(g.r.Intn(1 << 16))
	g.Unlock()
	return id
}

// ErrNoPacketID is returned when a generator keeps yielding 0,
// which generators that skip taken identifiers do once all are taken.
var ErrNoPacketID = errors.New("no packet identifier available")

const maxIDDraws = 16

// nonZeroID draws a usable packet identifier. [MQTT-2.3.1-1]
func nonZeroID(ids IDGenerator) (uint16, error) {
	for i := 0; i < maxIDDraws; i++ {
		if id := ids.NextID(); id != 0 {
			return id, nil
		}
	}
	return 0, ErrNoPacketID
}
