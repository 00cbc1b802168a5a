package store

import (
	"sync"
	"time"
)

// ID layout: 42 bits of milliseconds since the custom epoch, 8 bits
// of shard, 14 bits of per-millisecond sequence. Fits int64 and sorts
// by creation time.
const (
	idEpochMillis = int64(1577836800000) // 2020-01-01T00:00:00Z
	shardBits     = 8
	sequenceBits  = 14
	maxSequence   = 1<<sequenceBits - 1
)

// IDGenerator hands out unique, time-ordered int64 identifiers.
// Safe for concurrent use.
type IDGenerator struct {
	mu       sync.Mutex
	shard    int64
	lastMs   int64
	sequence int64
	nowMs    func() int64
}

func NewIDGenerator(shard uint8) *IDGenerator {
	return &IDGenerator{
		shard: int64(shard),
		nowMs: func() int64 { return time.Now().UnixMilli() },
	}
}

// Next returns the next identifier, spinning into the following
// millisecond if the sequence space is exhausted.
func (g *IDGenerator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.nowMs()
	if ms < g.lastMs {
		ms = g.lastMs
	}
	if ms == g.lastMs {
		g.sequence++
		if g.sequence > maxSequence {
			for ms <= g.lastMs {
				ms = g.nowMs()
			}
			g.sequence = 0
		}
	} else {
		g.sequence = 0
	}
	g.lastMs = ms

	return (ms-idEpochMillis)<<(shardBits+sequenceBits) |
		g.shard<<sequenceBits |
		g.sequence
}
