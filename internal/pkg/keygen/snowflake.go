package keygen

import (
	"errors"
	"sync"
	"time"

	"github.com/parthsharma2/linksight/internal/pkg/base62"
)

const (
	Epoch         = int64(1704067200000) // 2024-01-01 UTC, milliseconds
	TimestampBits = 41
	MachineIDBits = 10
	SequenceBits  = 12

	MaxMachineID = (1 << MachineIDBits) - 1
	MaxSequence  = (1 << SequenceBits) - 1

	TimestampShift = MachineIDBits + SequenceBits
	MachineIDShift = SequenceBits
)

// SnowflakeGenerator produces short codes from snowflake IDs encoded in
// base62. Codes from distinct (machineID, timestamp, sequence) triples never
// collide, which keeps allocator retries a defensive rarity.
type SnowflakeGenerator struct {
	mu            sync.Mutex
	machineID     int64
	sequence      int64
	lastTimestamp int64
	minLength     int
}

type Config struct {
	MachineID int64
	MinLength int
}

func NewSnowflakeGenerator(cfg Config) (*SnowflakeGenerator, error) {
	if cfg.MachineID < 0 || cfg.MachineID > MaxMachineID {
		return nil, errors.New("machine ID must be between 0 and 1023")
	}

	if cfg.MinLength == 0 {
		cfg.MinLength = 7
	}
	return &SnowflakeGenerator{
		machineID:     cfg.MachineID,
		sequence:      0,
		lastTimestamp: -1,
		minLength:     cfg.MinLength,
	}, nil
}

func (g *SnowflakeGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	timestamp := g.currentTimestamp()
	if timestamp < g.lastTimestamp {
		// clock went backwards; reuse the last timestamp so IDs stay unique
		timestamp = g.lastTimestamp
	}

	if timestamp == g.lastTimestamp {
		g.sequence = (g.sequence + 1) & MaxSequence
		if g.sequence == 0 {
			timestamp = g.waitNextMillis(g.lastTimestamp)
		}
	} else {
		g.sequence = 0
	}

	g.lastTimestamp = timestamp
	id := ((timestamp - Epoch) << TimestampShift) |
		(g.machineID << MachineIDShift) |
		g.sequence

	return base62.EncodePadded(uint64(id), g.minLength), nil
}

func (g *SnowflakeGenerator) currentTimestamp() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

func (g *SnowflakeGenerator) waitNextMillis(lastTimestamp int64) int64 {
	timestamp := g.currentTimestamp()
	for timestamp <= lastTimestamp {
		time.Sleep(100 * time.Microsecond)
		timestamp = g.currentTimestamp()
	}
	return timestamp
}
