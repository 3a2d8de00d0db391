// Package entropy provides the reproducible random streams behind colony events.
// Every stream is a pure function of its seed: the same (turn, colony) pair yields the
// same draws on every machine, which is what replay and multiplayer validation rely on.
package entropy

import (
	"encoding/binary"

	"lukechampine.com/blake3"
)

const colonyTurnDomain = "colony-turn"

// Stream is a counter-based splitmix64 generator. It is not safe for concurrent use;
// callers construct one per colony per turn.
type Stream struct {
	seed uint64
	n    uint64
}

// New returns a stream positioned at its first draw.
func New(seed uint64) *Stream {
	return &Stream{seed: seed}
}

// ForColonyTurn derives the event stream for one colony's turn.
func ForColonyTurn(turn, colonyID uint64) *Stream {
	return New(ColonyTurnSeed(turn, colonyID))
}

// ColonyTurnSeed hashes (turn, colony) with BLAKE3 and folds the digest to 64 bits.
func ColonyTurnSeed(turn, colonyID uint64) uint64 {
	buf := make([]byte, 0, len(colonyTurnDomain)+16)
	buf = append(buf, colonyTurnDomain...)
	buf = binary.BigEndian.AppendUint64(buf, turn)
	buf = binary.BigEndian.AppendUint64(buf, colonyID)
	sum := blake3.Sum256(buf)
	return binary.LittleEndian.Uint64(sum[:8])
}

// Uint64 returns the next raw value.
func (s *Stream) Uint64() uint64 {
	s.n++
	return mix64(s.seed + s.n*0x9e3779b97f4a7c15)
}

// Float64 returns a value in [0, 1) built from the top 53 bits.
func (s *Stream) Float64() float64 {
	return float64(s.Uint64()>>11) / float64(1<<53)
}

// Intn returns a value in [0, n). n <= 0 yields 0 without consuming a draw.
func (s *Stream) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(s.Uint64() % uint64(n))
}

// IntRange returns a value in [lo, hi].
func (s *Stream) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.Intn(hi-lo+1)
}

// Chance draws once and reports whether the roll landed under p.
func (s *Stream) Chance(p float64) bool {
	return s.Float64() < p
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
