// Package rng provides the label-keyed deterministic draws used by the
// foundation pipeline. There is no generator state: a draw is a pure
// function of (seed, label, range).
package rng

import (
	"hash/fnv"
	"strconv"
)

// Hash32 returns the FNV-1a hash of "<seed>:<label>".
func Hash32(seed uint32, label string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(strconv.FormatUint(uint64(seed), 10)))
	h.Write([]byte{':'})
	h.Write([]byte(label))
	return h.Sum32()
}

// Label returns a value in [0, max) for the given label. max below 1 is
// treated as 1, so the result is always 0 in that case.
func Label(seed uint32, label string, max int) int {
	if max < 1 {
		max = 1
	}
	return int(Hash32(seed, label) % uint32(max))
}

// Source binds a seed so call sites only pass labels.
type Source struct {
	seed uint32
}

// New returns a Source for seed. Negative seeds keep their two's
// complement bit pattern.
func New(seed int64) Source {
	return Source{seed: uint32(seed)}
}

// Seed returns the 32-bit seed.
func (s Source) Seed() uint32 { return s.seed }

// Intn draws from [0, max) under label.
func (s Source) Intn(max int, label string) int {
	return Label(s.seed, label, max)
}

// Float draws a value in [0, 1) under label.
func (s Source) Float(label string) float64 {
	return float64(Hash32(s.seed, label)) / float64(1<<32)
}
