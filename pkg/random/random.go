// Package random provides a small seeded random-number utility shared by
// demo layers and tests.
package random

import (
	"math"
	"math/rand"
	"sync"
)

// Source is a concurrency-safe random source with a fixed seed.
type Source struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a Source seeded with seed.
func New(seed int64) *Source {
	return &Source{rng: rand.New(rand.NewSource(seed))}
}

// UInt returns a uniformly distributed uint32.
func (s *Source) UInt() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Uint32()
}

// UIntRange returns a uniform uint32 in [min, max].
func (s *Source) UIntRange(min, max uint32) uint32 {
	if max <= min {
		return min
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return min + s.rng.Uint32()%(max-min+1)
}

// Float returns a uniform float64 in [0, 1).
func (s *Source) Float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// FloatRange returns a uniform float64 in [min, max).
func (s *Source) FloatRange(min, max float64) float64 {
	if math.IsNaN(min) || math.IsNaN(max) || max <= min {
		return min
	}
	return min + s.Float()*(max-min)
}
