// Package idgen mints 64-bit surrogate keys without relying on store
// auto-increment.
//
// A key is a coarse millisecond timestamp multiplied by 1000 plus a random
// suffix in [0, 999]. The timestamp part is forced to move forward on every
// call (the watermark), so keys from one Allocator are strictly increasing
// even when the clock stalls or goes backwards. The suffix only spreads keys
// minted by different allocators; it is not what makes keys unique.
package idgen

import (
	"math/rand/v2"
	"sync"
	"time"
)

const suffixSpan = 1000

// Allocator hands out strictly increasing positive keys. It is safe for
// concurrent use.
type Allocator struct {
	mu        sync.Mutex
	watermark int64
	now       func() time.Time
	rnd       *rand.Rand
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Allocator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithRand replaces the random source used for the key suffix.
func WithRand(src rand.Source) Option {
	return func(a *Allocator) {
		if src != nil {
			a.rnd = rand.New(src)
		}
	}
}

// WithWatermark seeds the watermark, e.g. from the highest key already stored.
func WithWatermark(ms int64) Option {
	return func(a *Allocator) {
		a.watermark = ms
	}
}

// New creates an Allocator.
func New(opts ...Option) *Allocator {
	seed := uint64(time.Now().UnixNano())
	a := &Allocator{
		now: time.Now,
		rnd: rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Next returns a key strictly greater than every key previously returned by a.
func (a *Allocator) Next() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	ticks := a.now().UnixMilli()
	if ticks <= a.watermark {
		ticks = a.watermark + 1
	}
	a.watermark = ticks

	return ticks*suffixSpan + a.rnd.Int64N(suffixSpan)
}

// Watermark returns the last coarse timestamp handed out.
func (a *Allocator) Watermark() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.watermark
}
