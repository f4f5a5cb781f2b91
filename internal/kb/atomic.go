package kb

import (
	"math"
	"sync/atomic"
)

// atomicFloat is a float64 updated via atomic read-modify-write, per spec
// section 5 "Assertion metadata (priority, active flag) is updated via
// atomic read-modify-write".
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) load() float64 {
	return math.Float64frombits(f.bits.Load())
}

func (f *atomicFloat) store(v float64) {
	f.bits.Store(math.Float64bits(v))
}

func (f *atomicFloat) compareAndSwap(old, new float64) bool {
	return f.bits.CompareAndSwap(math.Float64bits(old), math.Float64bits(new))
}

type atomicBool struct {
	v atomic.Bool
}

func (b *atomicBool) load() bool { return b.v.Load() }
func (b *atomicBool) store(v bool) { b.v.Store(v) }
func (b *atomicBool) compareAndSwap(old, new bool) bool { return b.v.CompareAndSwap(old, new) }
