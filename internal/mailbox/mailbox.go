// Package mailbox provides a single-slot, latest-value-wins handoff between a
// notification callback and a polling consumer.
package mailbox

import (
	"sync"
	"sync/atomic"
)

// Mailbox holds at most one value. Put never blocks: a pending value is replaced,
// not queued, so the consumer always sees the most recent one.
//
//	mb := mailbox.New[[]byte]()
//
//	// Producer (e.g. a BLE notification handler): always succeeds.
//	mb.Put(report)
//
//	// Consumer: selects on C() alongside its own timeout and cancellation.
//	select {
//	case v := <-mb.C():
//	    mb.MarkTaken()
//	    ...
//	case <-time.After(500 * time.Millisecond):
//	}
type Mailbox[T any] struct {
	ch chan T

	// serializes producers so the drop-then-put pair is atomic
	putMu sync.Mutex

	metrics Metrics
}

// New creates an empty mailbox
func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{ch: make(chan T, 1)}
}

// C exposes the slot for select statements. Receiving from it clears the slot but
// bypasses the Taken metric.
func (m *Mailbox[T]) C() <-chan T {
	return m.ch
}

// Put stores v, discarding any value the consumer has not taken yet.
// Returns true if a pending value was overwritten.
func (m *Mailbox[T]) Put(v T) bool {
	m.putMu.Lock()
	defer m.putMu.Unlock()

	overwritten := false
	select {
	case <-m.ch:
		m.metrics.addOverwritten()
		overwritten = true
	default:
	}

	m.ch <- v
	m.metrics.addPut()
	return overwritten
}

// TryTake takes the pending value without blocking.
func (m *Mailbox[T]) TryTake() (v T, ok bool) {
	select {
	case v = <-m.ch:
		m.metrics.addTaken()
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// MarkTaken records a value received directly from C().
func (m *Mailbox[T]) MarkTaken() {
	m.metrics.addTaken()
}

// GetMetrics returns a snapshot of current metrics values.
func (m *Mailbox[T]) GetMetrics() Metrics {
	return Metrics{
		Put:         atomic.LoadInt64(&m.metrics.Put),
		Taken:       atomic.LoadInt64(&m.metrics.Taken),
		Overwritten: atomic.LoadInt64(&m.metrics.Overwritten),
	}
}

// Metrics provides lock-free counters for a Mailbox.
type Metrics struct {
	Put         int64
	Taken       int64
	Overwritten int64
}

func (m *Metrics) addPut() {
	atomic.AddInt64(&m.Put, 1)
}

func (m *Metrics) addTaken() {
	atomic.AddInt64(&m.Taken, 1)
}

func (m *Metrics) addOverwritten() {
	atomic.AddInt64(&m.Overwritten, 1)
}
