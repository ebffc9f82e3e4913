// Package engine wires the pure strategy reducer, the risk gate, and
// the execution simulator into the run loop: a priority-ordered event
// bus feeding a single-threaded dispatcher that is never re-entered.
// Keeping every state mutation behind this one seam is what makes
// whole-run replay from the WAL exact.
package engine

import (
	"container/heap"

	"github.com/uprootiny/arbitragefx/pkg/types"
)

// Bus holds events not yet dispatched, ordered by (class priority,
// seq). Sys > Risk > Fill > Market; FIFO by seq within a class.
type Bus struct {
	heap    eventHeap
	nextSeq uint64
}

// NewBus returns an empty event bus.
func NewBus() *Bus {
	b := &Bus{}
	heap.Init(&b.heap)
	return b
}

// Publish assigns the next monotonic Seq to ev and enqueues it. The
// caller must not set Seq itself — the bus is the sole authority.
func (b *Bus) Publish(ev types.Event) types.Event {
	ev.Seq = b.nextSeq
	b.nextSeq++
	heap.Push(&b.heap, ev)
	return ev
}

// Len reports the number of undispatched events.
func (b *Bus) Len() int { return b.heap.Len() }

// Pop removes and returns the highest-priority, lowest-seq event. It
// panics if the bus is empty — callers must check Len first.
func (b *Bus) Pop() types.Event {
	return heap.Pop(&b.heap).(types.Event)
}

// eventHeap implements container/heap.Interface over types.Event,
// ordering by (Class.Priority(), Seq) ascending.
type eventHeap []types.Event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	pi, pj := h[i].Class.Priority(), h[j].Class.Priority()
	if pi != pj {
		return pi < pj
	}
	return h[i].Seq < h[j].Seq
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x interface{}) {
	*h = append(*h, x.(types.Event))
}

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
