package timeline

import (
	"container/heap"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/backsim/market"
)

// ErrOrderingViolation reports a source stream that is not sorted by
// timestamp. It is fatal: continuing would silently corrupt the global
// ordering guarantee every downstream component depends on.
var ErrOrderingViolation = errors.New("timeline: stream not sorted by timestamp")

type mergeItem struct {
	ev     market.Event
	stream Stream
	// idx is the stream's registration order, the final tie-break so
	// identical inputs always merge identically.
	idx  int
	last time.Time
}

type mergeHeap []*mergeItem

func (h mergeHeap) Len() int { return len(h) }

func (h mergeHeap) Less(i, j int) bool {
	ti, tj := h[i].ev.Time(), h[j].ev.Time()
	if !ti.Equal(tj) {
		return ti.Before(tj)
	}
	si, sj := h[i].stream.Symbol(), h[j].stream.Symbol()
	if si != sj {
		return si < sj
	}
	ki, kj := h[i].stream.Kind(), h[j].stream.Kind()
	if ki != kj {
		return ki < kj
	}
	return h[i].idx < h[j].idx
}

func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x any) { *h = append(*h, x.(*mergeItem)) }

func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// Merger performs a deterministic k-way merge over the source streams.
// Ties on timestamp break by instrument symbol, then stream kind (ticks
// before bars), then registration order. The output is lazy, finite and
// one-pass; a fresh run re-merges from the original sources.
type Merger struct {
	h      mergeHeap
	failed error
}

// NewMerger primes the merge with the head of every non-empty stream.
// Streams exhausted mid-run simply drop out of the merge.
func NewMerger(streams ...Stream) (*Merger, error) {
	m := &Merger{h: make(mergeHeap, 0, len(streams))}
	for i, s := range streams {
		ev, ok, err := s.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		m.h = append(m.h, &mergeItem{ev: ev, stream: s, idx: i, last: ev.Time()})
	}
	heap.Init(&m.h)
	return m, nil
}

// Next returns the next event in global timestamp order, ok=false once
// every stream is exhausted. After an error the merger stays failed.
func (m *Merger) Next() (market.Event, bool, error) {
	if m.failed != nil {
		return market.Event{}, false, m.failed
	}
	if m.h.Len() == 0 {
		return market.Event{}, false, nil
	}

	it := m.h[0]
	out := it.ev

	next, ok, err := it.stream.Next()
	switch {
	case err != nil:
		m.failed = err
		return market.Event{}, false, err
	case !ok:
		heap.Pop(&m.h)
	default:
		if next.Time().Before(it.last) {
			m.failed = fmt.Errorf("%w: %s %s at %s after %s",
				ErrOrderingViolation,
				it.stream.Symbol(), it.stream.Kind(),
				next.Time().Format(time.RFC3339Nano),
				it.last.Format(time.RFC3339Nano))
			return market.Event{}, false, m.failed
		}
		it.ev = next
		it.last = next.Time()
		heap.Fix(&m.h, 0)
	}

	return out, true, nil
}

// Close closes all remaining source streams.
func (m *Merger) Close() error {
	var first error
	for _, it := range m.h {
		if err := it.stream.Close(); err != nil && first == nil {
			first = err
		}
	}
	m.h = m.h[:0]
	return first
}
