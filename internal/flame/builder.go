package flame

import (
	"sort"

	"github.com/montaglue/racy/internal/codec"
)

// Builder accumulates raw events and turns them into an EventLog. It is a
// pure batch transform: no I/O, no shared state, and reconstruction of one
// thread depends only on that thread's own spans, so identical input always
// yields an identical EventLog.
type Builder struct {
	events []codec.Event
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends one raw event.
func (b *Builder) Add(ev codec.Event) {
	b.events = append(b.events, ev)
}

// AddBatch appends a batch of raw events. Arrival order does not matter;
// spans are re-sorted per thread during Build.
func (b *Builder) AddBatch(events []codec.Event) {
	b.events = append(b.events, events...)
}

// Build reconstructs the nested per-thread view. An empty input set is
// valid and produces an EventLog with StartTime 0, TotalDuration 0 and an
// empty thread map.
func (b *Builder) Build() *EventLog {
	if len(b.events) == 0 {
		return &EventLog{Threads: map[uint64]*Thread{}}
	}

	// A raw event's timestamp marks the scope's end; its start is
	// timestamp - duration. All offsets are made relative to the earliest
	// start across the whole input set.
	minStart := startOf(b.events[0])
	for _, ev := range b.events[1:] {
		if s := startOf(ev); s < minStart {
			minStart = s
		}
	}

	threads := make(map[uint64]*Thread)
	var total uint64
	for _, ev := range b.events {
		span := Span{
			ID:        ev.ID,
			Duration:  ev.Duration,
			Timestamp: startOf(ev) - minStart,
			Name:      ev.Name,
		}
		if end := span.End(); end > total {
			total = end
		}

		th, ok := threads[ev.ID]
		if !ok {
			th = &Thread{ID: ev.ID}
			threads[ev.ID] = th
		}
		th.Spans = append(th.Spans, span)
	}

	for _, th := range threads {
		sortSpans(th.Spans)
		assignDepth(th.Spans)
	}

	return &EventLog{
		StartTime:     minStart,
		TotalDuration: total,
		Threads:       threads,
	}
}

func startOf(ev codec.Event) uint64 {
	if ev.Duration > ev.Timestamp {
		// Malformed event claiming to start before the epoch; clamp
		// rather than wrap around.
		return 0
	}
	return ev.Timestamp - ev.Duration
}

// sortSpans orders spans with the total order required for deterministic
// depth assignment: start ascending, then duration descending (a longer,
// enclosing span sorts before a shorter one starting at the same instant),
// then id, depth and name ascending.
func sortSpans(spans []Span) {
	sort.Slice(spans, func(i, j int) bool {
		a, b := &spans[i], &spans[j]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		if a.Duration != b.Duration {
			return a.Duration > b.Duration
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		if a.Depth != b.Depth {
			return a.Depth < b.Depth
		}
		return a.Name < b.Name
	})
}

// assignDepth runs the stack sweep over sorted spans. The stack holds end
// offsets of currently open spans; entries that closed at or before the
// next span's start are popped, the remaining stack size is the span's
// depth. Assumes spans on one thread are nested or disjoint; crossing
// intervals yield depths without a meaningful nesting interpretation.
func assignDepth(spans []Span) {
	var stack []uint64
	for i := range spans {
		span := &spans[i]
		for len(stack) > 0 && stack[len(stack)-1] <= span.Timestamp {
			stack = stack[:len(stack)-1]
		}
		span.Depth = uint64(len(stack))
		stack = append(stack, span.End())
	}
}

// Load reads a log file and reconstructs it in one step.
func Load(path string) (*EventLog, error) {
	events, err := codec.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b := NewBuilder()
	b.AddBatch(events)
	return b.Build(), nil
}
