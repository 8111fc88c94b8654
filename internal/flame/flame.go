// Package flame reconstructs a per-thread nested span view from the flat
// event stream captured at runtime. The output is suitable for flame-graph
// style rendering: every span carries a depth equal to the number of
// still-open enclosing spans on its thread at its start.
package flame

import "sort"

// Span is the reconstructed, depth-annotated representation of one
// captured scope. Timestamp is the span's start offset in nanoseconds,
// relative to the EventLog's StartTime.
type Span struct {
	ID        uint64 `json:"id"`
	Duration  uint64 `json:"duration"`
	Timestamp uint64 `json:"timestamp"`
	Depth     uint64 `json:"depth"`
	Name      string `json:"name"`
}

// End returns the span's relative end offset.
func (s Span) End() uint64 {
	return s.Timestamp + s.Duration
}

// Thread holds the ordered spans of one captured thread.
type Thread struct {
	ID    uint64 `json:"id"`
	Spans []Span `json:"spans"`
}

// IsEmpty reports whether the thread captured no spans.
func (t *Thread) IsEmpty() bool {
	return len(t.Spans) == 0
}

// MaxDepth returns the deepest nesting level on this thread.
func (t *Thread) MaxDepth() uint64 {
	var max uint64
	for i := range t.Spans {
		if t.Spans[i].Depth > max {
			max = t.Spans[i].Depth
		}
	}
	return max
}

// EventLog is the reconstructed view of one capture session. It is
// immutable after Build: renderers and exporters only read it.
type EventLog struct {
	// StartTime is the minimum absolute start timestamp (epoch
	// nanoseconds) across all input events, or 0 for an empty input set.
	StartTime uint64 `json:"start_time"`
	// TotalDuration is the maximum relative end offset across all spans.
	TotalDuration uint64             `json:"total_duration"`
	Threads       map[uint64]*Thread `json:"threads"`
}

// IsEmpty reports whether the log holds no threads.
func (l *EventLog) IsEmpty() bool {
	return len(l.Threads) == 0
}

// Len returns the total span count across all threads.
func (l *EventLog) Len() int {
	n := 0
	for _, t := range l.Threads {
		n += len(t.Spans)
	}
	return n
}

// ThreadIDs returns all thread identifiers in ascending order.
func (l *EventLog) ThreadIDs() []uint64 {
	ids := make([]uint64, 0, len(l.Threads))
	for id := range l.Threads {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
