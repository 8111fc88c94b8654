package flame

import "github.com/montaglue/racy/internal/codec"

// exampleBase is a fixed epoch so the example data set is reproducible.
const exampleBase uint64 = 1_700_000_000_000_000_000

// Example returns a canned single-thread EventLog useful for demos and for
// developing renderers without capturing a real workload.
func Example() *EventLog {
	const id = 12345
	ms := func(v uint64) uint64 { return v * 1_000_000 }

	// Events are listed as (start offset, duration); raw timestamps mark
	// the scope end, like events coming out of a real capture.
	mk := func(start, dur uint64, name string) codec.Event {
		return codec.Event{
			ID:        id,
			Timestamp: exampleBase + ms(start) + ms(dur),
			Duration:  ms(dur),
			Name:      name,
		}
	}

	b := NewBuilder()
	b.AddBatch([]codec.Event{
		mk(0, 5000, "request_handler"),
		mk(100, 45, "user_authentication"),
		mk(200, 150, "database_query"),
		mk(220, 25, "cache_lookup"),
		mk(500, 2500, "file_processing"),
		mk(600, 1200, "image_compression"),
		mk(650, 15, "memory_allocation"),
		mk(800, 75, "api_request"),
		mk(2000, 90, "json_parsing"),
		mk(3100, 500, "network_request"),
		mk(3200, 300, "encryption"),
		mk(3700, 120, "template_rendering"),
		mk(4000, 65, "validation"),
		mk(5200, 1800, "data_synchronization"),
		mk(5300, 35, "logging"),
	})
	return b.Build()
}
