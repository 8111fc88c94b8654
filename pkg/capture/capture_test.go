package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/montaglue/racy/internal/codec"
)

// initTest starts a clean capture session writing into a temp sink and
// tears it down with the test.
func initTest(t *testing.T, opts Options) string {
	t.Helper()
	if err := Shutdown(); err != nil {
		t.Fatalf("pre-test shutdown: %v", err)
	}

	path := filepath.Join(t.TempDir(), "racy_output.bin")
	opts.Path = path
	opts.Quiet = true
	if err := InitWithOptions(opts); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { _ = Shutdown() })
	return path
}

func TestInitIdempotent(t *testing.T) {
	path := initTest(t, Options{})

	session := SessionID()
	if session == "" {
		t.Fatal("expected a session id")
	}

	// Record something and make it durable.
	BeginScope("first").End()
	if err := Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	// A second init must not re-truncate the sink or start a new session,
	// regardless of its options.
	if err := InitWithOptions(Options{Path: filepath.Join(t.TempDir(), "other.bin")}); err != nil {
		t.Fatalf("second init: %v", err)
	}
	if got := SessionID(); got != session {
		t.Errorf("second init changed session: %q -> %q", session, got)
	}

	events, err := codec.ReadFile(path)
	if err != nil {
		t.Fatalf("read sink: %v", err)
	}
	if len(events) != 1 || events[0].Name != "first" {
		t.Errorf("sink content lost after second init: %+v", events)
	}
}

func TestInitTruncatesSink(t *testing.T) {
	if err := Shutdown(); err != nil {
		t.Fatalf("pre-test shutdown: %v", err)
	}

	path := filepath.Join(t.TempDir(), "racy_output.bin")
	if err := os.WriteFile(path, []byte("stale data from a previous run"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	if err := InitWithOptions(Options{Path: path, Quiet: true}); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { _ = Shutdown() })

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("init did not truncate the sink; size = %d", info.Size())
	}
}

func TestScopeRecordsEvent(t *testing.T) {
	path := initTest(t, Options{})

	s := BeginScope("database_query")
	s.End()
	s.End() // idempotent: must not emit a second event

	if err := Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	events, err := codec.ReadFile(path)
	if err != nil {
		t.Fatalf("read sink: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Name != "database_query" {
		t.Errorf("name = %q", ev.Name)
	}
	if ev.ID == 0 {
		t.Error("event has no goroutine id")
	}
	if ev.Timestamp == 0 {
		t.Error("event has no end timestamp")
	}

	if st := GetStats(); st.Recorded != 1 || st.Dropped != 0 {
		t.Errorf("stats = %+v, want 1 recorded, 0 dropped", st)
	}
}

func TestSpillAtThreshold(t *testing.T) {
	path := initTest(t, Options{SpillThreshold: 3})

	for i := 0; i < 4; i++ {
		BeginScope(fmt.Sprintf("op-%d", i)).End()
	}

	// The 4th append exceeded the threshold, so the buffer must already
	// have spilled without any explicit flush.
	events, err := codec.ReadFile(path)
	if err != nil {
		t.Fatalf("read sink: %v", err)
	}
	if len(events) != 4 {
		t.Errorf("expected 4 spilled events, got %d", len(events))
	}
	if st := GetStats(); st.Spills != 1 {
		t.Errorf("spills = %d, want 1", st.Spills)
	}

	// The buffer was cleared: nothing further to flush.
	if err := Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	events, err = codec.ReadFile(path)
	if err != nil {
		t.Fatalf("re-read sink: %v", err)
	}
	if len(events) != 4 {
		t.Errorf("flush after spill duplicated events: %d", len(events))
	}
}

func TestDropOnContention(t *testing.T) {
	path := initTest(t, Options{})

	p := active.Load()
	buf := p.bufferFor(goid())

	// Simulate re-entrant capture while this goroutine's buffer is
	// mid-spill: the guard is held, so the record must be dropped, never
	// block.
	buf.mu.Lock()
	BeginScope("contended").End()
	buf.mu.Unlock()

	if st := GetStats(); st.Dropped != 1 || st.Recorded != 0 {
		t.Errorf("stats = %+v, want 1 dropped, 0 recorded", st)
	}

	if err := Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	events, err := codec.ReadFile(path)
	if err != nil {
		t.Fatalf("read sink: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("dropped event leaked into the sink: %+v", events)
	}
}

func TestFlushGathersDeadGoroutineBuffers(t *testing.T) {
	path := initTest(t, Options{})

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer BeginScope(fmt.Sprintf("worker-%d", i)).End()
		}(i)
	}
	wg.Wait()

	// All workers have exited; their buffers stay registered and are
	// drained by the flush on this goroutine.
	BeginScope("main").End()
	if err := Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	events, err := codec.ReadFile(path)
	if err != nil {
		t.Fatalf("read sink: %v", err)
	}
	if len(events) != workers+1 {
		t.Fatalf("expected %d events, got %d", workers+1, len(events))
	}

	ids := map[uint64]bool{}
	for _, ev := range events {
		ids[ev.ID] = true
	}
	if len(ids) != workers+1 {
		t.Errorf("expected %d distinct goroutine ids, got %d", workers+1, len(ids))
	}
}

func TestConcurrentCapture(t *testing.T) {
	path := initTest(t, Options{SpillThreshold: 10})

	const workers = 16
	const scopesPerWorker = 25

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < scopesPerWorker; j++ {
				func() {
					defer BeginScope("unit").End()
				}()
			}
		}()
	}
	wg.Wait()

	if err := Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	events, err := codec.ReadFile(path)
	if err != nil {
		t.Fatalf("decode after concurrent spills: %v", err)
	}
	// Single-goroutine buffers never contend with themselves, so nothing
	// may be dropped here and every event must be durable and parseable.
	if len(events) != workers*scopesPerWorker {
		t.Errorf("expected %d events, got %d", workers*scopesPerWorker, len(events))
	}
	if st := GetStats(); st.Dropped != 0 {
		t.Errorf("unexpected drops: %d", st.Dropped)
	}
}

func TestShutdownIdempotent(t *testing.T) {
	path := initTest(t, Options{})

	BeginScope("final").End()
	if err := Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := Shutdown(); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}

	events, err := codec.ReadFile(path)
	if err != nil {
		t.Fatalf("read sink: %v", err)
	}
	if len(events) != 1 || events[0].Name != "final" {
		t.Errorf("shutdown flush wrote %+v, want the single final event", events)
	}

	// Capture after shutdown is a silent no-op.
	BeginScope("after").End()
	if st := GetStats(); st != (Stats{}) {
		t.Errorf("stats after shutdown = %+v, want zero", st)
	}
}

func TestUninitializedCaptureIsNoop(t *testing.T) {
	if err := Shutdown(); err != nil {
		t.Fatalf("pre-test shutdown: %v", err)
	}

	BeginScope("nobody listening").End()
	if err := Flush(); err != nil {
		t.Errorf("flush without init: %v", err)
	}
	if got := SessionID(); got != "" {
		t.Errorf("session id without init: %q", got)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	opts := normalize(Options{})
	if opts.Path != codec.DefaultPath() {
		t.Errorf("default path = %q, want %q", opts.Path, codec.DefaultPath())
	}
	if opts.SpillThreshold != DefaultSpillThreshold {
		t.Errorf("default threshold = %d, want %d", opts.SpillThreshold, DefaultSpillThreshold)
	}

	opts = normalize(Options{Path: "/tmp/x.bin", SpillThreshold: 7})
	if opts.Path != "/tmp/x.bin" || opts.SpillThreshold != 7 {
		t.Errorf("normalize clobbered explicit options: %+v", opts)
	}
}

func TestGoid(t *testing.T) {
	if goid() == 0 {
		t.Fatal("goid returned 0 for a live goroutine")
	}
	if goid() != goid() {
		t.Error("goid is not stable within a goroutine")
	}

	other := make(chan uint64, 1)
	go func() { other <- goid() }()
	if id := <-other; id == goid() {
		t.Error("distinct goroutines share a goid")
	}
}
