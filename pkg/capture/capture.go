// Package capture records timed scopes from concurrently running
// goroutines into an append-only binary log.
//
// Capture is best-effort telemetry: it must never block, deadlock or
// otherwise change the behavior of the instrumented program. Each goroutine
// owns a lazily created buffer; appending takes a non-blocking lock and
// drops the event on contention. Buffers spill to the sink synchronously
// once they exceed the spill threshold, trading an occasional I/O pause on
// the capturing goroutine for bounded memory.
//
// Usage:
//
//	func main() {
//		capture.Init()
//		defer capture.Shutdown()
//		...
//	}
//
//	func work() {
//		defer capture.BeginScope("work").End()
//		...
//	}
//
// Shutdown (or Flush) on the terminating goroutine drains every retained
// buffer, including buffers whose goroutine has long exited: the registry
// is process-wide state, so events from short-lived workers are not lost.
package capture

import (
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/montaglue/racy/internal/codec"
)

// registered is the process-wide "already initialized" flag. Init flips it
// exactly once; Shutdown clears it so a later Init starts a new session.
var registered atomic.Bool

var active atomic.Pointer[profiler]

type profiler struct {
	opts    Options
	session string
	sink    *sink
	log     *logrus.Logger

	mu      sync.RWMutex // guards buffers
	buffers map[uint64]*buffer

	recorded    atomic.Uint64
	dropped     atomic.Uint64
	spills      atomic.Uint64
	flushErrors atomic.Uint64
}

// buffer accumulates the events of a single goroutine. Only its owning
// goroutine appends; the exit flush is the one other reader.
type buffer struct {
	mu     sync.Mutex
	events []codec.Event
}

// Init initializes capture from the environment. The first call truncates
// the sink file and starts a session; subsequent calls are no-ops.
func Init() error {
	opts, err := loadOptions()
	if err != nil {
		return err
	}
	return InitWithOptions(opts)
}

// InitWithOptions is Init with explicit options.
func InitWithOptions(opts Options) error {
	if !registered.CompareAndSwap(false, true) {
		return nil
	}
	opts = normalize(opts)

	f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_TRUNC|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		registered.Store(false)
		return err
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if opts.Quiet {
		log.SetOutput(io.Discard)
	}

	p := &profiler{
		opts:    opts,
		session: uuid.New().String(),
		sink:    &sink{file: f},
		log:     log,
		buffers: make(map[uint64]*buffer),
	}
	active.Store(p)
	return nil
}

// SessionID returns the current capture session's id, or "" when capture
// is not initialized.
func SessionID() string {
	if p := active.Load(); p != nil {
		return p.session
	}
	return ""
}

// Scope is a timed interval bounded by BeginScope and End. End is safe to
// defer and is idempotent, so the elapsed time is captured on every exit
// path exactly once.
type Scope struct {
	id    uint64
	name  string
	start time.Time
	done  bool
}

// BeginScope starts timing a scope on the calling goroutine.
func BeginScope(name string) *Scope {
	return &Scope{
		id:    goid(),
		name:  name,
		start: time.Now(),
	}
}

// End stops the scope and emits its event. The event's timestamp is the
// scope's end time in epoch nanoseconds.
func (s *Scope) End() {
	if s == nil || s.done {
		return
	}
	s.done = true

	end := time.Now()
	record(codec.Event{
		ID:        s.id,
		Timestamp: uint64(end.UnixNano()),
		Duration:  uint64(end.Sub(s.start)),
		Name:      s.name,
	})
}

// record appends an event to the calling goroutine's buffer. Events are
// dropped silently when capture is not initialized or the buffer's guard
// is contended (re-entrant capture while the buffer is mid-spill).
func record(ev codec.Event) {
	p := active.Load()
	if p == nil {
		return
	}

	buf := p.bufferFor(ev.ID)
	if !buf.mu.TryLock() {
		p.dropped.Add(1)
		return
	}
	defer buf.mu.Unlock()

	buf.events = append(buf.events, ev)
	p.recorded.Add(1)

	if len(buf.events) > p.opts.SpillThreshold {
		p.spillLocked(buf)
	}
}

// spillLocked writes the buffer's contents to the sink. Caller holds the
// buffer lock. On write failure the events are retained so the next spill
// or the exit flush can try again; the buffer then grows past the
// threshold until a write succeeds.
func (p *profiler) spillLocked(buf *buffer) {
	p.spills.Add(1)
	if err := p.sink.append(codec.Encode(buf.events)); err != nil {
		p.flushErrors.Add(1)
		p.log.WithError(err).WithField("session", p.session).
			Error("racy: spill failed, events retained")
		return
	}
	buf.events = buf.events[:0]
}

func (p *profiler) bufferFor(id uint64) *buffer {
	p.mu.RLock()
	buf := p.buffers[id]
	p.mu.RUnlock()
	if buf != nil {
		return buf
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if buf = p.buffers[id]; buf == nil {
		buf = &buffer{events: make([]codec.Event, 0, p.opts.SpillThreshold)}
		p.buffers[id] = buf
	}
	return buf
}

// Flush drains every retained buffer to the sink, including buffers of
// goroutines that have already exited. Failures are reported and do not
// stop the remaining buffers from being flushed.
func Flush() error {
	if p := active.Load(); p != nil {
		return p.flush()
	}
	return nil
}

func (p *profiler) flush() error {
	p.mu.RLock()
	bufs := make([]*buffer, 0, len(p.buffers))
	for _, buf := range p.buffers {
		bufs = append(bufs, buf)
	}
	p.mu.RUnlock()

	var errs []error
	for _, buf := range bufs {
		buf.mu.Lock()
		if len(buf.events) > 0 {
			if err := p.sink.append(codec.Encode(buf.events)); err != nil {
				p.flushErrors.Add(1)
				p.log.WithError(err).WithField("session", p.session).
					Error("racy: flush failed, events retained")
				errs = append(errs, err)
			} else {
				buf.events = buf.events[:0]
			}
		}
		buf.mu.Unlock()
	}

	if err := p.sink.sync(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Shutdown flushes all buffers, closes the sink and ends the session. It
// is idempotent; a later Init starts a fresh session with a truncated
// sink. Call it (usually deferred from main) on the terminating goroutine.
func Shutdown() error {
	p := active.Swap(nil)
	if p == nil {
		return nil
	}
	err := p.flush()
	if cerr := p.sink.close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	registered.Store(false)
	return err
}

// Stats are cumulative counters for the current session. Dropped counts
// events lost to buffer contention, which is expected and non-fatal.
type Stats struct {
	Recorded    uint64
	Dropped     uint64
	Spills      uint64
	FlushErrors uint64
}

// GetStats returns the current session's counters.
func GetStats() Stats {
	p := active.Load()
	if p == nil {
		return Stats{}
	}
	return Stats{
		Recorded:    p.recorded.Load(),
		Dropped:     p.dropped.Load(),
		Spills:      p.spills.Load(),
		FlushErrors: p.flushErrors.Load(),
	}
}

// sink serializes appends to the log file. Each append is one contiguous
// write: the format has no record envelope, so record boundaries must
// never be split by a concurrent writer.
type sink struct {
	mu   sync.Mutex
	file *os.File
}

func (s *sink) append(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.file.Write(data)
	return err
}

func (s *sink) sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Sync()
}

func (s *sink) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
