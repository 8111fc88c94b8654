// Package codec implements the binary event-log wire format.
//
// A log file is a bare concatenation of records with no header, count or
// footer, so independent writers can append disjoint chunks safely:
//
//	record := id(8B BE) ++ timestamp(16B BE) ++ duration(8B BE) ++
//	          nameLen(4B BE) ++ name(nameLen bytes, UTF-8)
//
// Record boundaries come entirely from strict sequential parsing, which is
// why every append to a log file must be a single contiguous write.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"
)

// FileName is the fixed name of the default log file inside the OS temp dir.
const FileName = "racy_output.bin"

// fixedSize is the byte size of one record excluding the name payload.
const fixedSize = 8 + 16 + 8 + 4

var (
	// ErrTruncated reports an input that ends mid-record.
	ErrTruncated = errors.New("codec: truncated record")
	// ErrInvalidName reports a name payload that is not valid UTF-8.
	ErrInvalidName = errors.New("codec: event name is not valid UTF-8")
	// ErrTimestampRange reports a timestamp wider than 64 bits. The wire
	// format reserves 16 bytes; in-memory events hold epoch nanoseconds in
	// a uint64, which covers timestamps until the year 2554.
	ErrTimestampRange = errors.New("codec: timestamp exceeds 64-bit range")
)

// Event is one completed scope as captured at runtime. Immutable once
// created; exactly one Event is produced per completed scope.
type Event struct {
	ID        uint64 // thread identifier
	Timestamp uint64 // absolute epoch nanoseconds of the scope end
	Duration  uint64 // elapsed nanoseconds
	Name      string
}

// Encode serializes events into the wire format, one record each, in order.
func Encode(events []Event) []byte {
	size := 0
	for i := range events {
		size += fixedSize + len(events[i].Name)
	}
	buf := make([]byte, 0, size)

	for i := range events {
		ev := &events[i]
		buf = binary.BigEndian.AppendUint64(buf, ev.ID)
		// High half of the 128-bit timestamp field is always zero.
		buf = binary.BigEndian.AppendUint64(buf, 0)
		buf = binary.BigEndian.AppendUint64(buf, ev.Timestamp)
		buf = binary.BigEndian.AppendUint64(buf, ev.Duration)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(ev.Name)))
		buf = append(buf, ev.Name...)
	}
	return buf
}

// Decode parses a concatenation of records starting at offset 0. Any short
// field, including a short name payload, fails the whole input: there is no
// resynchronization past a bad record. Empty input decodes to an empty
// sequence.
func Decode(data []byte) ([]Event, error) {
	var events []Event
	pos := 0

	for pos < len(data) {
		if len(data)-pos < fixedSize {
			return nil, fmt.Errorf("%w at offset %d", ErrTruncated, pos)
		}

		id := binary.BigEndian.Uint64(data[pos:])
		hi := binary.BigEndian.Uint64(data[pos+8:])
		ts := binary.BigEndian.Uint64(data[pos+16:])
		dur := binary.BigEndian.Uint64(data[pos+24:])
		nameLen := int(binary.BigEndian.Uint32(data[pos+32:]))
		pos += fixedSize

		if hi != 0 {
			return nil, fmt.Errorf("%w at offset %d", ErrTimestampRange, pos-fixedSize)
		}
		if len(data)-pos < nameLen {
			return nil, fmt.Errorf("%w at offset %d", ErrTruncated, pos)
		}
		name := data[pos : pos+nameLen]
		pos += nameLen

		if !utf8.Valid(name) {
			return nil, fmt.Errorf("%w at offset %d", ErrInvalidName, pos-nameLen)
		}

		events = append(events, Event{
			ID:        id,
			Timestamp: ts,
			Duration:  dur,
			Name:      string(name),
		})
	}

	return events, nil
}

// DefaultPath returns the default log file location.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), FileName)
}

// ReadFile reads and decodes an entire log file.
func ReadFile(path string) ([]Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
