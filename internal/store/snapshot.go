// Package store persists reconstructed views as compressed .racy snapshot
// files. A snapshot is a saved view artifact, separate from the append-only
// event log (which is never compressed).
//
// File layout: MagicHeader(8B) ++ payloadSize(4B LE) ++ zstd(payload),
// where payload is the JSON snapshot envelope.
package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/montaglue/racy/internal/flame"
)

// MagicHeader identifies a .racy snapshot file.
var MagicHeader = []byte("RACYVW1\x00")

var (
	ErrInvalidHeader = errors.New("store: invalid snapshot header")
	ErrTruncated     = errors.New("store: truncated snapshot")
)

// Snapshot wraps an EventLog with identity metadata for saved views.
type Snapshot struct {
	SnapshotID string          `json:"snapshot_id"`
	CreatedAt  int64           `json:"created_at"` // epoch nanoseconds
	Log        *flame.EventLog `json:"log"`
}

// Writer encodes snapshots to disk.
type Writer struct {
	encoder *zstd.Encoder
}

func NewWriter() (*Writer, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	return &Writer{encoder: enc}, nil
}

// Write saves the log to filename as a new snapshot and returns its id.
func (w *Writer) Write(filename string, log *flame.EventLog) (string, error) {
	snap := Snapshot{
		SnapshotID: uuid.New().String(),
		CreatedAt:  time.Now().UnixNano(),
		Log:        log,
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	compressed := w.encoder.EncodeAll(payload, make([]byte, 0, len(payload)))

	f, err := os.Create(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := f.Write(MagicHeader); err != nil {
		return "", err
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(compressed))); err != nil {
		return "", err
	}
	if _, err := f.Write(compressed); err != nil {
		return "", err
	}
	return snap.SnapshotID, f.Sync()
}

// Reader decodes snapshots from disk.
type Reader struct {
	decoder *zstd.Decoder
}

func NewReader() (*Reader, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &Reader{decoder: dec}, nil
}

// Read loads a snapshot written by Writer.Write.
func (r *Reader) Read(filename string) (*Snapshot, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header := make([]byte, len(MagicHeader))
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	if !bytes.Equal(header, MagicHeader) {
		return nil, ErrInvalidHeader
	}

	var size uint32
	if err := binary.Read(f, binary.LittleEndian, &size); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	compressed := make([]byte, size)
	if _, err := io.ReadFull(f, compressed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}

	payload, err := r.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("store: decompress: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("store: decode payload: %w", err)
	}
	if snap.Log == nil {
		return nil, errors.New("store: snapshot has no event log")
	}
	return &snap, nil
}
