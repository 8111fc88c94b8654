// Package view saves and restores a reconstructed EventLog as JSON. Field
// names and nesting round-trip exactly, so a view written by one tool run
// can be reloaded by another (or by an external renderer) without loss.
package view

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/valyala/fastjson"

	"github.com/montaglue/racy/internal/flame"
)

// ErrNotAView reports input whose top-level shape is not an exported view.
var ErrNotAView = errors.New("view: input is not an exported event log")

var parsers fastjson.ParserPool

// Export serializes the log to indented JSON.
func Export(log *flame.EventLog) ([]byte, error) {
	return json.MarshalIndent(log, "", "  ")
}

// WriteFile exports the log to path, replacing any previous file.
func WriteFile(path string, log *flame.EventLog) error {
	data, err := Export(log)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Import restores an EventLog from exported JSON.
func Import(data []byte) (*flame.EventLog, error) {
	p := parsers.Get()
	defer parsers.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("view: %w", err)
	}
	if v.Type() != fastjson.TypeObject {
		return nil, ErrNotAView
	}

	threadsVal := v.Get("threads")
	if threadsVal == nil || threadsVal.Type() != fastjson.TypeObject {
		return nil, fmt.Errorf("%w: missing threads object", ErrNotAView)
	}
	threadsObj, _ := threadsVal.Object()

	log := &flame.EventLog{
		StartTime:     v.GetUint64("start_time"),
		TotalDuration: v.GetUint64("total_duration"),
		Threads:       map[uint64]*flame.Thread{},
	}

	var visitErr error
	threadsObj.Visit(func(key []byte, tv *fastjson.Value) {
		if visitErr != nil {
			return
		}
		id, err := strconv.ParseUint(string(key), 10, 64)
		if err != nil {
			visitErr = fmt.Errorf("view: bad thread key %q: %w", key, err)
			return
		}

		th := &flame.Thread{ID: tv.GetUint64("id")}
		for _, sv := range tv.GetArray("spans") {
			th.Spans = append(th.Spans, flame.Span{
				ID:        sv.GetUint64("id"),
				Duration:  sv.GetUint64("duration"),
				Timestamp: sv.GetUint64("timestamp"),
				Depth:     sv.GetUint64("depth"),
				Name:      string(sv.GetStringBytes("name")),
			})
		}
		log.Threads[id] = th
	})
	if visitErr != nil {
		return nil, visitErr
	}

	return log, nil
}

// ReadFile imports an EventLog from a JSON view file.
func ReadFile(path string) (*flame.EventLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Import(data)
}
