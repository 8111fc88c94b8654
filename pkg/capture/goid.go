package capture

import (
	"bytes"
	"runtime"
	"strconv"
)

var goroutinePrefix = []byte("goroutine ")

// goid returns the calling goroutine's id, parsed from the first line of
// runtime.Stack output ("goroutine 123 [running]:"). Goroutine ids are
// never reused within a process, which makes them stable keys for the
// buffer registry.
func goid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	line := buf[:n]
	if !bytes.HasPrefix(line, goroutinePrefix) {
		return 0
	}
	line = line[len(goroutinePrefix):]
	end := bytes.IndexByte(line, ' ')
	if end < 0 {
		return 0
	}
	id, err := strconv.ParseUint(string(line[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
