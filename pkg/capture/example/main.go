// A small instrumented workload demonstrating the capture API under
// concurrency. Run it, then inspect the log with `racy dump` or
// `racy summary`.
package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/montaglue/racy/pkg/capture"
)

func cpuIntensiveWork(n uint64) uint64 {
	defer capture.BeginScope("cpu_intensive_work").End()

	var sum uint64
	for i := uint64(0); i < n; i++ {
		sum += i * i
		sum %= 1_000_000_007
	}
	return sum
}

func ioSimulation(d time.Duration) {
	defer capture.BeginScope("io_simulation").End()
	time.Sleep(d)
}

func memoryWork(size int) []int {
	defer capture.BeginScope("memory_work").End()

	vec := make([]int, 0, size)
	for i := 0; i < size; i++ {
		vec = append(vec, i*2)
	}
	return vec
}

func mixedTask(i int) {
	defer capture.BeginScope("mixed_task").End()

	_ = cpuIntensiveWork(10_000)
	_ = memoryWork(1_000)
	ioSimulation(5 * time.Millisecond)
	_ = i
}

func main() {
	if err := capture.Init(); err != nil {
		fmt.Println("capture init failed:", err)
		return
	}
	defer capture.Shutdown()

	fmt.Println("session:", capture.SessionID())

	// Parallel CPU-bound scopes.
	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(n uint64) {
			defer wg.Done()
			_ = cpuIntensiveWork(n * 50_000)
		}(uint64(i))
	}
	wg.Wait()

	// Parallel I/O-bound scopes on short-lived goroutines; their buffers
	// are drained by the exit flush.
	for _, d := range []time.Duration{10, 20, 15, 8, 30, 12} {
		wg.Add(1)
		go func(d time.Duration) {
			defer wg.Done()
			ioSimulation(d * time.Millisecond)
		}(d)
	}
	wg.Wait()

	// Mixed nested workload.
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			mixedTask(i)
		}(i)
	}
	wg.Wait()

	stats := capture.GetStats()
	fmt.Printf("recorded=%d dropped=%d spills=%d flushErrors=%d\n",
		stats.Recorded, stats.Dropped, stats.Spills, stats.FlushErrors)
}
