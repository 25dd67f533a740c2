package sched

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/mem"
)

// Sizing constants for DefaultMaxWorkers. A decoded photo plus scaling
// buffers peaks around a quarter GiB for typical camera resolutions.
const (
	bytesPerWorker    = 256 << 20
	absoluteWorkerCap = 32
)

// DefaultMaxWorkers derives a concurrency ceiling from CPU count and
// available memory. When memory stats are unavailable the CPU count alone
// decides. Never below 1, never above absoluteWorkerCap.
func DefaultMaxWorkers() int {
	n := runtime.NumCPU()
	if vm, err := mem.VirtualMemory(); err == nil {
		byMem := int(vm.Available / bytesPerWorker)
		if byMem < n {
			n = byMem
		}
	}
	if n < 1 {
		n = 1
	}
	if n > absoluteWorkerCap {
		n = absoluteWorkerCap
	}
	return n
}
