package parallel

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// Workers reports the default number of concurrent workers: one per logical
// core as reported by cpuid, or runtime.NumCPU when cpuid cannot tell.
func Workers() int {
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}
