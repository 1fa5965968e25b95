package workers

import "runtime"

// Count scales the schedulable CPUs by perCPU and clamps the result to
// [1, limit]. A limit of 0 means no cap.
//
// GOMAXPROCS follows the container CPU quota on Go 1.19+, unlike
// runtime.NumCPU which reports the host.
func Count(perCPU float64, limit int) int {
	n := int(float64(runtime.GOMAXPROCS(0)) * perCPU)
	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}

// ForCPU returns one worker per CPU, capped at limit. Derivation is
// decode/resize/encode work, so more workers than CPUs only adds memory.
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// Resolve returns configured when it is positive and ForCPU(limit) otherwise.
func Resolve(configured, limit int) int {
	if configured > 0 {
		return configured
	}
	return ForCPU(limit)
}
