/*
Package memory keeps image derivation inside the container's memory budget.

# Runtime Limit

ApplyLimit sets GOMEMLIMIT from the container limit so the garbage
collector works harder before the kernel steps in:

	env:
	- name: MEMORY_LIMIT
	  valueFrom:
	    resourceFieldRef:
	      resource: limits.memory
	- name: MEMORY_RATIO
	  value: "0.85"

An explicit GOMEMLIMIT always takes precedence.

# Backpressure

Monitor samples the heap every few seconds. Once usage reaches the pause
mark, Wait blocks new derivations until usage drops below the resume mark.
Jobs that already started are never interrupted. The worker pool calls
Wait before taking a slot:

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()
	defer monitor.Stop()
	pool.SetGate(monitor)

Without any limit the monitor stays disabled and Wait returns immediately.

# Metrics

	collector_memory_usage_ratio         last sampled usage
	collector_memory_derivation_paused   1 while paused
	collector_memory_pauses_total        pause transitions
*/
package memory
