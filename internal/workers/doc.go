/*
Package workers sizes and bounds the background work of the collector
service, chiefly image derivation.

# Sizing

runtime.NumCPU reports host CPUs, not the container's share. The helpers
here use GOMAXPROCS, which Go 1.19+ sets from cgroup CPU limits:

	workers.ForCPU(8)      // one per CPU, at most 8
	workers.Count(0.5, 4)  // one per two CPUs, at most 4

A positive DERIVE_WORKERS pins the count; startup resolves it with:

	workers.Resolve(cfg.DeriveWorkers, 8)

# Bounded Pool

Pool wraps a weighted semaphore from golang.org/x/sync so that CPU-bound
jobs never exceed the computed worker count:

	pool := workers.NewPool(workers.ForCPU(8), metrics.DeriveWorkersBusy)
	err := pool.Do(ctx, func() error {
		_, err := engine.Derive(data, dir, name)
		return err
	})

SetGate adds a check before the slot wait; the server gates on the
memory monitor. Waiting for a slot honors ctx. A job that has started is never interrupted,
so an upload that begins derivation always runs to completion or failure.
*/
package workers
