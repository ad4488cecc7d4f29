// Package loader implements the duty-cycle CPU load generation engine.
//
// A Pool owns a set of Workers indexed 0..N-1. Each Worker runs its own
// goroutine repeating a fixed-length cycle: compute for load*cycleTime,
// then sleep for the remainder. Dialing a worker's load between 0 and 100
// percent approximates that CPU utilization on one core.
//
// # Basic Usage
//
//	pool := loader.New()
//	if err := pool.Initialize(4); err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Shutdown()
//
//	// Drive worker 0 to 75% of one core
//	if err := pool.SetThreadLoad(0, 75); err != nil {
//	    log.Fatal(err)
//	}
//
// # Pool Generations
//
// Initialize fully tears down any previous generation (stop and join all
// workers) before spawning the new one, so two generations never run
// concurrently. Shutdown is idempotent.
//
// # Locking
//
// Two levels of shared state exist: the pool shape, guarded by the pool
// lock, and each worker's load and computation type, guarded by that
// worker's own lock. Acquisition order is always pool then worker. No lock
// is held across a compute or sleep phase, so control calls never block
// behind a worker's busy-work.
//
// # Errors
//
// Control operations fail with ErrInvalidArgument wraps on out-of-range
// input and ErrRuntimeFailure wraps when a worker cannot be started; a
// rejected call mutates nothing. If a worker fails to start mid
// initialization, the already-started workers are rolled back and the pool
// is left empty.
package loader
