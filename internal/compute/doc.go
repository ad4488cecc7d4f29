// Package compute provides time-bounded CPU load computations.
//
// Each Type burns approximately a requested wall-clock duration performing
// a representative kind of busy-work. The elapsed time is re-checked after
// every small fixed batch of operations, so the overrun beyond the
// requested duration is bounded by the cost of one batch.
//
// # Computation Types
//
//   - BusyWait: tight spin with no useful work
//   - Series: alternating numeric series accumulation (floating-point churn)
//   - Primes: trial division over an odometer of candidate integers
//   - Matrix: repeated 4x4 matrix multiply-accumulate
//   - Light: cheap scalar accumulation with periodic microsecond pauses
//
// # Basic Usage
//
//	t, err := compute.Parse("primes")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	t.RunFor(10 * time.Millisecond)
//
// The numerical results are discarded; a package-level sink prevents the
// compiler from eliminating the work.
package compute
