// Package metrics collects per-worker utilization statistics.
//
// Workers report the busy time of each completed duty cycle; the Collector
// aggregates those into windowed achieved-load percentages and exposes
// everything through a dedicated Prometheus registry.
//
// # Basic Usage
//
//	c := metrics.New()
//	c.Reset(4) // four workers
//
//	// from a worker's cycle loop
//	c.RecordCycle(workerID, busyTime)
//
//	// from a monitoring loop
//	achieved := c.Achieved() // percent per worker since last call
//
// # Windowed Measurement
//
// Achieved() advances a measurement window per worker: each call reports
// the busy-time fraction accumulated since the previous call, mirroring
// how windowed rates are usually sampled. The very first call therefore
// covers the time since Reset.
//
// # Prometheus
//
// Handler() serves the collector's own registry, which carries target and
// achieved load gauges, a per-worker cycle counter, and a system CPU gauge
// sampled via gopsutil.
package metrics
