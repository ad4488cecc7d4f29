// Package publisher periodically publishes load settings and CPU metrics
// to an MQTT broker.
//
// Two topics are used under a configurable prefix:
//
//   - {prefix}/load_settings: current per-worker targets, published with
//     QoS 1 and the retain flag so late subscribers see the latest state
//   - {prefix}/cpu_metrics: achieved per-worker load and system CPU,
//     published with QoS 0
//
// # Basic Usage
//
//	cfg := publisher.DefaultConfig()
//	cfg.Broker = "tcp://localhost:1883"
//
//	pub := publisher.New(pool, collector, cfg)
//	if err := pub.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer pub.Stop()
//
// Publishing is best-effort: a lost broker connection is logged and
// retried by the client's auto-reconnect, never surfaced to the load
// generation engine.
package publisher
