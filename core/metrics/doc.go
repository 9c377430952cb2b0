// Package metrics defines the sinks that record what the client engine does:
// reduced messages, gateway command outcomes, channel connectivity and the
// size of the rendered scene. Implementations (Prometheus, InfluxDB) live in
// infra/metrics and register themselves with RegisterSink; NewSink returns a
// MultiSink when several are configured.
package metrics
