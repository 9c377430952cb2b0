// Package infra holds the adapters around the dispatch core: the HTTP
// command gateway, the event channel transports, render surfaces, metrics
// sinks and the observability plumbing. Adapters depend on core types; the
// core never imports infra.
package infra
