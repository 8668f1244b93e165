// Package prometheus renders engine counters in the Prometheus text
// exposition format.
//
// Counters are grouped into families such as sessionauth_logins_total with an
// outcome label. The exporter never registers with a global registry: mount
// [Exporter.Handler] where you need it.
package prometheus
