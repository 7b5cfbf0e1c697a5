// Package metrics defines Prometheus metrics for the ipranges service,
// covering upstream syncs, cache tier reads and writes, and rate-limit
// decisions.
package metrics
