// Package events publishes sync-outcome events to an optional Kafka topic so
// that refreshes of the dataset can be observed outside the process. When no
// broker is configured a no-op sink is used.
package events
