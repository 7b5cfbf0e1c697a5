// Package syncer keeps the cached IP-ranges snapshot fresh: it fetches the
// upstream document, compares version metadata against the cache, and writes
// a new snapshot only on change or staleness. Runs are single-flight and
// fetch failures never propagate out of the controller.
package syncer
