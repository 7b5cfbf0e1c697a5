// Package snapshot defines the versioned snapshot model for the upstream
// IP-ranges document: parsing, validation, and version metadata used by the
// cache and sync layers.
package snapshot
