// Package config handles service configuration loading from YAML files,
// including defaults and startup validation for the server, upstream source,
// cache tiers, sync scheduling, rate limiting, events and telemetry.
package config
