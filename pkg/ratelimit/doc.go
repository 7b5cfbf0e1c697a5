// Package ratelimit provides per-client fixed-window rate limiting middleware
// for Gin HTTP servers, with a pluggable exemption heuristic for internal
// callers and automatic stale-window cleanup.
package ratelimit
