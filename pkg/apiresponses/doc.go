// Package apiresponses provides standardized HTTP API response helpers
// (error, not-found, not-ready, etc.) shared between api and ipranges
// packages without import cycles.
package apiresponses
