// Package cache implements the two-tier snapshot cache: a durable Redis tier
// fronted by a process-local memory tier. Tier failures degrade to "absent";
// they never reach the request path.
package cache
