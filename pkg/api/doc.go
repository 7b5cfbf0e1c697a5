// Package api implements the HTTP API server (Gin-based) for the ipranges
// service, wiring request logging, panic recovery, request correlation IDs,
// the Prometheus metrics endpoint and the health probe around registered
// controllers.
package api
