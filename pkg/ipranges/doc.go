// Package ipranges exposes the IP-ranges dataset over HTTP: the gated read
// endpoint, the diagnostic status endpoint, and the operational sync and
// cache-clear controls.
package ipranges
