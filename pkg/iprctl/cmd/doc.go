// Package cmd implements the iprctl command-line interface for operating a
// running ipranges server: dataset reads, status inspection, and manual sync
// triggering.
package cmd
