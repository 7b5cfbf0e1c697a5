package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Config seeds the root command.
type Config struct {
	Server       string
	OutputWriter io.Writer
}

type runtimeState struct {
	server string
	writer io.Writer
}

// DefaultConfig returns the standard CLI configuration.
func DefaultConfig() Config {
	return Config{
		Server:       "http://localhost:8080",
		OutputWriter: os.Stdout,
	}
}

// NewRootCommand builds the iprctl root command.
func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{server: cfg.Server, writer: cfg.OutputWriter}

	root := &cobra.Command{
		Use:           "iprctl",
		Short:         "IP-ranges service CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if env := os.Getenv("IPRCTL_SERVER"); env != "" {
				rt.server = env
			}
		},
	}

	root.PersistentFlags().StringVar(&rt.server, "server", rt.server, "base URL of the ipranges server")

	root.AddCommand(
		newStatusCommand(rt),
		newSyncCommand(rt),
		newRangesCommand(rt),
		newVersionCommand(rt),
	)

	return root
}
