package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cloudprefix/ipranges/pkg/version"
)

func newVersionCommand(rt *runtimeState) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print iprctl build information",
		RunE: func(_ *cobra.Command, _ []string) error {
			return rt.printJSON(version.GetBuildInfo())
		},
	}
}
