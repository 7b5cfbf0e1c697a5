package cmd

import (
	"net/http"

	"github.com/spf13/cobra"
)

func newStatusCommand(rt *runtimeState) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show cache, sync and rate-limit status",
		RunE: func(_ *cobra.Command, _ []string) error {
			var status map[string]interface{}
			if err := rt.doJSON(http.MethodGet, "/api/ip-ranges/status", &status); err != nil {
				return err
			}
			return rt.printJSON(status)
		},
	}
}
