package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func newSyncCommand(rt *runtimeState) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Trigger a sync against the upstream dataset",
		RunE: func(_ *cobra.Command, _ []string) error {
			var res struct {
				Success bool   `json:"success"`
				Message string `json:"message"`
			}
			if err := rt.doJSON(http.MethodPost, "/api/ip-ranges/sync", &res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("sync failed: %s", res.Message)
			}
			fmt.Fprintln(rt.writer, res.Message)
			return nil
		},
	}
}
