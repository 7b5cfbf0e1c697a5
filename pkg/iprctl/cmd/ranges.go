package cmd

import (
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/cloudprefix/ipranges/pkg/snapshot"
)

func newRangesCommand(rt *runtimeState) *cobra.Command {
	var region, service, family string

	cmd := &cobra.Command{
		Use:   "ranges",
		Short: "Fetch the IP-ranges dataset",
		RunE: func(_ *cobra.Command, _ []string) error {
			q := url.Values{}
			if region != "" {
				q.Set("region", region)
			}
			if service != "" {
				q.Set("service", service)
			}
			if family != "" {
				q.Set("family", family)
			}
			path := "/api/ip-ranges"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			var doc snapshot.Document
			if err := rt.doJSON(http.MethodGet, path, &doc); err != nil {
				return err
			}
			return rt.printJSON(doc)
		},
	}

	cmd.Flags().StringVar(&region, "region", "", "filter by region")
	cmd.Flags().StringVar(&service, "service", "", "filter by service")
	cmd.Flags().StringVar(&family, "family", "", "filter by address family (ipv4 or ipv6)")

	return cmd
}
