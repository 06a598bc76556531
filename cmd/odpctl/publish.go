package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opendataplatform/registry/cmd/registry/container"
	"github.com/opendataplatform/registry/cmd/registry/service"
	"github.com/opendataplatform/registry/common/bootstrap"
)

func newPublishCmd() *cobra.Command {
	var (
		catalogID string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish records to catalogs",
		Long: "Evaluates every record against the catalog rules, stores the resulting " +
			"catalog records and syncs changes to external catalogs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd, catalogID, asJSON)
		},
	}

	cmd.Flags().StringVarP(&catalogID, "catalog", "c", "", "Publish only this catalog")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	return cmd
}

func runPublish(cmd *cobra.Command, catalogID string, asJSON bool) error {
	ctx := cmd.Context()

	components, err := bootstrap.Setup(ctx, "odpctl", bootstrap.WithoutTelemetry())
	if err != nil {
		return fmt.Errorf("bootstrapping: %w", err)
	}
	defer components.Shutdown(ctx)

	c, err := container.NewContainer(components)
	if err != nil {
		return fmt.Errorf("building services: %w", err)
	}

	var results []*service.PublishResult
	if catalogID != "" {
		result, err := c.Publisher.Publish(ctx, catalogID)
		if err != nil {
			return fmt.Errorf("publishing %s: %w", catalogID, err)
		}
		results = append(results, result)
	} else {
		results, err = c.Publisher.PublishAll(ctx)
		if err != nil {
			return fmt.Errorf("publishing: %w", err)
		}
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	return printResults(cmd.OutOrStdout(), results)
}

func printResults(out io.Writer, results []*service.PublishResult) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CATALOG\tEVALUATED\tPUBLISHED\tUNPUBLISHED\tUNCHANGED\tFAILED\tSYNCED\tSYNC FAILED")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			r.CatalogID, r.Evaluated, r.Published, r.Unpublished, r.Unchanged, r.Failed, r.Synced, r.SyncFailed)
	}
	return w.Flush()
}
