package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opendataplatform/registry/common/clients"
	"github.com/opendataplatform/registry/common/config"
	"github.com/opendataplatform/registry/common/logger"
)

func newDataCiteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datacite",
		Short: "Inspect DOIs registered on DataCite",
	}

	var pageSize, pageNum int
	list := &cobra.Command{
		Use:   "list",
		Short: "List DOIs under the configured prefix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dataciteClient()
			if err != nil {
				return err
			}

			page, err := client.ListDOIs(cmd.Context(), pageSize, pageNum)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DOI\tURL")
			for _, r := range page.Records {
				fmt.Fprintf(w, "%s\t%s\n", r.DOI, r.URL)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\npage %d of %d (%d DOIs)\n", page.ThisPage, page.TotalPages, page.TotalRecords)
			return nil
		},
	}
	list.Flags().IntVar(&pageSize, "page-size", 25, "DOIs per page")
	list.Flags().IntVar(&pageNum, "page", 1, "Page number")

	get := &cobra.Command{
		Use:   "get <doi>",
		Short: "Show the metadata registered for a DOI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dataciteClient()
			if err != nil {
				return err
			}

			rec, err := client.GetDOI(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "DOI: %s\nURL: %s\n", rec.DOI, rec.URL)
			if title := firstTitle(rec.Metadata); title != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Title: %s\n", title)
			}
			return nil
		},
	}

	cmd.AddCommand(list, get)
	return cmd
}

func dataciteClient() (*clients.DataCiteClient, error) {
	cfg, err := config.Load("odpctl")
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.Catalog.DataCiteUsername == "" {
		return nil, fmt.Errorf("DATACITE_USERNAME is not set")
	}

	log := logger.New(cfg.Service.LogLevel, cfg.Service.LogFormat)
	return clients.NewDataCiteClient(
		cfg.Catalog.DataCiteURL,
		cfg.Catalog.DOIPrefix,
		cfg.Catalog.DataCiteUsername,
		cfg.Catalog.DataCitePassword,
		cfg.Catalog.DataCiteTimeout,
		log,
	), nil
}

func firstTitle(metadata map[string]any) string {
	titles, _ := metadata["titles"].([]any)
	if len(titles) == 0 {
		return ""
	}
	first, _ := titles[0].(map[string]any)
	title, _ := first["title"].(string)
	return title
}
