package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opendataplatform/registry/common/schema"
)

// errInvalidDocument signals a failed validation after the report is printed
var errInvalidDocument = errors.New("document is not valid")

func newSchemaCmd() *cobra.Command {
	var manifest string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect the schema catalog",
	}

	defaultManifest := os.Getenv("SCHEMA_MANIFEST")
	if defaultManifest == "" {
		defaultManifest = "schemas/manifest.yaml"
	}
	cmd.PersistentFlags().StringVarP(&manifest, "manifest", "m", defaultManifest, "Schema catalog manifest")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the schemas in the catalog",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSchemaList(cmd, manifest)
			},
		},
		&cobra.Command{
			Use:   "validate <tag|vocabulary|metadata> <schema-id> <file>",
			Short: "Validate a JSON or YAML document against a catalog schema",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSchemaValidate(cmd, manifest, schema.Type(args[0]), args[1], args[2])
			},
		},
	)

	return cmd
}

func runSchemaList(cmd *cobra.Command, manifest string) error {
	registry, err := schema.Load(manifest)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tID\tURI")
	for _, e := range registry.Entries() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Type, e.ID, e.URI)
	}
	return w.Flush()
}

func runSchemaValidate(cmd *cobra.Command, manifest string, typ schema.Type, id, path string) error {
	registry, err := schema.Load(manifest)
	if err != nil {
		return err
	}

	doc, err := readDocument(path)
	if err != nil {
		return err
	}

	validity, err := registry.Validate(cmd.Context(), typ, id, doc)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if validity.Valid {
		fmt.Fprintf(out, "%s: valid against %s %s\n", path, typ, id)
		return nil
	}

	fmt.Fprintf(out, "%s: invalid against %s %s\n", path, typ, id)
	for _, e := range validity.Errors {
		loc := e.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		fmt.Fprintf(out, "  %s: %s\n", loc, e.Error)
	}
	return errInvalidDocument
}

func readDocument(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &doc)
	default:
		err = json.Unmarshal(raw, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc, nil
}
