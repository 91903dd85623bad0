package commands

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/libreary/libreary/internal/cli/output"
	"github.com/libreary/libreary/pkg/catalog"
)

var searchOutput string

var searchCmd = &cobra.Command{
	Use:   "search [term]",
	Short: "List resources, optionally filtered by a search term",
	Long: `List the resources in the archive. With a term, match filenames,
locators, UUIDs, and descriptions.

Examples:
  # List everything
  libreary search

  # Find by description or filename
  libreary search thesis

  # Machine-readable output
  libreary search --output json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchOutput, "output", "o", "table", "Output format: table, json, yaml")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, _, err := openArchive(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var resources []*catalog.Resource
	if len(args) == 1 {
		resources, err = a.Search(ctx, args[0])
	} else {
		resources, err = a.ListResources(ctx)
	}
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(searchOutput)
	if err != nil {
		return err
	}
	if format != output.FormatTable {
		return output.NewPrinter(os.Stdout, format).Print(resources)
	}

	table := output.NewTableData("UUID", "FILENAME", "LEVELS", "CHECKSUM", "DESCRIPTION")
	for _, r := range resources {
		table.AddRow(r.UUID, r.Filename, strings.Join(r.LevelNames(), ","), r.Checksum, r.Description)
	}
	return output.PrintTable(os.Stdout, table)
}
