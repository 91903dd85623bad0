package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/libreary/libreary/internal/cli/output"
)

var infoCmd = &cobra.Command{
	Use:   "info <uuid>",
	Short: "Show a resource and the state of its copies",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, _, err := openArchive(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	r, err := a.GetResourceInfo(ctx, args[0])
	if err != nil {
		return err
	}

	_ = output.SimpleTable(os.Stdout, [][2]string{
		{"UUID", r.UUID},
		{"Filename", r.Filename},
		{"Checksum", r.Checksum},
		{"Levels", strings.Join(r.LevelNames(), ",")},
		{"Canonical locator", r.CanonicalLocator},
		{"Description", r.Description},
	})

	statuses, err := a.SummarizeCopies(ctx, r.UUID)
	if err != nil {
		return err
	}

	fmt.Println()
	table := output.NewTableData("ADAPTER", "TYPE", "CANONICAL", "CHECKSUM", "MATCHES")
	for _, s := range statuses {
		table.AddRow(s.Adapter, s.Type,
			fmt.Sprintf("%t", s.Canonical), s.Checksum, fmt.Sprintf("%t", s.Matches))
	}
	return output.PrintTable(os.Stdout, table)
}
