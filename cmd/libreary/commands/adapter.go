package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/libreary/libreary/internal/cli/output"
	"github.com/libreary/libreary/pkg/adapter"
)

var adapterCmd = &cobra.Command{
	Use:   "adapter",
	Short: "Manage storage adapters (list, verify)",
}

var adapterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured adapters",
	Args:  cobra.NoArgs,
	RunE:  runAdapterList,
}

var adapterVerifyCmd = &cobra.Command{
	Use:   "verify <id>",
	Short: "Probe an adapter with a synthetic store/retrieve/delete cycle",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdapterVerify,
}

func init() {
	adapterCmd.AddCommand(adapterListCmd)
	adapterCmd.AddCommand(adapterVerifyCmd)
}

func runAdapterList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, cfg, err := openArchive(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	table := output.NewTableData("ID", "TYPE", "CANONICAL")
	for _, ac := range cfg.Adapters {
		table.AddRow(ac.ID, ac.Type, fmt.Sprintf("%t", ac.ID == cfg.CanonicalAdapter))
	}
	if err := output.PrintTable(os.Stdout, table); err != nil {
		return err
	}

	fmt.Printf("\nRegistered backend types: %s\n", strings.Join(adapter.RegisteredTypes(), ", "))
	return nil
}

func runAdapterVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, _, err := openArchive(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.VerifyAdapter(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Adapter %s verified\n", args[0])
	return nil
}
