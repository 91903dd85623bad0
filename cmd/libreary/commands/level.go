package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/libreary/libreary/internal/cli/output"
	"github.com/libreary/libreary/pkg/catalog"
)

var levelCmd = &cobra.Command{
	Use:   "level",
	Short: "Manage durability levels (add, list, delete, set)",
}

var (
	levelAdapters  []string
	levelFrequency time.Duration
	levelCopies    int
)

var levelAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a durability level",
	Long: `Add a durability level. Each --adapter takes an id:type pair naming
a storage adapter the level replicates to.

Examples:
  libreary level add LOW --adapter local2:local
  libreary level add HIGH --adapter local2:local --adapter offsite:s3 --frequency 24h`,
	Args: cobra.ExactArgs(1),
	RunE: runLevelAdd,
}

var levelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List durability levels",
	Args:  cobra.NoArgs,
	RunE:  runLevelList,
}

var levelDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a durability level",
	Long: `Delete a level definition and strip it from every resource that
carries it. Copies already stored are not withdrawn.`,
	Args: cobra.ExactArgs(1),
	RunE: runLevelDelete,
}

var levelSetCmd = &cobra.Command{
	Use:   "set <uuid> <level> [level...]",
	Short: "Change a resource's level assignment",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runLevelSet,
}

func init() {
	levelAddCmd.Flags().StringArrayVar(&levelAdapters, "adapter", nil, "Adapter as id:type (repeatable, required)")
	levelAddCmd.Flags().DurationVar(&levelFrequency, "frequency", 24*time.Hour, "Advisory check frequency")
	levelAddCmd.Flags().IntVar(&levelCopies, "copies", 1, "Copies per adapter")
	_ = levelAddCmd.MarkFlagRequired("adapter")

	levelCmd.AddCommand(levelAddCmd)
	levelCmd.AddCommand(levelListCmd)
	levelCmd.AddCommand(levelDeleteCmd)
	levelCmd.AddCommand(levelSetCmd)
}

func runLevelAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, _, err := openArchive(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	refs := make([]catalog.AdapterRef, 0, len(levelAdapters))
	for _, spec := range levelAdapters {
		id, adapterType, ok := strings.Cut(spec, ":")
		if !ok || id == "" || adapterType == "" {
			return fmt.Errorf("invalid adapter spec %q (want id:type)", spec)
		}
		refs = append(refs, catalog.AdapterRef{ID: id, Type: adapterType})
	}

	name := strings.ToUpper(args[0])
	if err := a.AddLevel(ctx, name, int(levelFrequency.Seconds()), levelCopies, refs); err != nil {
		return err
	}
	fmt.Printf("Level %s created\n", name)
	return nil
}

func runLevelList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, _, err := openArchive(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	levels, err := a.ListLevels(ctx)
	if err != nil {
		return err
	}

	table := output.NewTableData("NAME", "FREQUENCY", "COPIES", "ADAPTERS")
	for _, l := range levels {
		refs, err := l.AdapterRefs()
		if err != nil {
			return err
		}
		specs := make([]string, 0, len(refs))
		for _, ref := range refs {
			specs = append(specs, ref.ID+":"+ref.Type)
		}
		table.AddRow(l.Name,
			(time.Duration(l.Frequency) * time.Second).String(),
			fmt.Sprintf("%d", l.Copies),
			strings.Join(specs, " "))
	}
	return output.PrintTable(os.Stdout, table)
}

func runLevelDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, _, err := openArchive(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	name := strings.ToUpper(args[0])
	if err := a.DeleteLevel(ctx, name); err != nil {
		return err
	}
	fmt.Printf("Level %s deleted\n", name)
	return nil
}

func runLevelSet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, _, err := openArchive(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	levels := make([]string, 0, len(args)-1)
	for _, name := range args[1:] {
		levels = append(levels, strings.ToUpper(name))
	}
	if err := a.ChangeLevel(ctx, args[0], levels); err != nil {
		return err
	}
	fmt.Printf("Resource %s now at %s\n", args[0], strings.Join(levels, ","))
	return nil
}
