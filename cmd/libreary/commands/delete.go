package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/libreary/libreary/internal/cli/prompt"
)

var deleteYes bool

var deleteCmd = &cobra.Command{
	Use:   "delete <uuid>",
	Short: "Delete a resource from every adapter",
	Long: `Delete a resource everywhere: every replica, the canonical copy,
the user metadata, and the catalog row. This cannot be undone.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Skip the confirmation prompt")
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, _, err := openArchive(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	id := args[0]
	r, err := a.GetResourceInfo(ctx, id)
	if err != nil {
		return err
	}

	ok, err := prompt.ConfirmWithForce(
		fmt.Sprintf("Delete %q (%s) and all its copies", r.Filename, id), deleteYes)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Aborted.")
		return nil
	}

	if err := a.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", id)
	return nil
}
