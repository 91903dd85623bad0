package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update <uuid> <file>",
	Short: "Replace a resource's content",
	Long: `Replace a resource's content with a new staged file. The UUID, the
level assignment, and the description stay; old copies are withdrawn, the
canonical copy is rewritten, and replication fans the new bytes back out.`,
	Args: cobra.ExactArgs(2),
	RunE: runUpdate,
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, _, err := openArchive(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Update(ctx, args[0], args[1]); err != nil {
		return err
	}

	r, err := a.GetResourceInfo(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Updated %s (checksum %s)\n", r.UUID, r.Checksum)
	return nil
}
