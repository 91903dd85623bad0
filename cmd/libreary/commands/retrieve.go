package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <uuid>",
	Short: "Materialize a resource into the output directory",
	Long: `Retrieve a resource: copy a verified replica into the configured
output directory and print its path. The canonical copy is preferred;
corrupt copies are skipped in favor of the next intact one.`,
	Args: cobra.ExactArgs(1),
	RunE: runRetrieve,
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, _, err := openArchive(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	path, err := a.Retrieve(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Println(path)
	return nil
}
