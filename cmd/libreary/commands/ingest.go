package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/libreary/libreary/pkg/archive"
)

var (
	ingestLevels      []string
	ingestDescription string
	ingestDelete      bool
	ingestMetadata    []string
	ingestSchemaFile  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Bring a staged file into the archive",
	Long: `Ingest a staged file: checksum it, store the canonical copy, and
replicate it to every adapter its levels list.

A bare filename is looked up in the configured dropbox directory when it does
not exist in the working directory.

Examples:
  # Ingest with one level
  libreary ingest report.pdf --level LOW

  # Ingest with multiple levels and a description
  libreary ingest thesis.pdf --level LOW --level HIGH --description "PhD thesis"

  # Attach user metadata and its schema at ingest time
  libreary ingest scan.tiff --level LOW --metadata author="A. Turing" --schema dc.schema.json

  # Remove the staged file once the canonical copy is safe
  libreary ingest scan.tiff --level LOW --delete-staged`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringArrayVar(&ingestLevels, "level", nil, "Durability level (repeatable, required)")
	ingestCmd.Flags().StringVar(&ingestDescription, "description", "", "Human-readable description")
	ingestCmd.Flags().BoolVar(&ingestDelete, "delete-staged", false, "Remove the staged file after the canonical copy is stored")
	ingestCmd.Flags().StringArrayVar(&ingestMetadata, "metadata", nil, "User metadata as key=value (repeatable)")
	ingestCmd.Flags().StringVar(&ingestSchemaFile, "schema", "", "JSON file holding the metadata schema")
	_ = ingestCmd.MarkFlagRequired("level")
}

func parseMetadataPairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("metadata %q is not key=value", p)
		}
		out[key] = value
	}
	return out, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	metadata, err := parseMetadataPairs(ingestMetadata)
	if err != nil {
		return err
	}
	var schema string
	if ingestSchemaFile != "" {
		raw, err := os.ReadFile(ingestSchemaFile)
		if err != nil {
			return fmt.Errorf("reading schema file: %w", err)
		}
		schema = string(raw)
	}

	a, _, err := openArchive(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.Ingest(ctx, archive.IngestRequest{
		Path:             args[0],
		Levels:           ingestLevels,
		Description:      ingestDescription,
		DeleteAfterStore: ingestDelete,
		MetadataSchema:   schema,
		Metadata:         metadata,
	})
	if err != nil {
		return err
	}

	fmt.Println(id)
	return nil
}
