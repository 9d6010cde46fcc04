package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openscholar/doisync/internal/datacite"
	"github.com/openscholar/doisync/internal/export"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Push current metadata to an already registered identifier",
	Long: `Export the resource's current attributes from a catalog file and push
them to its existing identifier record, re-asserting published state. The
resource must already carry a registered identifier.`,
	RunE: runUpdate,
}

func init() {
	addEnvironmentFlags(updateCmd)
	updateCmd.Flags().String("catalog", "", "Path to the resource catalog file (JSON, required)")
	updateCmd.Flags().String("resource", "", "Catalog resource ID to update (required)")

	for _, flag := range []string{"catalog", "resource"} {
		if err := updateCmd.MarkFlagRequired(flag); err != nil {
			panic(err)
		}
	}
}

func runUpdate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	_, env, err := resolveEnvironment(cmd)
	if err != nil {
		return err
	}

	catalogPath, err := cmd.Flags().GetString("catalog")
	if err != nil {
		return fmt.Errorf("failed to get catalog flag: %w", err)
	}
	resourceID, err := cmd.Flags().GetString("resource")
	if err != nil {
		return fmt.Errorf("failed to get resource flag: %w", err)
	}

	catalog, err := export.NewFileCatalog(catalogPath)
	if err != nil {
		return err
	}

	client := datacite.NewClient(env, catalog, catalog)
	record, err := client.UpdateMetadata(ctx, resourceID)
	if err != nil {
		return err
	}

	fmt.Printf("updated %s for resource %s (state %s)\n", record.ID, resourceID, record.State())
	return nil
}
