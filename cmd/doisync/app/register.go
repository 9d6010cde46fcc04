package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openscholar/doisync/internal/datacite"
	"github.com/openscholar/doisync/internal/export"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new identifier for a catalog resource",
	Long: `Mint and publish an identifier under the given prefix for one resource
from a catalog file. The prefix must be allowed in the resolved environment
and the resource must have a landing page URL; both are checked before any
request reaches the registry.`,
	RunE: runRegister,
}

func init() {
	addEnvironmentFlags(registerCmd)
	registerCmd.Flags().String("catalog", "", "Path to the resource catalog file (JSON, required)")
	registerCmd.Flags().String("resource", "", "Catalog resource ID to register (required)")
	registerCmd.Flags().String("prefix", "", "Prefix to mint under (required)")

	for _, flag := range []string{"catalog", "resource", "prefix"} {
		if err := registerCmd.MarkFlagRequired(flag); err != nil {
			panic(err)
		}
	}
}

func runRegister(cmd *cobra.Command, _ []string) error {
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
	prefix, err := cmd.Flags().GetString("prefix")
	if err != nil {
		return fmt.Errorf("failed to get prefix flag: %w", err)
	}

	catalog, err := export.NewFileCatalog(catalogPath)
	if err != nil {
		return err
	}

	client := datacite.NewClient(env, catalog, catalog)
	record, err := client.Register(ctx, resourceID, prefix)
	if err != nil {
		return err
	}

	fmt.Printf("registered %s for resource %s (state %s)\n", record.ID, resourceID, record.State())
	return nil
}
