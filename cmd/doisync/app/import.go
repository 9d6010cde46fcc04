package app

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/openscholar/doisync/internal/datacite"
	"github.com/openscholar/doisync/internal/status"
	"github.com/openscholar/doisync/internal/store"
	"github.com/openscholar/doisync/internal/sync"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk-import identifier records into the local store",
	Long: `Walk all records under the environment's allowed prefixes (or the prefixes
given with --prefix) and mirror them into the configured database. Prefix
failures are isolated: one broken prefix does not stop the others.`,
	RunE: runImport,
}

func init() {
	addEnvironmentFlags(importCmd)
	importCmd.Flags().StringSlice("prefix", nil,
		"Prefix to import (repeatable; defaults to all allowed prefixes)")
	importCmd.Flags().String("status-dir", ".",
		"Directory the import status file is written to")
}

func runImport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := logr.FromContextOrDiscard(ctx)

	cfg, env, err := resolveEnvironment(cmd)
	if err != nil {
		return err
	}

	prefixes, err := cmd.Flags().GetStringSlice("prefix")
	if err != nil {
		return fmt.Errorf("failed to get prefix flag: %w", err)
	}
	if len(prefixes) == 0 {
		prefixes = env.AllowedPrefixes
	}
	for _, prefix := range prefixes {
		if !env.AllowsPrefix(prefix) {
			return fmt.Errorf("%w: %s", datacite.ErrInvalidPrefix, prefix)
		}
	}

	statusDir, err := cmd.Flags().GetString("status-dir")
	if err != nil {
		return fmt.Errorf("failed to get status-dir flag: %w", err)
	}

	if cfg.Database == nil {
		return fmt.Errorf("database configuration is required for import")
	}
	connString, err := cfg.Database.GetConnectionString()
	if err != nil {
		return fmt.Errorf("failed to build connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	transport := datacite.NewTransport(env)
	importer := datacite.NewImporter(transport, cfg.PageSize(), cfg.MaxPages())
	manager := sync.NewManager(importer, store.New(pool), status.NewFilePersistence(statusDir), env.TestMode)

	result, err := manager.RunImport(ctx, prefixes)
	if err != nil {
		return err
	}

	for _, prefixResult := range result.Report.Results {
		if prefixResult.Err != nil {
			logger.Error(prefixResult.Err, "prefix import failed", "prefix", prefixResult.Prefix)
			continue
		}
		logger.Info("prefix imported",
			"prefix", prefixResult.Prefix,
			"records", prefixResult.Records,
			"pages", prefixResult.Pages)
	}

	fmt.Printf("imported %d records across %d prefixes (run %s)\n",
		result.Stored, len(result.Report.Results), result.Report.RunID)
	if failed := result.Report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d prefixes failed", len(failed), len(prefixes))
	}
	return nil
}
