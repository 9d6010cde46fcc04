package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openscholar/doisync/internal/datacite"
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count registry records under the allowed prefixes",
	Long: `Probe the registry for the total record count of each allowed prefix.
A prefix whose probe fails contributes zero to the sum and is reported.`,
	RunE: runCount,
}

func init() {
	addEnvironmentFlags(countCmd)
}

func runCount(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, env, err := resolveEnvironment(cmd)
	if err != nil {
		return err
	}

	transport := datacite.NewTransport(env)
	importer := datacite.NewImporter(transport, cfg.PageSize(), cfg.MaxPages())

	total, results := importer.TotalCount(ctx, env.AllowedPrefixes)
	for _, result := range results {
		if result.Err != nil {
			fmt.Printf("%s\tunavailable (%v)\n", result.Prefix, result.Err)
			continue
		}
		fmt.Printf("%s\t%d\n", result.Prefix, result.Records)
	}
	fmt.Printf("total\t%d\n", total)
	return nil
}
