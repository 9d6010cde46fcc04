package app

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openscholar/doisync/internal/datacite"
)

var getCmd = &cobra.Command{
	Use:   "get <identifier>",
	Short: "Fetch one identifier record from the registry",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func init() {
	addEnvironmentFlags(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	_, env, err := resolveEnvironment(cmd)
	if err != nil {
		return err
	}

	client := datacite.NewClient(env, nil, nil)
	record, err := client.GetRecord(ctx, args[0])
	if errors.Is(err, datacite.ErrNotFound) {
		fmt.Printf("identifier %s is not registered in this environment\n", args[0])
		return nil
	}
	if err != nil {
		return err
	}

	output, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format record: %w", err)
	}
	fmt.Println(string(output))
	return nil
}
