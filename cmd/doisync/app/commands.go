// Package app provides the entry point for the doisync command.
package app

import (
	"encoding/json"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openscholar/doisync/internal/config"
	"github.com/openscholar/doisync/internal/environment"
	"github.com/openscholar/doisync/internal/versions"
)

var rootCmd = &cobra.Command{
	Use:               "doisync",
	DisableAutoGenTag: true,
	Short:             "DOI registry synchronization engine",
	Long: `doisync keeps a repository and a DOI registry in step: it bulk-imports
existing identifier records, registers new identifiers and pushes metadata
updates, against either the production or the test registry deployment.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// If no subcommand is provided, print help
		return cmd.Help()
	},
}

// NewRootCmd creates the root command. The given logger is injected into the
// command context so every subcommand logs through it.
func NewRootCmd(logger logr.Logger) *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Error(err, "failed to bind debug flag")
	}

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		cmd.SetContext(logr.NewContext(cmd.Context(), logger))
	}

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		info := versions.GetVersionInfo()
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			return fmt.Errorf("failed to get format flag: %w", err)
		}

		if format == "json" {
			output, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to format version info: %w", err)
			}
			fmt.Println(string(output))
			return nil
		}

		fmt.Printf("doisync %s (commit %s, built %s, %s, %s)\n",
			info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
		return nil
	},
}

func init() {
	versionCmd.Flags().String("format", "", "Output format (json)")
}

// addEnvironmentFlags registers the flags every registry-facing command needs
func addEnvironmentFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	cmd.Flags().String("privilege", string(environment.PrivilegeRestricted),
		"Caller privilege level (restricted, standard, curator)")

	if err := cmd.MarkFlagRequired("config"); err != nil {
		panic(err)
	}
}

// resolveEnvironment loads the configuration and snapshots the registry
// environment for the invocation. Unknown privilege values fall back to the
// test environment by policy.
func resolveEnvironment(cmd *cobra.Command) (*config.Config, environment.Context, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, environment.Context{}, fmt.Errorf("failed to get config flag: %w", err)
	}

	privilege, err := cmd.Flags().GetString("privilege")
	if err != nil {
		return nil, environment.Context{}, fmt.Errorf("failed to get privilege flag: %w", err)
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return nil, environment.Context{}, fmt.Errorf("failed to load config: %w", err)
	}

	env, err := environment.Resolve(cfg, environment.PrivilegeLevel(privilege))
	if err != nil {
		return nil, environment.Context{}, err
	}

	logger := logr.FromContextOrDiscard(cmd.Context())
	logger.Info("resolved registry environment",
		"testMode", env.TestMode,
		"endpoint", env.Endpoint,
		"prefixes", env.AllowedPrefixes)

	return cfg, env, nil
}
