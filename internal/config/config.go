// Package config provides configuration loading and management for the DOI
// synchronization engine.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// EnvNameProduction identifies the production registry environment
	EnvNameProduction = "production"

	// EnvNameTest identifies the test (sandbox) registry environment
	EnvNameTest = "test"
)

const (
	// DefaultPageSize is the page size used for bulk imports when none is configured
	DefaultPageSize = 1000

	// MaxPageSize is the hard upper bound the registry service accepts per page
	MaxPageSize = 1000

	// DefaultMaxPages is the defensive per-prefix page ceiling for bulk imports.
	// A server that keeps returning the same cursor would otherwise loop forever.
	DefaultMaxPages = 10000
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// GlobalTestMode forces every registry operation onto the test
	// environment regardless of caller privilege. No caller can override it.
	GlobalTestMode bool `yaml:"globalTestMode,omitempty"`

	// Environments holds the per-environment registry settings
	Environments EnvironmentsConfig `yaml:"environments"`

	// Import holds bulk-import tuning
	Import *ImportConfig `yaml:"import,omitempty"`

	// Database holds persistence settings for imported records
	Database *DatabaseConfig `yaml:"database,omitempty"`
}

// EnvironmentsConfig groups the production and test registry environments.
// The two are fully distinct deployments: endpoint, credentials and allowed
// prefixes must never be mixed.
type EnvironmentsConfig struct {
	Production EnvironmentConfig `yaml:"production"`
	Test       EnvironmentConfig `yaml:"test"`
}

// EnvironmentConfig defines one registry environment
type EnvironmentConfig struct {
	// Endpoint is the base API URL (without path)
	Endpoint string `yaml:"endpoint"`

	// ClientID is the repository account identifier used on list requests
	ClientID string `yaml:"clientId"`

	// Username is the HTTP basic auth user
	Username string `yaml:"username"`

	// PasswordFile is the path to a file containing the registry password.
	// This is the recommended approach for production deployments.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Prefixes is the ordered set of namespace prefixes this environment may
	// list and mint under
	Prefixes []string `yaml:"prefixes"`
}

// ImportConfig defines bulk-import tuning
type ImportConfig struct {
	// PageSize is the requested records-per-page; clamped to MaxPageSize
	PageSize int `yaml:"pageSize,omitempty"`

	// MaxPages is the defensive per-prefix page ceiling
	MaxPages int `yaml:"maxPages,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password.
	// The file should contain only the password with optional trailing
	// whitespace.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`
}

// readPasswordFile reads and trims a password file
func readPasswordFile(path string) (string, error) {
	// Use filepath.Clean to prevent path traversal attacks
	cleanPath := filepath.Clean(path)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return "", fmt.Errorf("failed to read password from file %s: %w", path, err)
	}

	// Trim whitespace (including newlines) from file content
	return strings.TrimSpace(string(data)), nil
}

// GetPassword returns the registry password for the named environment using
// the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from the DOISYNC_PRODUCTION_PASSWORD / DOISYNC_TEST_PASSWORD environment variable
func (e *EnvironmentConfig) GetPassword(envName string) (string, error) {
	if e.PasswordFile != "" {
		return readPasswordFile(e.PasswordFile)
	}

	envVar := "DOISYNC_" + strings.ToUpper(envName) + "_PASSWORD"
	if envPassword := os.Getenv(envVar); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no registry password configured for %s: set passwordFile or %s environment variable",
		envName, envVar,
	)
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from DOISYNC_DATABASE_PASSWORD environment variable
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		return readPasswordFile(d.PasswordFile)
	}

	if envPassword := os.Getenv("DOISYNC_DATABASE_PASSWORD"); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or DOISYNC_DATABASE_PASSWORD environment variable",
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	escapedPassword := url.QueryEscape(password)

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		escapedPassword,
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)

	return connString, nil
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	// Read the entire file into memory
	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML content
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Validate the config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// PageSize returns the configured page size clamped to the service maximum
func (c *Config) PageSize() int {
	if c.Import == nil || c.Import.PageSize <= 0 {
		return DefaultPageSize
	}
	if c.Import.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return c.Import.PageSize
}

// MaxPages returns the configured per-prefix page ceiling
func (c *Config) MaxPages() int {
	if c.Import == nil || c.Import.MaxPages <= 0 {
		return DefaultMaxPages
	}
	return c.Import.MaxPages
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateEnvironment(&c.Environments.Production, EnvNameProduction); err != nil {
		return err
	}
	if err := validateEnvironment(&c.Environments.Test, EnvNameTest); err != nil {
		return err
	}

	return validatePrefixDisjointness(&c.Environments)
}

// validateEnvironment validates a single environment configuration
func validateEnvironment(env *EnvironmentConfig, name string) error {
	if env.Endpoint == "" {
		return fmt.Errorf("environments.%s: endpoint is required", name)
	}
	if _, err := url.ParseRequestURI(env.Endpoint); err != nil {
		return fmt.Errorf("environments.%s: endpoint must be a valid URL: %w", name, err)
	}
	if env.Username == "" {
		return fmt.Errorf("environments.%s: username is required", name)
	}
	if env.ClientID == "" {
		return fmt.Errorf("environments.%s: clientId is required", name)
	}
	if len(env.Prefixes) == 0 {
		return fmt.Errorf("environments.%s: at least one prefix is required", name)
	}

	seen := make(map[string]bool)
	for i, prefix := range env.Prefixes {
		if prefix == "" {
			return fmt.Errorf("environments.%s: prefixes[%d] is empty", name, i)
		}
		if seen[prefix] {
			return fmt.Errorf("environments.%s: duplicate prefix '%s'", name, prefix)
		}
		seen[prefix] = true
	}

	return nil
}

// validatePrefixDisjointness ensures no prefix is valid in both environments.
// A prefix accepted in test must never silently satisfy production
// validation, and vice versa.
func validatePrefixDisjointness(envs *EnvironmentsConfig) error {
	testPrefixes := make(map[string]bool, len(envs.Test.Prefixes))
	for _, prefix := range envs.Test.Prefixes {
		testPrefixes[prefix] = true
	}

	for _, prefix := range envs.Production.Prefixes {
		if testPrefixes[prefix] {
			return fmt.Errorf("prefix '%s' is configured in both production and test environments", prefix)
		}
	}

	return nil
}
