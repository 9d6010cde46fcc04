// Package environment resolves which registry environment an operation runs
// against. The selection policy is the safety boundary of the whole engine:
// a restricted caller must never reach the production registry, because a
// production registration is permanent and cannot be revoked.
package environment

import (
	"fmt"

	"github.com/openscholar/doisync/internal/config"
)

// PrivilegeLevel describes the caller's standing within the repository
type PrivilegeLevel string

const (
	// PrivilegeRestricted callers are forced onto the test environment
	// unconditionally
	PrivilegeRestricted PrivilegeLevel = "restricted"

	// PrivilegeStandard callers may mint against production when global test
	// mode is off
	PrivilegeStandard PrivilegeLevel = "standard"

	// PrivilegeCurator callers may mint against production when global test
	// mode is off
	PrivilegeCurator PrivilegeLevel = "curator"
)

// Credentials is the HTTP basic auth pair for one environment
type Credentials struct {
	Username string
	Password string
}

// Context is the fully resolved environment for one operation: endpoint,
// credentials and allowed prefixes are snapshotted at resolution time and
// must not change mid-operation even if global configuration does.
type Context struct {
	// TestMode reports whether this context targets the test (sandbox)
	// registry deployment
	TestMode bool

	// Endpoint is the base API URL
	Endpoint string

	// ClientID is the repository account identifier used on list requests
	ClientID string

	// Credentials is the basic auth pair for the selected environment
	Credentials Credentials

	// AllowedPrefixes is the ordered set of prefixes valid in this
	// environment; prefixes from the other environment never appear here
	AllowedPrefixes []string
}

// AllowsPrefix reports whether the given prefix may be minted under in this
// environment
func (c *Context) AllowsPrefix(prefix string) bool {
	for _, allowed := range c.AllowedPrefixes {
		if allowed == prefix {
			return true
		}
	}
	return false
}

// UseTestEnvironment is the authoritative selection policy. It is the only
// place that decides between test and production, and it is deliberately a
// pure function with no escape hatch:
//
//  1. Global test mode wins unconditionally.
//  2. A restricted caller is forced onto the test environment even when
//     global configuration says production.
//  3. Unknown privilege levels fail safe onto the test environment.
//
// Only (globalTestMode=false, recognized non-restricted level) selects
// production.
func UseTestEnvironment(globalTestMode bool, level PrivilegeLevel) bool {
	if globalTestMode {
		return true
	}
	switch level {
	case PrivilegeStandard, PrivilegeCurator:
		return false
	default:
		return true
	}
}

// Resolve snapshots the environment context for one operation. The returned
// Context owns copies of all mutable state; later configuration changes
// cannot leak into an operation already in flight.
func Resolve(cfg *config.Config, level PrivilegeLevel) (Context, error) {
	if cfg == nil {
		return Context{}, fmt.Errorf("config is required")
	}

	testMode := UseTestEnvironment(cfg.GlobalTestMode, level)

	envName := config.EnvNameProduction
	envCfg := cfg.Environments.Production
	if testMode {
		envName = config.EnvNameTest
		envCfg = cfg.Environments.Test
	}

	password, err := envCfg.GetPassword(envName)
	if err != nil {
		return Context{}, fmt.Errorf("failed to resolve %s credentials: %w", envName, err)
	}

	prefixes := make([]string, len(envCfg.Prefixes))
	copy(prefixes, envCfg.Prefixes)

	return Context{
		TestMode: testMode,
		Endpoint: envCfg.Endpoint,
		ClientID: envCfg.ClientID,
		Credentials: Credentials{
			Username: envCfg.Username,
			Password: password,
		},
		AllowedPrefixes: prefixes,
	}, nil
}
