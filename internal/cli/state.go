package cli

import (
	"os"
	"strings"

	"github.com/architect-io/stackctl/pkg/state"
	"github.com/architect-io/stackctl/pkg/state/backend"
	"github.com/spf13/viper"
)

const (
	// EnvStateBackend selects the record store backend type.
	EnvStateBackend = "STACKCTL_STATE_BACKEND"

	// EnvStatePrefix prefixes backend-specific settings
	// (STACKCTL_STATE_PATH, STACKCTL_STATE_BUCKET, ...).
	EnvStatePrefix = "STACKCTL_STATE_"
)

// createStateManagerWithConfig builds a record store manager from, in
// increasing precedence: the config-file default, environment variables,
// and CLI flags.
func createStateManagerWithConfig(backendType string, backendConfig []string) (state.Manager, error) {
	effectiveBackend := "local"
	effectiveConfig := make(map[string]string)

	// Config file default
	if configBackend := viper.GetString(ConfigKeyDefaultBackend); configBackend != "" {
		effectiveBackend = configBackend
	}

	// Environment variables
	if envBackend := os.Getenv(EnvStateBackend); envBackend != "" {
		effectiveBackend = envBackend
	}

	for _, env := range os.Environ() {
		if strings.HasPrefix(env, EnvStatePrefix) && !strings.HasPrefix(env, EnvStateBackend) {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) == 2 {
				// STACKCTL_STATE_PATH becomes "path", STACKCTL_STATE_BUCKET "bucket", etc.
				key := strings.ToLower(strings.TrimPrefix(parts[0], EnvStatePrefix))
				effectiveConfig[key] = parts[1]
			}
		}
	}

	// CLI flags (highest priority)
	if backendType != "" {
		effectiveBackend = backendType
	}

	for _, c := range backendConfig {
		parts := strings.SplitN(c, "=", 2)
		if len(parts) == 2 {
			effectiveConfig[parts[0]] = parts[1]
		}
	}

	config := backend.Config{
		Type:     effectiveBackend,
		Settings: effectiveConfig,
	}

	return state.NewManagerFromConfig(config)
}
