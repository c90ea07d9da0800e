package config

import (
	"fmt"
	"os"

	"github.com/shanesims/screenlink/internal/logging"
)

var log = logging.L("config")

// Load reads the textual config file at path, layers environment
// overrides over it, validates (fatal errors abort, warnings are
// logged), and returns the immutable Config.
func Load(path string, env EnvOverrides) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	b, err := ParseText(string(data))
	if err != nil {
		return nil, err
	}

	if env.ServerAddr != "" {
		b.SetServerAddress(env.ServerAddr)
	}
	if env.AdminAddr != "" {
		b.SetAdminAddress(env.AdminAddr)
	}
	if env.BindTimeout > 0 {
		b.SetBindTimeout(env.BindTimeout)
	}

	result := b.ValidateTiered()
	for _, w := range result.Warnings {
		log.Warn("config validation", "error", w)
	}
	if result.HasFatals() {
		for _, f := range result.Fatals {
			log.Error("config validation fatal", "error", f)
		}
		return nil, fmt.Errorf("config: fatal validation errors: %w", result.Fatals[0])
	}

	return b.Build()
}
