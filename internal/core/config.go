package core

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// DefaultConfigFile is the config file looked up in the working directory
// when --config is not given.
const DefaultConfigFile = "preen.jsonc"

// Collision policies accepted by RunConfig.OnCollision.
const (
	CollisionWarn = "warn"
	CollisionFail = "fail"
)

// RunConfig is the configuration for one pipeline run. It can be loaded
// from a JSONC file and overridden by command-line flags.
type RunConfig struct {
	Sources     []string `json:"sources"`     // ordered source roots
	Dest        string   `json:"dest"`        // destination root
	PruneStale  bool     `json:"pruneStale"`  // remove unclaimed managed files
	OnCollision string   `json:"onCollision"` // "warn" (default) or "fail"
	Workers     int      `json:"workers"`     // scan/validate pool size
}

// DefaultRunConfig returns a config with policy defaults applied.
func DefaultRunConfig() *RunConfig {
	return &RunConfig{
		OnCollision: CollisionWarn,
		Workers:     4,
	}
}

// Validate checks that the config describes a runnable pipeline.
func (c *RunConfig) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("no source roots configured")
	}
	if c.Dest == "" {
		return fmt.Errorf("no destination configured")
	}
	if c.OnCollision != CollisionWarn && c.OnCollision != CollisionFail {
		return fmt.Errorf("invalid collision policy %q (want %q or %q)",
			c.OnCollision, CollisionWarn, CollisionFail)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	return nil
}

// LoadConfig reads a JSONC run configuration. Comments and trailing
// commas are tolerated. Returns defaults if path is the default lookup
// and the file does not exist.
func LoadConfig(path string, optional bool) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && optional {
			return DefaultRunConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg := DefaultRunConfig()
	if err := json.Unmarshal(std, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
