// Package config loads the tunables that shape L2P/P2L builds and reads:
// page sizes, shard size, cache capacities, prefetch window, and the
// leaking-bucket prefetch threshold.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tunables holds every knob exposed to operators. Zero-value fields are
// never valid on their own; use Default() and override from there.
type Tunables struct {
	L2PPageSize            int   `yaml:"l2p_page_size"`
	P2LPageSize            int   `yaml:"p2l_page_size"`
	ShardSize              int64 `yaml:"shard_size"`
	HeaderCacheSize        int   `yaml:"header_cache_size"`
	PageCacheSize          int   `yaml:"page_cache_size"`
	PrefetchWindowBytes    int64 `yaml:"prefetch_window_bytes"`
	PrefetchLeakingBucket  int   `yaml:"prefetch_leaking_bucket"`
	SpillThresholdBytes    int   `yaml:"spill_threshold_bytes"`
}

// Default returns the tunables this module ships with absent a config file.
func Default() *Tunables {
	return &Tunables{
		L2PPageSize:           1000,
		P2LPageSize:           400,
		ShardSize:             1000,
		HeaderCacheSize:       16,
		PageCacheSize:         1000,
		PrefetchWindowBytes:   65536,
		PrefetchLeakingBucket: 4,
		SpillThresholdBytes:   16 * 1024 * 1024,
	}
}

// Load reads a YAML tunables file, starting from Default() so an operator's
// file only needs to override what it cares about.
func Load(path string) (*Tunables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	t := Default()
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return t, nil
}

// Save writes t as YAML to path.
func Save(path string, t *Tunables) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
