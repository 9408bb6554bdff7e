package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Top-level YAML config key names used for shallow merge.
const (
	keyStore      = "store"
	keyDefaultTTL = "default_ttl"
	keyLogging    = "logging"
	keySweep      = "sweep"
	keyMetrics    = "metrics"
)

// knownTopLevelKeys lists the YAML keys that correspond to Config fields.
// Keys not in this list are silently ignored during merge.
//
//nolint:gochecknoglobals // Compile-time constant lookup table.
var knownTopLevelKeys = map[string]bool{
	keyStore:      true,
	keyDefaultTTL: true,
	keyLogging:    true,
	keySweep:      true,
	keyMetrics:    true,
}

// ShallowMergeYAML loads a YAML file and merges its top-level keys onto
// the target Config. Keys present in the overlay replace entire sections
// in the target. Keys absent in the overlay are left unchanged.
func ShallowMergeYAML(target *Config, overlayPath string) error {
	if target == nil {
		return errors.New("nil target *Config in ShallowMergeYAML")
	}

	data, err := os.ReadFile(overlayPath)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", overlayPath, err)
	}

	var overlay map[string]yaml.Node
	if err = yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing config YAML from %s: %w", overlayPath, err)
	}

	// Empty or comment-only file: nothing to merge.
	if len(overlay) == 0 {
		return nil
	}

	for key, node := range overlay {
		if !knownTopLevelKeys[key] {
			continue
		}
		if err = decodeSection(target, key, &node); err != nil {
			return fmt.Errorf("applying config section %q: %w", key, err)
		}
	}

	return nil
}

// decodeSection decodes one top-level node into a fresh value and replaces
// the matching field, so a partial section resets the fields it omits.
func decodeSection(target *Config, key string, node *yaml.Node) error {
	switch key {
	case keyStore:
		var v string
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Store = v
	case keyDefaultTTL:
		var v Duration
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.DefaultTTL = v
	case keyLogging:
		var v LoggingConfig
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Logging = v
	case keySweep:
		var v SweepConfig
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Sweep = v
	case keyMetrics:
		var v MetricsConfig
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Metrics = v
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}
