// Package policy defines the fleet compliance policy and its YAML loading.
package policy

import (
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath is consulted when no --config flag is given.
const EnvConfigPath = "GEMINI_ENDPOINT_ADVISOR_CONFIG"

// Slack holds formatting options for the generated Slack message.
type Slack struct {
	Title         string `yaml:"title" json:"title"`
	Channel       string `yaml:"channel" json:"channel"`
	IncludeEmojis bool   `yaml:"include_emojis" json:"include_emojis"`
}

// Policy holds the fleet-wide compliance thresholds.
type Policy struct {
	MinMacOSVersion        string  `yaml:"min_macos_version" json:"min_macos_version"`
	MaxVersionsBehind      *int    `yaml:"max_versions_behind" json:"max_versions_behind,omitempty"`
	RequireFileVault       bool    `yaml:"require_filevault" json:"require_filevault"`
	RequireFirewall        bool    `yaml:"require_firewall" json:"require_firewall"`
	MaxNoncompliantPercent float64 `yaml:"max_noncompliant_percentage" json:"max_noncompliant_percentage"`
	Slack                  Slack   `yaml:"slack" json:"slack"`
}

// Default returns the built-in policy used when no config file is present.
func Default() Policy {
	behind := 2
	return Policy{
		MinMacOSVersion:        "14.0",
		MaxVersionsBehind:      &behind,
		RequireFileVault:       true,
		RequireFirewall:        true,
		MaxNoncompliantPercent: 10,
		Slack: Slack{
			Title:         "Weekly Endpoint Posture Summary",
			Channel:       "#client-platform",
			IncludeEmojis: true,
		},
	}
}

// Load reads the policy from a YAML file, falling back to the
// GEMINI_ENDPOINT_ADVISOR_CONFIG environment variable and finally to the
// built-in defaults when no path is configured at all. Fields omitted from
// the file keep their default values.
func Load(path string) (Policy, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read policy config %s: %w", path, err)
	}

	// Unmarshal over a prefilled default so omitted keys merge instead of
	// zeroing out, matching shallow-merge semantics for the slack block too.
	pol := Default()
	if err := yaml.Unmarshal(data, &pol); err != nil {
		return Policy{}, fmt.Errorf("failed to parse policy config %s: %w", path, err)
	}

	if err := pol.Validate(); err != nil {
		return Policy{}, fmt.Errorf("invalid policy config %s: %w", path, err)
	}
	return pol, nil
}

// Validate checks that threshold values are usable before aggregation runs.
func (p Policy) Validate() error {
	if p.MinMacOSVersion == "" {
		return fmt.Errorf("min_macos_version is required")
	}
	if _, err := semver.NewVersion(p.MinMacOSVersion); err != nil {
		return fmt.Errorf("min_macos_version %q is not a valid version: %w", p.MinMacOSVersion, err)
	}
	if p.MaxVersionsBehind != nil && *p.MaxVersionsBehind < 0 {
		return fmt.Errorf("max_versions_behind must not be negative, got %d", *p.MaxVersionsBehind)
	}
	if p.MaxNoncompliantPercent < 0 || p.MaxNoncompliantPercent > 100 {
		return fmt.Errorf("max_noncompliant_percentage must be between 0 and 100, got %g", p.MaxNoncompliantPercent)
	}
	return nil
}
