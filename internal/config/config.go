// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads and validates the host application's runtime
// configuration (spec §6 "Configuration consumed from the caller").
package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FeatureFlags are the optional behavioral switches the caller may set
// (spec §6).
type FeatureFlags struct {
	AllowFileOrigins                    bool `yaml:"allow_file_origins,omitempty"`
	DemoAutoComplete                    bool `yaml:"demo_auto_complete,omitempty"`
	DisableManifestSignatureVerification bool `yaml:"disable_manifest_signature_verification,omitempty"`
}

// RuntimeConfig is the configuration a host application supplies when
// embedding the journey runtime (spec §6).
type RuntimeConfig struct {
	Environment     string       `yaml:"environment"`
	PartnerID       string       `yaml:"partner_id"`
	ClientID        string       `yaml:"client_id"`
	RedirectScheme  string       `yaml:"redirect_scheme"`
	Locale          string       `yaml:"locale"`
	RemoteConfigURL string       `yaml:"remote_config_url,omitempty"`
	FeatureFlags    FeatureFlags `yaml:"feature_flags,omitempty"`
	TelemetryOptIn  bool         `yaml:"telemetry_opt_in"`
}

// Default returns a RuntimeConfig with the production environment default
// and every feature flag off.
func Default() *RuntimeConfig {
	return &RuntimeConfig{
		Environment:    "production",
		RedirectScheme: "partnerapp",
		Locale:         "en-US",
	}
}

// Load reads a RuntimeConfig from a YAML file, applies defaults for any
// zero-valued fields, then overlays environment variables, then validates
// the result.
func Load(configPath string) (*RuntimeConfig, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &LoadError{Path: configPath, Cause: err}
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a RuntimeConfig entirely from environment variables over
// the default base, without reading a config file. Intended for
// host environments where a YAML file is not the natural configuration
// surface (e.g. a mobile SDK embedding).
func FromEnv() (*RuntimeConfig, error) {
	cfg := Default()
	cfg.loadFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *RuntimeConfig) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *RuntimeConfig) applyDefaults() {
	defaults := Default()
	if c.Environment == "" {
		c.Environment = defaults.Environment
	}
	if c.RedirectScheme == "" {
		c.RedirectScheme = defaults.RedirectScheme
	}
	if c.Locale == "" {
		c.Locale = defaults.Locale
	}
}

func (c *RuntimeConfig) loadFromEnv() {
	if val := os.Getenv("JOURNEYCORE_ENVIRONMENT"); val != "" {
		c.Environment = strings.ToLower(val)
	}
	if val := os.Getenv("JOURNEYCORE_PARTNER_ID"); val != "" {
		c.PartnerID = val
	}
	if val := os.Getenv("JOURNEYCORE_CLIENT_ID"); val != "" {
		c.ClientID = val
	}
	if val := os.Getenv("JOURNEYCORE_REDIRECT_SCHEME"); val != "" {
		c.RedirectScheme = val
	}
	if val := os.Getenv("JOURNEYCORE_LOCALE"); val != "" {
		c.Locale = val
	}
	if val := os.Getenv("JOURNEYCORE_REMOTE_CONFIG_URL"); val != "" {
		c.RemoteConfigURL = val
	}
	if val := os.Getenv("JOURNEYCORE_TELEMETRY_OPT_IN"); val != "" {
		c.TelemetryOptIn = isTruthy(val)
	}
	if val := os.Getenv("JOURNEYCORE_ALLOW_FILE_ORIGINS"); val != "" {
		c.FeatureFlags.AllowFileOrigins = isTruthy(val)
	}
	if val := os.Getenv("JOURNEYCORE_DEMO_AUTO_COMPLETE"); val != "" {
		c.FeatureFlags.DemoAutoComplete = isTruthy(val)
	}
	if val := os.Getenv("JOURNEYCORE_DISABLE_MANIFEST_SIGNATURE_VERIFICATION"); val != "" {
		c.FeatureFlags.DisableManifestSignatureVerification = isTruthy(val)
	}
}

func isTruthy(val string) bool {
	return val == "1" || strings.EqualFold(val, "true")
}
