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

package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig wraps every validation failure returned by Validate.
var ErrInvalidConfig = errors.New("config: invalid runtime configuration")

// LoadError wraps a failure to read or parse a configuration file.
type LoadError struct {
	Path  string
	Cause error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("config: loading %s: %v", e.Path, e.Cause)
}

func (e *LoadError) Unwrap() error { return e.Cause }

var validEnvironments = map[string]bool{
	"production":  true,
	"staging":     true,
	"sandbox":     true,
	"development": true,
}

// Validate checks that every required field is present and every
// constrained field holds a recognized value, aggregating all failures
// into a single error (spec §6).
func (c *RuntimeConfig) Validate() error {
	var errs []string

	if c.Environment == "" {
		errs = append(errs, "environment is required")
	} else if !validEnvironments[c.Environment] {
		errs = append(errs, fmt.Sprintf("environment %q is not one of production, staging, sandbox, development", c.Environment))
	}
	if c.PartnerID == "" {
		errs = append(errs, "partner_id is required")
	}
	if c.ClientID == "" {
		errs = append(errs, "client_id is required")
	}
	if c.RedirectScheme == "" {
		errs = append(errs, "redirect_scheme is required")
	} else if strings.Contains(c.RedirectScheme, "://") {
		errs = append(errs, "redirect_scheme must be a bare scheme, not a URL")
	}
	if c.Locale == "" {
		errs = append(errs, "locale is required")
	}
	if c.RemoteConfigURL != "" && !strings.HasPrefix(c.RemoteConfigURL, "https://") && !strings.HasPrefix(c.RemoteConfigURL, "file://") {
		errs = append(errs, "remote_config_url must be an https:// or file:// URL")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(errs, "\n  - "))
	}
	return nil
}
