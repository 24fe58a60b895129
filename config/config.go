// Copyright 2026 The OAuthForge Authors
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

// Package config holds the recognized configuration options (spec.md
// §6.5) as a single struct passed explicitly into the authorize and token
// handlers, in place of the source's per-application generated modules
// (see SPEC_FULL.md §10).
package config

import "time"

// PKCEPolicy controls when a code_challenge is required.
type PKCEPolicy string

const (
	PKCEAll    PKCEPolicy = "all"
	PKCEPublic PKCEPolicy = "public"
	PKCENone   PKCEPolicy = "no"
)

// Config is the server-wide, immutable-after-init configuration the
// authorize and token endpoints read on every request.
//
// Purpose: Single explicit configuration surface for both endpoints.
// Domain: OAuth2
// Invariants: Scopes is the universe of recognized application scope
// strings; GrantTTL and RefreshGrace are positive durations.
type Config struct {
	// Scopes is the full set of application scope strings a requested
	// scope is validated against.
	Scopes []string

	// EnforcePKCE controls whether code_challenge is required: "all"
	// clients, "public" clients only, or "no" clients.
	EnforcePKCE PKCEPolicy

	// GrantTTL is how long an issued authorization code remains valid.
	GrantTTL time.Duration

	// RefreshGrace is a refresh-token grace window (default 10s). The
	// handlers in this module do not read it; minting.DefaultMinter takes
	// its grace window as the refreshGrace argument of NewDefaultMinter.
	RefreshGrace time.Duration

	// CustomizeSessionUpsertArgs, if set, is invoked after the core has
	// populated a session.UpsertArgs with its own claims, letting the
	// integrator add additional claims without overriding the ones the
	// core sets.
	CustomizeSessionUpsertArgs func(args *SessionUpsertArgsView)

	// AdditionalAllowedHeaders extends the CORS Access-Control-Allow-Headers
	// list the token endpoint advertises beyond "authorization,content-type".
	AdditionalAllowedHeaders []string
}

// SessionUpsertArgsView is the subset of session.UpsertArgs the
// customization hook is allowed to see without the config package
// importing session (which would create an import cycle, since session
// does not need to know about config).
type SessionUpsertArgsView struct {
	UserID                string
	AccessClaimOverrides  map[string]any
	RefreshClaimOverrides map[string]any
}

// Default returns a Config with the spec's documented defaults:
// PKCE required for all clients and a 600-second grant lifetime.
func Default() Config {
	return Config{
		EnforcePKCE:  PKCEAll,
		GrantTTL:     600 * time.Second,
		RefreshGrace: 10 * time.Second,
	}
}

// RequiresPKCE reports whether a client of the given type must supply a
// code_challenge under this configuration.
func (c Config) RequiresPKCE(public bool) bool {
	switch c.EnforcePKCE {
	case PKCEAll:
		return true
	case PKCEPublic:
		return public
	default:
		return false
	}
}
