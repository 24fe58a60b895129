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

package validate

import (
	"context"
	"errors"

	"github.com/oauthforge/core/client"
	"github.com/oauthforge/core/config"
	"github.com/oauthforge/core/consent"
	"github.com/oauthforge/core/orderedset"
)

// RawAuthorizeRequest is the untyped input the authorize endpoint parses
// out of the request body before validation.
type RawAuthorizeRequest struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
	PermissionGranted   string // "" (absent), "true", or "false"
	State               string
	ResourceOwnerID     string
}

// AuthorizeRequest is the validated, fully typed change set built from a
// RawAuthorizeRequest once every rule has passed.
type AuthorizeRequest struct {
	Client                *client.Client
	RedirectURI           string
	RedirectURISpecified  bool
	ResponseType          string
	Scope                 []string
	CodeChallenge         string
	PermissionGranted     bool
	State                 string
	ResourceOwnerID       string
	ExistingAuthorization *consent.Authorization
}

// ClientLookup resolves a client by id; it and AuthorizationLookup are
// the only I/O calls the authorize rules perform.
type ClientLookup func(ctx context.Context, id string) (*client.Client, error)

// AuthorizationLookup resolves the standing authorization for
// (clientID, ownerID), or consent.ErrNotFound.
type AuthorizationLookup func(ctx context.Context, clientID, ownerID string) (*consent.Authorization, error)

// Authorize runs the authorization-endpoint validation rules (spec.md
// §4.3) against raw, returning both the accumulated Validated change set
// and the Outcome classifying how a failure (if any) must be surfaced.
//
// Rules 1 and 2 short-circuit: nothing past them can be evaluated without
// a resolved client and a trusted redirect_uri. Every rule after that
// accumulates into v instead of returning on first failure, so a single
// response can report every problem a request has at once (spec.md §4.3,
// §8 scenario S4).
func Authorize(ctx context.Context, raw RawAuthorizeRequest, clients ClientLookup, authorizations AuthorizationLookup, cfg config.Config) (*Validated[AuthorizeRequest], Outcome) {
	v := New(AuthorizeRequest{ResourceOwnerID: raw.ResourceOwnerID, State: raw.State})

	// Rule 1: client_id.
	if raw.ClientID == "" {
		v.Fail("client_id", "client_id is required")
		return v, OutcomeNoRedirect
	}
	c, err := clients(ctx, raw.ClientID)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			v.Fail("client_id", "client_id does not resolve to a known client")
		} else {
			v.Fail("client_id", "could not resolve client")
		}
		return v, OutcomeNoRedirect
	}
	v.Value.Client = c

	// Rule 2: redirect_uri.
	switch {
	case raw.RedirectURI == "" && len(c.RedirectURIs) == 1:
		v.Value.RedirectURI = c.RedirectURIs[0]
		v.Value.RedirectURISpecified = false
	case raw.RedirectURI == "":
		v.Fail("redirect_uri", "redirect_uri is required when a client has more than one registered")
		return v, OutcomeNoRedirect
	case !c.HasRedirectURI(raw.RedirectURI):
		v.Fail("redirect_uri", "redirect_uri is not registered for this client")
		return v, OutcomeNoRedirect
	default:
		v.Value.RedirectURI = raw.RedirectURI
		v.Value.RedirectURISpecified = true
	}

	// From here on, redirect_uri is trusted: every remaining rule
	// accumulates into v rather than returning on its own first failure.
	// outcome starts at the common case (a redirect carrying a specific
	// OAuth error code) and individual rules below pin it to a stricter
	// class when theirs applies.
	outcome := OutcomeOtherChecks

	// Rule 3: response_type.
	responseTypeOK := false
	switch raw.ResponseType {
	case "":
		v.FailCode("invalid_request", "response_type", "response_type is required")
		outcome = OutcomeInvalidBeforeRedirect
	case "code":
		v.Value.ResponseType = "code"
		responseTypeOK = true
	default:
		v.FailCode("unsupported_response_type", "response_type", "response_type is not supported")
	}
	if responseTypeOK && !c.SupportsGrantType(client.GrantAuthorizationCode) {
		v.FailCode("unauthorized_client", "response_type", "client is not configured for the authorization_code grant")
	}

	// Rule 4: scope.
	existing, err := authorizations(ctx, c.ID, raw.ResourceOwnerID)
	hasExisting := err == nil
	if err != nil && !errors.Is(err, consent.ErrNotFound) {
		v.Fail("scope", "could not resolve existing authorization")
	} else {
		if hasExisting {
			v.Value.ExistingAuthorization = existing
		}
		switch {
		case raw.Scope != "":
			requested := orderedset.ParseScope(raw.Scope)
			switch {
			case !orderedset.Subset(requested, cfg.Scopes):
				v.FailCode("invalid_scope", "scope", "scope is not one of the application's configured scopes")
			case !orderedset.Subset(requested, c.Scope):
				v.FailCode("access_denied", "scope", "scope exceeds the client's configured scope")
			default:
				v.Value.Scope = requested
			}
		case hasExisting:
			v.Value.Scope = existing.Scope
		default:
			v.FailCode("invalid_scope", "scope", "scope is required when there is no prior authorization")
		}
	}

	// Rule 5: PKCE. When required and omitted, both fields are reported
	// together so the error_description aggregates them (spec.md §8 S4)
	// instead of naming only one.
	requiresPKCE := cfg.RequiresPKCE(c.ClientType == client.Public)
	pkceAbsent := raw.CodeChallenge == "" && raw.CodeChallengeMethod == ""
	switch {
	case pkceAbsent && !requiresPKCE:
		// no PKCE offered, none required
	case pkceAbsent && requiresPKCE:
		v.FailCode("invalid_request", "code_challenge", "can't be blank (PKCE is required)")
		v.FailCode("invalid_request", "code_challenge_method", "can't be blank")
	case raw.CodeChallenge == "" || raw.CodeChallengeMethod != "S256":
		v.FailCode("invalid_request", "code_challenge", "code_challenge and code_challenge_method=S256 must both be present")
	default:
		v.Value.CodeChallenge = raw.CodeChallenge
	}

	// Rule 6: permission_granted.
	switch raw.PermissionGranted {
	case "":
		v.Fail("permission_granted", "permission_granted is required")
		outcome = OutcomeNoRedirect
	case "true":
		v.Value.PermissionGranted = true
	default:
		v.FailCode("access_denied", "permission_granted", "permission_granted was not granted")
	}

	// Rule 7: state is carried through unconditionally; nothing to
	// validate beyond copying it into the change set, already done above.

	if !v.Ok() {
		return v, outcome
	}
	return v, OutcomeOK
}
