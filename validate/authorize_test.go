// Copyright 2026 The OAuthForge Authors
// SPDX-License-Identifier: MIT

package validate

import (
	"context"
	"testing"

	"github.com/oauthforge/core/client"
	"github.com/oauthforge/core/config"
	"github.com/oauthforge/core/consent"
)

func testClient() *client.Client {
	return &client.Client{
		ID:           "client-1",
		RedirectURIs: []string{"https://app.example/cb"},
		Scope:        []string{"read", "write"},
		GrantTypes:   []string{client.GrantAuthorizationCode, client.GrantRefreshToken},
		ClientType:   client.Confidential,
	}
}

func lookupClient(c *client.Client) ClientLookup {
	return func(ctx context.Context, id string) (*client.Client, error) {
		if id == c.ID {
			return c, nil
		}
		return nil, client.ErrNotFound
	}
}

func noAuthorization(ctx context.Context, clientID, ownerID string) (*consent.Authorization, error) {
	return nil, consent.ErrNotFound
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Scopes = []string{"read", "write"}
	return cfg
}

func baseRaw(c *client.Client) RawAuthorizeRequest {
	return RawAuthorizeRequest{
		ClientID:            c.ID,
		RedirectURI:         c.RedirectURIs[0],
		ResponseType:        "code",
		Scope:               "read",
		CodeChallenge:       "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		CodeChallengeMethod: "S256",
		PermissionGranted:   "true",
		State:               "xyz",
		ResourceOwnerID:     "user-42",
	}
}

func TestAuthorizeHappyPath(t *testing.T) {
	c := testClient()
	cfg := testConfig()

	raw := baseRaw(c)
	raw.RedirectURI = ""

	v, outcome := Authorize(context.Background(), raw, lookupClient(c), noAuthorization, cfg)

	if outcome != OutcomeOK {
		t.Fatalf("expected OutcomeOK, got %v (errors: %v)", outcome, v.Errors)
	}
	if !v.Ok() {
		t.Fatalf("expected no errors, got %v", v.Errors)
	}
	if v.Value.RedirectURI != c.RedirectURIs[0] {
		t.Errorf("redirect_uri = %q, want %q", v.Value.RedirectURI, c.RedirectURIs[0])
	}
	if v.Value.RedirectURISpecified {
		t.Error("expected RedirectURISpecified=false when the only registered URI was used implicitly")
	}
}

func TestAuthorizeUnknownClientIsNoRedirect(t *testing.T) {
	raw := baseRaw(testClient())
	raw.ClientID = "does-not-exist"

	v, outcome := Authorize(context.Background(), raw, lookupClient(testClient()), noAuthorization, config.Default())

	if outcome != OutcomeNoRedirect {
		t.Fatalf("expected OutcomeNoRedirect, got %v", outcome)
	}
	if v.Ok() {
		t.Fatal("expected a client_id error")
	}
}

func TestAuthorizeRedirectURIMismatchIsNoRedirect(t *testing.T) {
	c := testClient()
	raw := baseRaw(c)
	raw.RedirectURI = "https://evil.example/cb"

	_, outcome := Authorize(context.Background(), raw, lookupClient(c), noAuthorization, config.Default())

	if outcome != OutcomeNoRedirect {
		t.Fatalf("expected OutcomeNoRedirect for an unregistered redirect_uri, got %v", outcome)
	}
}

func TestAuthorizeMissingRedirectURIWithMultipleRegistered(t *testing.T) {
	c := testClient()
	c.RedirectURIs = append(c.RedirectURIs, "https://app.example/cb2")
	raw := baseRaw(c)
	raw.RedirectURI = ""

	_, outcome := Authorize(context.Background(), raw, lookupClient(c), noAuthorization, config.Default())

	if outcome != OutcomeNoRedirect {
		t.Fatalf("expected OutcomeNoRedirect when redirect_uri is required but omitted, got %v", outcome)
	}
}

func TestAuthorizeUnsupportedResponseType(t *testing.T) {
	c := testClient()
	raw := baseRaw(c)
	raw.ResponseType = "token"

	v, outcome := Authorize(context.Background(), raw, lookupClient(c), noAuthorization, testConfig())

	if outcome != OutcomeOtherChecks {
		t.Fatalf("expected OutcomeOtherChecks, got %v", outcome)
	}
	if v.Code != "unsupported_response_type" {
		t.Errorf("expected unsupported_response_type, got %q", v.Code)
	}
}

func TestAuthorizeScopeExceedsClientScope(t *testing.T) {
	c := testClient()
	cfg := config.Default()
	cfg.Scopes = []string{"read", "write", "admin"}
	raw := baseRaw(c)
	raw.Scope = "admin"

	v, outcome := Authorize(context.Background(), raw, lookupClient(c), noAuthorization, cfg)

	if outcome != OutcomeOtherChecks {
		t.Fatalf("expected OutcomeOtherChecks, got %v", outcome)
	}
	if v.Code != "access_denied" {
		t.Errorf("expected access_denied, got %q", v.Code)
	}
}

func TestAuthorizeScopeNotInApplicationScopes(t *testing.T) {
	c := testClient()
	cfg := config.Default()
	cfg.Scopes = []string{"read", "write"}
	raw := baseRaw(c)
	raw.Scope = "nonexistent"

	_, outcome := Authorize(context.Background(), raw, lookupClient(c), noAuthorization, cfg)

	if outcome != OutcomeOtherChecks {
		t.Fatalf("expected OutcomeOtherChecks, got %v", outcome)
	}
}

func TestAuthorizeMissingScopeUsesExistingAuthorization(t *testing.T) {
	c := testClient()
	raw := baseRaw(c)
	raw.Scope = ""

	existing := &consent.Authorization{ClientID: c.ID, ResourceOwnerID: raw.ResourceOwnerID, Scope: []string{"write"}}
	lookupAuth := func(ctx context.Context, clientID, ownerID string) (*consent.Authorization, error) {
		return existing, nil
	}

	v, outcome := Authorize(context.Background(), raw, lookupClient(c), lookupAuth, config.Default())

	if outcome != OutcomeOK {
		t.Fatalf("expected OutcomeOK, got %v (%v)", outcome, v.Errors)
	}
	if len(v.Value.Scope) != 1 || v.Value.Scope[0] != "write" {
		t.Errorf("expected scope carried over from existing authorization, got %v", v.Value.Scope)
	}
}

func TestAuthorizeMissingScopeNoExistingAuthorizationFails(t *testing.T) {
	c := testClient()
	raw := baseRaw(c)
	raw.Scope = ""

	_, outcome := Authorize(context.Background(), raw, lookupClient(c), noAuthorization, config.Default())

	if outcome != OutcomeOtherChecks {
		t.Fatalf("expected OutcomeOtherChecks when scope is omitted with no prior authorization, got %v", outcome)
	}
}

func TestAuthorizePKCERequiredButMissing(t *testing.T) {
	c := testClient()
	cfg := testConfig()
	cfg.EnforcePKCE = config.PKCEAll
	raw := baseRaw(c)
	raw.CodeChallenge = ""
	raw.CodeChallengeMethod = ""

	v, outcome := Authorize(context.Background(), raw, lookupClient(c), noAuthorization, cfg)

	if outcome != OutcomeOtherChecks {
		t.Fatalf("expected OutcomeOtherChecks, got %v", outcome)
	}
	if v.Code != "invalid_request" {
		t.Errorf("expected invalid_request, got %q", v.Code)
	}
	if msgs := v.Errors["code_challenge"]; len(msgs) != 1 || msgs[0] != "can't be blank (PKCE is required)" {
		t.Errorf("expected code_challenge: can't be blank (PKCE is required), got %v", msgs)
	}
	if msgs := v.Errors["code_challenge_method"]; len(msgs) != 1 || msgs[0] != "can't be blank" {
		t.Errorf("expected code_challenge_method: can't be blank, got %v", msgs)
	}
}

func TestAuthorizePKCENotRequiredAndAbsent(t *testing.T) {
	c := testClient()
	cfg := testConfig()
	cfg.EnforcePKCE = config.PKCENone
	raw := baseRaw(c)
	raw.CodeChallenge = ""
	raw.CodeChallengeMethod = ""

	_, outcome := Authorize(context.Background(), raw, lookupClient(c), noAuthorization, cfg)

	if outcome != OutcomeOK {
		t.Fatalf("expected OutcomeOK when PKCE is not enforced and omitted, got %v", outcome)
	}
}

func TestAuthorizePermissionDenied(t *testing.T) {
	c := testClient()
	raw := baseRaw(c)
	raw.PermissionGranted = "false"

	v, outcome := Authorize(context.Background(), raw, lookupClient(c), noAuthorization, testConfig())

	if outcome != OutcomeOtherChecks {
		t.Fatalf("expected OutcomeOtherChecks, got %v", outcome)
	}
	if v.Code != "access_denied" {
		t.Errorf("expected access_denied, got %q", v.Code)
	}
}

func TestAuthorizePermissionMissingIsNoRedirect(t *testing.T) {
	c := testClient()
	raw := baseRaw(c)
	raw.PermissionGranted = ""

	_, outcome := Authorize(context.Background(), raw, lookupClient(c), noAuthorization, testConfig())

	if outcome != OutcomeNoRedirect {
		t.Fatalf("expected OutcomeNoRedirect for a missing permission_granted, got %v", outcome)
	}
}
