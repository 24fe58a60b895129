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

// Package token implements the /token endpoint (spec.md §4.5): client
// authentication, authorization-code redemption, and refresh-token
// exchange, each ending in a call into the pluggable session.TokenMinter.
package token

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"time"

	"github.com/oauthforge/core/audit"
	"github.com/oauthforge/core/client"
	"github.com/oauthforge/core/config"
	"github.com/oauthforge/core/consent"
	"github.com/oauthforge/core/grant"
	"github.com/oauthforge/core/orderedset"
	"github.com/oauthforge/core/session"
	"github.com/oauthforge/core/validate"
)

// maxBodyBytes bounds the request body the token endpoint will read
// (spec.md §4.5: "Sizes are bounded (<=1 MB)").
const maxBodyBytes = 1 << 20

var errorDescriptions = map[validate.TokenError]string{
	validate.ErrUnsupportedGrantType: "grant_type is missing or not supported",
	validate.ErrInvalidClient:        "client authentication failed",
	validate.ErrInvalidGrant:         "the grant is invalid, expired, or already used",
	validate.ErrInvalidScope:         "requested scope exceeds what was granted",
	validate.ErrUnauthorizedClient:   "client is not authorized to use this grant type",
}

// Handler serves POST /token.
//
// Purpose: HTTP entry point for the token endpoint (C5).
// Domain: OAuth2
type Handler struct {
	clients        *client.Service
	authorizations consent.Repository
	grants         *grant.Service
	minter         session.TokenMinter
	verifier       session.RefreshTokenVerifier
	cfg            config.Config
	audit          audit.Logger
}

// NewHandler builds a token Handler.
func NewHandler(clients *client.Service, authorizations consent.Repository, grants *grant.Service, minter session.TokenMinter, verifier session.RefreshTokenVerifier, cfg config.Config, auditLogger audit.Logger) *Handler {
	return &Handler{
		clients:        clients,
		authorizations: authorizations,
		grants:         grants,
		minter:         minter,
		verifier:       verifier,
		cfg:            cfg,
		audit:          auditLogger,
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		h.writeCORSPreflight(w)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/x-www-form-urlencoded" {
		w.WriteHeader(http.StatusUnsupportedMediaType)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writeTokenError(w, validate.ErrInvalidRequest, "could not parse request body")
		return
	}

	raw := validate.RawTokenRequest{
		GrantType:    r.PostForm.Get("grant_type"),
		Code:         r.PostForm.Get("code"),
		RedirectURI:  r.PostForm.Get("redirect_uri"),
		CodeVerifier: r.PostForm.Get("code_verifier"),
		RefreshToken: r.PostForm.Get("refresh_token"),
		Scope:        r.PostForm.Get("scope"),
	}

	if basicID, basicSecret, ok := r.BasicAuth(); ok {
		raw.ClientID = basicID
		raw.ClientSecret = basicSecret
		raw.UsedBasic = true
	} else {
		raw.ClientID = r.PostForm.Get("client_id")
		raw.ClientSecret = r.PostForm.Get("client_secret")
	}

	verifyRefresh := func(ctx context.Context, rawToken string) (*session.RefreshClaims, error) {
		claims, err := h.verifier.Verify(ctx, rawToken)
		if errors.Is(err, session.ErrRefreshReused) {
			h.log(r, raw.ClientID, audit.TypeRefreshReused, audit.ResourceSession, "")
		}
		return claims, err
	}

	tr, tokenErr, unauthorized := validate.Token(
		r.Context(), raw,
		h.clients.Get,
		h.clients.Authenticate,
		h.authorizations.Get,
		h.grants.Lookup,
		h.grants.DecryptChallenge,
		verifyRefresh,
	)
	if tokenErr != "" {
		if unauthorized {
			h.log(r, raw.ClientID, audit.TypeClientAuthFailed, audit.ResourceClient, raw.ClientID)
			w.Header().Set("WWW-Authenticate", "Basic")
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(string(tokenErr)))
			return
		}
		writeTokenError(w, tokenErr, errorDescriptions[tokenErr])
		return
	}

	h.issue(w, r, raw, tr)
}

// issue redeems the grant (authorization_code flow), mints tokens, and
// writes the success envelope.
func (h *Handler) issue(w http.ResponseWriter, r *http.Request, raw validate.RawTokenRequest, tr *validate.TokenRequest) {
	ctx := r.Context()

	resourceOwnerID := tr.Authorization.ResourceOwnerID
	eventType := audit.TypeTokenIssued

	if raw.GrantType == client.GrantAuthorizationCode {
		deleted, err := h.grants.Redeem(ctx, raw.Code)
		if err != nil {
			writeServerError(w)
			return
		}
		if !deleted {
			writeTokenError(w, validate.ErrInvalidGrant, errorDescriptions[validate.ErrInvalidGrant])
			return
		}
		h.log(r, tr.Client.ID, audit.TypeGrantRedeemed, audit.ResourceGrant, tr.Grant.ID)
	} else {
		resourceOwnerID = tr.RefreshClaims.Subject
		eventType = audit.TypeTokenRefreshed
	}

	scope := tr.Scope
	if scope == nil {
		scope = tr.Authorization.Scope
	}

	args := session.UpsertArgs{
		UserID:         resourceOwnerID,
		TokenTransport: session.TokenTransportBearer,
		SessionType:    session.TypeOAuth2,
		AccessClaimOverrides: map[string]any{
			"cid":   tr.Client.ID,
			"scope": scope,
		},
		RefreshClaimOverrides: map[string]any{
			"cid": tr.Client.ID,
		},
		IssueRefreshToken: true,
	}
	if h.cfg.CustomizeSessionUpsertArgs != nil {
		view := config.SessionUpsertArgsView{
			UserID:                args.UserID,
			AccessClaimOverrides:  args.AccessClaimOverrides,
			RefreshClaimOverrides: args.RefreshClaimOverrides,
		}
		h.cfg.CustomizeSessionUpsertArgs(&view)
		args.AccessClaimOverrides = view.AccessClaimOverrides
		args.RefreshClaimOverrides = view.RefreshClaimOverrides
	}

	bundle, err := h.minter.Mint(ctx, args)
	if err != nil {
		if errors.Is(err, session.ErrRefreshReused) {
			h.log(r, tr.Client.ID, audit.TypeRefreshReused, audit.ResourceSession, resourceOwnerID)
			writeTokenError(w, validate.ErrInvalidGrant, "refresh token already used")
			return
		}
		writeServerError(w)
		return
	}
	h.log(r, tr.Client.ID, eventType, audit.ResourceToken, resourceOwnerID)

	now := time.Now()
	resp := map[string]any{
		"access_token": bundle.AccessToken,
		"expires_in":   int(bundle.AccessTokenExpiresAt.Sub(now).Seconds()),
		"scope":        orderedset.SerializeScope(scope),
		"token_type":   session.TokenTransportBearer,
	}
	if bundle.RefreshToken != "" {
		resp["refresh_token"] = bundle.RefreshToken
		resp["refresh_expires_in"] = int(bundle.RefreshExpiresAt.Sub(now).Seconds())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeCORSPreflight(w http.ResponseWriter) {
	headers := "authorization,content-type"
	for _, extra := range h.cfg.AdditionalAllowedHeaders {
		headers += "," + extra
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST")
	w.Header().Set("Access-Control-Allow-Headers", headers)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) log(r *http.Request, clientID, eventType, resource, targetID string) {
	if h.audit == nil {
		return
	}
	h.audit.Log(r.Context(), audit.Event{
		Type:      eventType,
		ActorID:   clientID,
		Resource:  resource,
		TargetID:  targetID,
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
}

func writeTokenError(w http.ResponseWriter, code validate.TokenError, description string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error":             string(code),
		"error_description": description,
	})
}

func writeServerError(w http.ResponseWriter) {
	writeTokenError(w, "server_error", "internal error")
}
