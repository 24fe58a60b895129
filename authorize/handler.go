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

// Package authorize implements the /authorize state machine (spec.md
// §4.4): START -> NoRedirectChecks -> RedirectBaseChecks -> OtherChecks ->
// Authorize -> RespondRedirect. Validation itself lives in package
// validate; this package only shapes the HTTP request/response around it.
package authorize

import (
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/oauthforge/core/audit"
	"github.com/oauthforge/core/client"
	"github.com/oauthforge/core/config"
	"github.com/oauthforge/core/consent"
	"github.com/oauthforge/core/grant"
	"github.com/oauthforge/core/validate"
)

// PrincipalExtractor resolves the already-authenticated resource owner id
// from the incoming request. User authentication is external to this
// core; the consent UI is expected to run behind whatever session
// middleware the host application already has.
type PrincipalExtractor func(r *http.Request) (ownerID string, ok bool)

// Handler serves POST /authorize.
//
// Purpose: HTTP entry point for the authorization endpoint (C4).
// Domain: OAuth2
type Handler struct {
	clients        *client.Service
	authorizations consent.Repository
	grants         *grant.Service
	cfg            config.Config
	principal      PrincipalExtractor
	audit          audit.Logger
}

// NewHandler builds an authorize Handler.
func NewHandler(clients *client.Service, authorizations consent.Repository, grants *grant.Service, cfg config.Config, principal PrincipalExtractor, auditLogger audit.Logger) *Handler {
	return &Handler{
		clients:        clients,
		authorizations: authorizations,
		grants:         grants,
		cfg:            cfg,
		principal:      principal,
		audit:          auditLogger,
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// every response, success or error, carries these per spec.md §4.4
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	ownerID, ok := h.principal(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"errors": map[string][]string{"principal": {"authentication required"}},
		})
		return
	}

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"errors": map[string][]string{"body": {"could not parse request body"}},
		})
		return
	}

	raw := validate.RawAuthorizeRequest{
		ClientID:            r.Form.Get("client_id"),
		RedirectURI:         r.Form.Get("redirect_uri"),
		ResponseType:        r.Form.Get("response_type"),
		Scope:               r.Form.Get("scope"),
		CodeChallenge:       r.Form.Get("code_challenge"),
		CodeChallengeMethod: r.Form.Get("code_challenge_method"),
		PermissionGranted:   r.Form.Get("permission_granted"),
		State:               r.Form.Get("state"),
		ResourceOwnerID:     ownerID,
	}

	v, outcome := validate.Authorize(r.Context(), raw, h.clients.Get, h.authorizations.Get, h.cfg)
	if outcome != validate.OutcomeOK {
		h.respondError(w, v, outcome)
		return
	}

	h.issue(w, r, v.Value)
}

// issue carries out the Authorize state: upsert the authorization, mint a
// grant, and respond with the redirect envelope.
func (h *Handler) issue(w http.ResponseWriter, r *http.Request, req validate.AuthorizeRequest) {
	ctx := r.Context()

	auth, err := h.authorizations.Upsert(ctx, req.Client.ID, req.ResourceOwnerID, req.Scope)
	if err != nil {
		writeServerError(w)
		return
	}
	h.log(r, audit.TypeAuthorizationGranted, req.Client.ID, audit.ResourceAuthorization, auth.ID)

	g, code, err := h.grants.Issue(ctx, grant.IssueParams{
		AuthorizationID:      auth.ID,
		ResourceOwnerID:      req.ResourceOwnerID,
		RedirectURI:          req.RedirectURI,
		RedirectURISpecified: req.RedirectURISpecified,
		CodeChallenge:        req.CodeChallenge,
		TTL:                  h.cfg.GrantTTL,
	})
	if err != nil {
		writeServerError(w)
		return
	}
	h.log(r, audit.TypeGrantIssued, req.Client.ID, audit.ResourceGrant, g.ID)

	redirectTo := buildRedirect(req.RedirectURI, url.Values{"code": {code}}, req.State)
	writeJSON(w, http.StatusOK, map[string]string{"redirect_to": redirectTo})
}

// respondError shapes a validation failure into the response spec.md §4.3
// requires for its Outcome: a bare 400 for NoRedirect, otherwise a
// redirect carrying an OAuth error code.
func (h *Handler) respondError(w http.ResponseWriter, v *validate.Validated[validate.AuthorizeRequest], outcome validate.Outcome) {
	if outcome == validate.OutcomeNoRedirect {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": v.Errors})
		return
	}

	code := v.Code
	if code == "" {
		_, code = v.FirstError()
	}
	params := url.Values{
		"error":             {code},
		"error_description": {describeErrors(v.Errors)},
	}
	redirectTo := buildRedirect(v.Value.RedirectURI, params, v.Value.State)
	writeJSON(w, http.StatusOK, map[string]string{"redirect_to": redirectTo})
}

func (h *Handler) log(r *http.Request, eventType, clientID, resource, targetID string) {
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

// buildRedirect appends params, and state if non-empty, to base's query
// string without disturbing any query parameters base already carries.
func buildRedirect(base string, params url.Values, state string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	for k, vals := range params {
		for _, val := range vals {
			q.Set(k, val)
		}
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// describeErrors renders an accumulated error map as a single deterministic
// string for error_description, sorted so repeated requests with the same
// failures produce identical output.
func describeErrors(errs map[string][]string) string {
	parts := make([]string, 0, len(errs))
	for field, msgs := range errs {
		for _, m := range msgs {
			parts = append(parts, field+": "+m)
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
