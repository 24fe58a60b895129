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

// Package validate builds validated "change sets" out of untyped request
// input. Authorize accumulates errors past its client and redirect_uri
// checks, so a single authorize error response can report every problem a
// request has at once; Token returns at its first failing rule, since the
// token endpoint's error envelope carries a single error code.
package validate

// Validated wraps a parsed value together with any field errors found
// while building it. It is generic over the change-set type each endpoint
// produces (authorize's request, token's request, ...).
//
// Purpose: Error-aggregating container shared by every request validator.
// Domain: OAuth2
// Invariants: Ok() is true iff Errors is empty.
type Validated[T any] struct {
	Value  T
	Errors map[string][]string

	// Code is the canonical OAuth error code for the response's error=
	// parameter, pinned by whichever rule fails first. It is kept separate
	// from the per-field messages in Errors because a rule's human-readable
	// description (e.g. "can't be blank (PKCE is required)") and the fixed
	// protocol error code it maps to (e.g. "invalid_request") are two
	// different things, and later rules must not overwrite it.
	Code string
}

// New starts a Validated around a zero/partially-filled value.
func New[T any](value T) *Validated[T] {
	return &Validated[T]{Value: value, Errors: map[string][]string{}}
}

// Fail appends msg to the error list for field. It never overwrites prior
// errors for the same field, so multiple rules can all report on it.
func (v *Validated[T]) Fail(field, msg string) *Validated[T] {
	v.Errors[field] = append(v.Errors[field], msg)
	return v
}

// FailCode is Fail plus first-call-wins assignment of the canonical OAuth
// error code, for rules whose field message is human-readable text rather
// than the literal code to return.
func (v *Validated[T]) FailCode(code, field, msg string) *Validated[T] {
	v.Fail(field, msg)
	if v.Code == "" {
		v.Code = code
	}
	return v
}

// Ok reports whether no rule has failed.
func (v *Validated[T]) Ok() bool {
	return len(v.Errors) == 0
}

// FirstError returns one (field, message) pair from the accumulated
// errors. Field iteration order is undefined in Go, so when several
// fields failed, which pair is returned is not deterministic; callers
// that care about precedence should inspect v.Code or v.Errors directly
// instead of relying on which error this returns.
func (v *Validated[T]) FirstError() (field, msg string) {
	for f, msgs := range v.Errors {
		if len(msgs) > 0 {
			return f, msgs[0]
		}
	}
	return "", ""
}

// Outcome classifies an authorize-endpoint validation failure by the HTTP
// behavior it requires (spec.md §4.3): a sum type of exactly these three
// variants, so the endpoint's response-shaping switch can be exhaustive.
type Outcome int

const (
	// OutcomeOK means every rule passed; proceed to issue the grant.
	OutcomeOK Outcome = iota

	// OutcomeNoRedirect means client_id or redirect_uri itself could not
	// be trusted, or permission_granted was missing, so the error must be
	// a JSON 400, never a redirect.
	OutcomeNoRedirect

	// OutcomeInvalidBeforeRedirect means redirect_uri is trusted but the
	// response_type/code_challenge_method shape was not even lexically
	// recognizable; responds with a redirect carrying error=invalid_request.
	OutcomeInvalidBeforeRedirect

	// OutcomeOtherChecks means redirect_uri and the lexical shape are
	// fine but a semantic rule failed (scope, PKCE, permission, grant
	// type support); responds with a redirect carrying a specific OAuth
	// error code.
	OutcomeOtherChecks
)
