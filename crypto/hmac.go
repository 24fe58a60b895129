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

package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// HMACCode computes a keyed, non-reversible digest of a grant's
// authorization code for storage: the database holds only this digest, so
// a leak of the grants table does not expose usable codes, while an exact
// lookup by digest is still a plain equality query.
func (k *Keyring) HMACCode(code string) string {
	key := k.DeriveKey("grant_code")
	h := hmac.New(sha256.New, key[:])
	h.Write([]byte(code))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// ConstantTimeEqual compares two strings without leaking timing
// information about where they first differ. Use for client_secret,
// code_verifier vs code_challenge, and any other token-like comparison.
func ConstantTimeEqual(a, b string) bool {
	// The length check returns early, so timing can reveal whether the
	// lengths match but never where the contents first differ;
	// subtle.ConstantTimeCompare then compares equal-length inputs in
	// constant time.
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
