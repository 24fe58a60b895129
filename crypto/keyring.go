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
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Keyring derives per-field encryption and HMAC keys from a single server
// base secret. It is built once at process startup and held read-only for
// the lifetime of the process; it performs no I/O after construction.
//
// Purpose: Immutable holder of the derived key material secrets-at-rest and
// code-lookup hashing depend on.
// Domain: OAuth2
// Invariants: BaseSecret must be at least 32 bytes. Derived keys never
// change for a given (BaseSecret, field) pair.
type Keyring struct {
	base []byte
}

// NewKeyring builds a Keyring from the server's configured base secret.
func NewKeyring(baseSecret []byte) *Keyring {
	// copy defensively so the caller can't mutate key material out from
	// under a running process
	b := make([]byte, len(baseSecret))
	copy(b, baseSecret)
	return &Keyring{base: b}
}

// DeriveKey derives a 32-byte key scoped to field using HKDF-SHA256 with
// the base secret as input key material and field as the HKDF info
// parameter, so distinct fields (client_secret, code_challenge, grant_code)
// never share key material even under base-secret reuse.
func (k *Keyring) DeriveKey(field string) [32]byte {
	r := hkdf.New(sha256.New, k.base, nil, []byte(field))
	var out [32]byte
	if _, err := io.ReadFull(r, out[:]); err != nil {
		// hkdf.Reader only fails if more output is requested than the
		// expand step can produce (255*hash size); 32 bytes never hits
		// that ceiling, so this path is unreachable in practice.
		panic("crypto: hkdf expand failed: " + err.Error())
	}
	return out
}
