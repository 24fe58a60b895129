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
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// nonceSize is the random IV length prepended to every ciphertext. A fixed,
// explicit size (rather than the AEAD's own NonceSize) keeps the on-disk
// format stable across any future cipher swap.
const nonceSize = 16

// sentinel is prefixed to the plaintext before sealing so that decrypting
// with the wrong derived key produces a detectable sentinel mismatch in
// addition to (not instead of) the GCM tag failing.
var sentinel = [4]byte{0x00, 0x00, 0x00, 0x00}

var (
	// ErrDecrypt is returned for any ciphertext that fails to authenticate
	// or does not carry the expected sentinel prefix once opened.
	ErrDecrypt = errors.New("crypto: decryption failed")
)

func aead(key [32]byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, nonceSize)
}

// Encrypt seals plaintext under the key derived for field, returning a
// URL-safe base64 blob of [nonce || ciphertext || tag]. Used for
// client.secret and grant.code_challenge at rest.
func (k *Keyring) Encrypt(field string, plaintext []byte) (string, error) {
	key := k.DeriveKey(field)
	gcm, err := aead(key)
	if err != nil {
		return "", fmt.Errorf("crypto: build aead: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("crypto: generate nonce: %w", err)
	}

	buf := make([]byte, 0, len(sentinel)+len(plaintext))
	buf = append(buf, sentinel[:]...)
	buf = append(buf, plaintext...)

	ciphertext := gcm.Seal(nil, nonce, buf, nil)

	out := make([]byte, 0, len(nonce)+len(ciphertext))
	out = append(out, nonce...)
	out = append(out, ciphertext...)

	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Decrypt opens a blob produced by Encrypt under the key derived for the
// same field. Decrypting with the wrong key (wrong field, or a rotated
// base secret) returns ErrDecrypt rather than garbage plaintext.
func (k *Keyring) Decrypt(field string, blob string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed encoding", ErrDecrypt)
	}
	if len(raw) < nonceSize {
		return nil, fmt.Errorf("%w: truncated ciphertext", ErrDecrypt)
	}

	key := k.DeriveKey(field)
	gcm, err := aead(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: build aead: %w", err)
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecrypt, err)
	}

	if len(plain) < len(sentinel) || [4]byte(plain[:4]) != sentinel {
		return nil, fmt.Errorf("%w: sentinel mismatch", ErrDecrypt)
	}

	return plain[4:], nil
}
