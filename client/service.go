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

package client

import (
	"context"
	"fmt"

	"github.com/oauthforge/core/crypto"
)

// secretField is the Keyring field name client secrets are derived under.
const secretField = "client_secret"

// Service wraps a Repository with the secret encryption and constant-time
// authentication logic the protocol core needs, keeping crypto key
// material out of the repository layer entirely.
//
// Purpose: Business logic for client lookup and authentication.
// Domain: OAuth2
type Service struct {
	repo    Repository
	keyring *crypto.Keyring
}

// NewService creates a new client service.
func NewService(repo Repository, keyring *crypto.Keyring) *Service {
	return &Service{repo: repo, keyring: keyring}
}

// Get resolves a client by id.
func (s *Service) Get(ctx context.Context, id string) (*Client, error) {
	return s.repo.GetByID(ctx, id)
}

// Authenticate reports whether secret matches the client's stored secret.
// A public client with no stored secret requirement still authenticates a
// supplied secret if one is present (spec.md §4.5: "if supplied, it must
// still match"), so callers must decide separately whether an empty
// secret is acceptable for a public client.
func (s *Service) Authenticate(c *Client, secret string) (bool, error) {
	plain, err := s.keyring.Decrypt(secretField, c.SecretEncrypted)
	if err != nil {
		return false, fmt.Errorf("client: decrypt secret: %w", err)
	}
	return crypto.ConstantTimeEqual(string(plain), secret), nil
}

// EncryptSecret encrypts a freshly generated plaintext secret for storage.
// Every write regenerates the secret (spec.md §3: "regenerated on every
// write"), so there is no UpdateSecret operation that preserves the old
// value.
func (s *Service) EncryptSecret(plaintext string) (string, error) {
	return s.keyring.Encrypt(secretField, []byte(plaintext))
}

// GenerateSecret returns a fresh high-entropy client secret.
func GenerateSecret() string {
	return crypto.RandomToken(crypto.DefaultTokenBytes)
}

// UpdateScope narrows a client's scope and cascades the intersection to
// its authorizations via the repository's transactional implementation.
func (s *Service) UpdateScope(ctx context.Context, clientID string, newScope []string) error {
	return s.repo.UpdateScope(ctx, clientID, newScope)
}
