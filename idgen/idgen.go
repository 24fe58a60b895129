// Copyright 2026 The OAuthForge Authors
// SPDX-License-Identifier: Apache-2.0

// Package idgen generates the opaque, globally-unique identifiers used for
// clients, authorizations, and grants.
package idgen

import "github.com/google/uuid"

// New returns a time-ordered UUID (v7) string suitable as a primary key.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 could not read randomness; fall back to a random (v4)
		// UUID, which panics if the entropy source fails again
		return uuid.NewString()
	}
	return id.String()
}

// Valid reports whether s parses as a UUID.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
