// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"fmt"

	"github.com/taibuivan/skpdportal/internal/platform/sec"
)

// CredentialVerifier compares a supplied password with an account's hash.
type CredentialVerifier interface {
	Verify(password string, account *Account) bool
}

// Verifier is the bcrypt [CredentialVerifier].
//
// With no account it still runs a full comparison against a decoy hash of the
// same cost, so unknown identifiers cost as much wall-clock time as wrong passwords.
type Verifier struct {
	decoyHash string
}

// NewVerifier generates the decoy hash once; cost must equal the cost of stored hashes.
func NewVerifier(cost int) (*Verifier, error) {
	decoy, err := sec.NewDecoyHash(cost)
	if err != nil {
		return nil, fmt.Errorf("auth_verifier_decoy_failed: %w", err)
	}
	return &Verifier{decoyHash: decoy}, nil
}

// Verify reports whether password matches the account's hash. It never
// returns before a bcrypt comparison has run.
func (verifier *Verifier) Verify(password string, account *Account) bool {
	hash := verifier.decoyHash
	if account != nil && account.PasswordHash != "" {
		hash = account.PasswordHash
	}

	matched := sec.CheckPasswordHash(password, hash)

	return matched && account != nil
}
