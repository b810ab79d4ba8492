// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plain-text password using bcrypt at the given cost.
func HashPassword(plainTextPassword string, cost int) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plainTextPassword), cost)
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// CheckPasswordHash compares a plain-text password with its hashed version.
func CheckPasswordHash(plainTextPassword, existingHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(existingHash), []byte(plainTextPassword))
	return err == nil
}

/*
NewDecoyHash produces a bcrypt hash of a random secret at the given cost.

Comparing against it costs exactly as much as comparing against a real
account hash, so a login for an unknown identifier takes as long as a
login with a wrong password. Nobody knows the preimage; no password matches.
*/
func NewDecoyHash(cost int) (string, error) {
	secret, err := GenerateSecureToken()
	if err != nil {
		return "", fmt.Errorf("sec: failed to generate decoy secret: %w", err)
	}

	return HashPassword(secret, cost)
}
