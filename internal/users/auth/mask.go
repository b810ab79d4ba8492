// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import "strings"

// maskVisibleRunes is how many leading local-part characters stay readable.
const maskVisibleRunes = 3

// MaskEmail hides the local part of an address behind '*' after its first
// three characters, keeping the domain intact (alice@example.com becomes
// ali**@example.com). Local parts of one character, and strings without '@',
// are returned unchanged.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}

	local := []rune(email[:at])
	if len(local) <= 1 {
		return email
	}

	visible := min(maskVisibleRunes, len(local))

	return string(local[:visible]) + strings.Repeat("*", len(local)-visible) + email[at:]
}
