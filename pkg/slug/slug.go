// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package slug normalizes DNS host labels into tenant slugs.
//
// Tenant slugs are the first label of a portal hostname (e.g.,
// "dinkes" in dinkes.merauke.go.id).
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLabelLength is the longest DNS label RFC 1035 allows.
const MaxLabelLength = 63

// fold strips combining marks so "dinkés" and "dinkes" address the same tenant.
var fold = transform.Chain(norm.NFD, transform.RemoveFunc(func(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}), norm.NFC)

/*
Label returns the slug addressed by a single DNS host label.

Description: The label is accent-folded and lower-cased, then validated as
an RFC 1123 label. Nothing is rewritten: a label carrying any character
outside [a-z0-9-], or a leading/trailing hyphen, is not a slug.

Returns:
  - string: The slug, or "" when label cannot address a tenant
*/
func Label(label string) string {
	folded, _, err := transform.String(fold, label)
	if err != nil {
		return ""
	}
	folded = strings.ToLower(strings.TrimSpace(folded))

	if folded == "" || len(folded) > MaxLabelLength {
		return ""
	}
	if folded[0] == '-' || folded[len(folded)-1] == '-' {
		return ""
	}

	for index := 0; index < len(folded); index++ {
		character := folded[index]
		if (character < 'a' || character > 'z') && (character < '0' || character > '9') && character != '-' {
			return ""
		}
	}

	return folded
}
