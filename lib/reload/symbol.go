// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reload

import (
	"strings"
	"unicode"
)

// SymbolPrefix starts every registration function name.
const SymbolPrefix = "Register"

// SymbolName returns the registration function a module built for
// unit must export: "Register" followed by unit in CamelCase, split on
// any character that is not a letter or digit. A unit named
// "space_invaders" exports RegisterSpaceInvaders.
func SymbolName(unit string) string {
	var builder strings.Builder
	builder.WriteString(SymbolPrefix)
	upper := true
	for _, r := range unit {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		builder.WriteRune(r)
	}
	return builder.String()
}
