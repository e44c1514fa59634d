// internal/rules/operators.go
package rules

import (
	"fmt"
	"strings"

	"github.com/solatis/smsfilter/internal/types"
)

/*
 * Plain text comparison for the non-REGEX match modes.
 *
 * Both arguments arrive already normalized (NFC, optionally case folded),
 * so each operator is a single strings call.
 *
 * Why function-based: four modes with one-line behavior read better as a
 * switch than as four matcher implementations.
 */

// compareText applies a plain match mode to value and needle.
func compareText(mode types.MatchMode, value, needle string) bool {
	switch mode {
	case types.ModeContains:
		return strings.Contains(value, needle)
	case types.ModeEquals:
		return value == needle
	case types.ModeStartsWith:
		return strings.HasPrefix(value, needle)
	case types.ModeEndsWith:
		return strings.HasSuffix(value, needle)
	default:
		panic(fmt.Sprintf("rules: compareText called with mode %v", mode))
	}
}
