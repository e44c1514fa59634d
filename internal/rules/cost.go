// internal/rules/cost.go
package rules

import "github.com/solatis/smsfilter/internal/types"

/*
 * Cost model for pattern evaluation.
 *
 * A rule is the AND of its sender and body patterns. The side with the
 * lower cost is tested first so a cheap mismatch skips the expensive side.
 * Costs are relative, not measured: equality stops at the first differing
 * byte, prefix/suffix read at most len(pattern), contains scans the whole
 * candidate and REGEX runs an automaton over it.
 *
 * Case folding allocates a folded copy of the candidate, hence the multiplier.
 */

const (
	CostUnset      = 0
	CostEquals     = 5
	CostStartsWith = 8
	CostEndsWith   = 8
	CostContains   = 20
	CostRegex      = 100

	// MultiplierFold applies to case-insensitive plain modes.
	MultiplierFold = 2
)

// PatternCost returns the relative evaluation cost of a pattern.
func PatternCost(p FieldPattern) int {
	if !p.IsSet() {
		return CostUnset
	}
	cost := modeCost(p.Mode())
	if !p.CaseSensitive() && p.Mode() != types.ModeRegex {
		cost *= MultiplierFold
	}
	return cost
}

func modeCost(mode types.MatchMode) int {
	switch mode {
	case types.ModeEquals:
		return CostEquals
	case types.ModeStartsWith:
		return CostStartsWith
	case types.ModeEndsWith:
		return CostEndsWith
	case types.ModeContains:
		return CostContains
	case types.ModeRegex:
		return CostRegex
	default:
		return CostUnset
	}
}
