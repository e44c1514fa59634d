// internal/rules/evaluate.go
package rules

import (
	"fmt"

	"github.com/solatis/smsfilter/internal/types"
)

/*
 * Rule set evaluation.
 *
 * Scans the ordered rule set and lets the last matching rule decide:
 * BLOCK rules produce DecisionBlock, ALLOW rules DecisionPass. No match is
 * DecisionPass. The scan never stops early, because a later rule overrides
 * an earlier one; users place exceptions after the general rules they
 * relax.
 *
 * Evaluation is a pure function of (rules, message). Nothing is cached
 * between calls, and the slice is only read, so concurrent evaluations of
 * one snapshot are safe as long as nobody mutates it.
 */

// MatchResult describes the outcome of evaluating a rule set.
type MatchResult struct {
	Decision   types.Decision
	Rule       *FilterRule // deciding rule, nil when nothing matched
	Index      int         // position of Rule in the set, -1 when nil
	MatchCount int         // number of rules that matched
}

// Matched reports whether any rule matched.
func (m MatchResult) Matched() bool {
	return m.Rule != nil
}

// Evaluate applies the ordered rule set to msg.
func Evaluate(rules []*FilterRule, msg types.CandidateMessage) MatchResult {
	result := MatchResult{
		Decision: types.DecisionPass,
		Index:    -1,
	}

	for i, rule := range rules {
		if !rule.Matches(msg) {
			continue
		}
		result.Rule = rule
		result.Index = i
		result.MatchCount++
	}

	if result.Rule != nil {
		result.Decision = decisionFor(result.Rule.Action())
	}
	return result
}

// Decide returns only the decision of Evaluate.
func Decide(rules []*FilterRule, msg types.CandidateMessage) types.Decision {
	return Evaluate(rules, msg).Decision
}

func decisionFor(action types.FilterAction) types.Decision {
	switch action {
	case types.ActionBlock:
		return types.DecisionBlock
	case types.ActionAllow:
		return types.DecisionPass
	default:
		panic(fmt.Sprintf("rules: filter action %v escaped validation", action))
	}
}
