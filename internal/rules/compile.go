// internal/rules/compile.go
package rules

import (
	"fmt"

	"github.com/solatis/smsfilter/internal/types"
)

/*
 * Rule compilation and validation.
 *
 * Compiles types.Rule into an immutable FilterRule: action parsed, both
 * patterns validated (REGEX compiled), the "at least one pattern" invariant
 * checked, and the evaluation order of the two sides fixed by cost.
 *
 * Why compile-time validation: a rule that reaches the evaluator is known to
 * be well formed, so evaluation has no error path. Every rule creation path
 * (CLI, import, storage load) goes through Compile or NewFilterRule.
 *
 * Lifecycle: rules are created transient (empty ID), receive an ID from the
 * store through WithID, and are never mutated. An update is a delete plus a
 * new rule.
 */

// FilterRule is a validated rule ready for evaluation.
type FilterRule struct {
	id          types.RuleID
	action      types.FilterAction
	sender      FieldPattern
	body        FieldPattern
	senderFirst bool // evaluate sender before body
}

// NewFilterRule builds a transient rule from validated patterns.
// Returns ErrInvalidEnumValue for an unknown action and ErrInvalidRule when
// both patterns are unset.
func NewFilterRule(action types.FilterAction, sender, body FieldPattern) (*FilterRule, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("%w: filter action %d", types.ErrInvalidEnumValue, int(action))
	}
	// A rule with no pattern would match every message.
	if !sender.IsSet() && !body.IsSet() {
		return nil, fmt.Errorf("%w: need at least one sender or body pattern", types.ErrInvalidRule)
	}

	return &FilterRule{
		action:      action,
		sender:      sender,
		body:        body,
		senderFirst: PatternCost(sender) <= PatternCost(body),
	}, nil
}

// Compile validates a raw rule definition and returns the compiled rule.
// The rule ID is carried over unchanged.
func Compile(rule *types.Rule) (*FilterRule, error) {
	sender, err := PatternFromSpec(rule.Sender)
	if err != nil {
		return nil, fmt.Errorf("sender pattern: %w", err)
	}
	body, err := PatternFromSpec(rule.Body)
	if err != nil {
		return nil, fmt.Errorf("body pattern: %w", err)
	}

	compiled, err := NewFilterRule(rule.Action, sender, body)
	if err != nil {
		return nil, err
	}
	compiled.id = rule.ID
	return compiled, nil
}

// CompileAll compiles an ordered list of definitions, stopping at the first
// invalid one. Either every rule compiles or nil is returned.
func CompileAll(defs []types.Rule) ([]*FilterRule, error) {
	if len(defs) > types.MaxRuleSetSize {
		return nil, fmt.Errorf("%w: %d rules (max %d)", types.ErrTooManyRules, len(defs), types.MaxRuleSetSize)
	}
	compiled := make([]*FilterRule, 0, len(defs))
	for i := range defs {
		r, err := Compile(&defs[i])
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		compiled = append(compiled, r)
	}
	return compiled, nil
}

// WithID returns a copy of the rule carrying the given storage ID.
func (r *FilterRule) WithID(id types.RuleID) *FilterRule {
	c := *r
	c.id = id
	return &c
}

func (r *FilterRule) ID() types.RuleID           { return r.id }
func (r *FilterRule) Action() types.FilterAction { return r.action }
func (r *FilterRule) Sender() FieldPattern       { return r.sender }
func (r *FilterRule) Body() FieldPattern         { return r.body }

// Spec returns the raw definition of the rule.
func (r *FilterRule) Spec() types.Rule {
	return types.Rule{
		ID:     r.id,
		Action: r.action,
		Sender: r.sender.Spec(),
		Body:   r.body.Spec(),
	}
}

// Equal compares action and patterns, ignoring IDs.
func (r *FilterRule) Equal(o *FilterRule) bool {
	return r.action == o.action && r.sender.Equal(o.sender) && r.body.Equal(o.body)
}

// Matches reports whether msg satisfies both patterns. An unset pattern
// contributes true, so a body-only rule ignores the sender.
func (r *FilterRule) Matches(msg types.CandidateMessage) bool {
	if r.senderFirst {
		return r.sender.Matches(msg.Sender) && r.body.Matches(msg.Body)
	}
	return r.body.Matches(msg.Body) && r.sender.Matches(msg.Sender)
}

func (r *FilterRule) String() string {
	return fmt.Sprintf("%s sender=%s body=%s", r.action, r.sender, r.body)
}
