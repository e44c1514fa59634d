// internal/types/rules.go
package types

import "fmt"

/*
 * Raw rule definitions.
 *
 * Rule and PatternSpec are the unvalidated shape of a filter rule, used at
 * the storage and backup boundaries. internal/rules compiles them into
 * immutable FilterRule values; nothing evaluates a Rule directly.
 *
 * Key types:
 *   - MatchMode: closed set of pattern matching strategies
 *   - FilterAction: what a matching rule asks for (block or allow)
 *   - PatternSpec: one field-level pattern (nil pointer = unset)
 *   - Rule: action plus sender and body patterns
 */

// MatchMode selects how a pattern is compared against a field.
type MatchMode int

const (
	ModeUnspecified MatchMode = iota
	ModeContains
	ModeEquals
	ModeStartsWith
	ModeEndsWith
	ModeRegex
)

var matchModeTokens = map[MatchMode]string{
	ModeContains:   "contains",
	ModeEquals:     "equals",
	ModeStartsWith: "starts_with",
	ModeEndsWith:   "ends_with",
	ModeRegex:      "regex",
}

// MatchModes lists every valid mode in declaration order.
var MatchModes = []MatchMode{ModeContains, ModeEquals, ModeStartsWith, ModeEndsWith, ModeRegex}

// ParseMatchMode parses a case-insensitive mode token.
// Unknown tokens are an error, never a default.
func ParseMatchMode(s string) (MatchMode, error) {
	tok := normalizeToken(s)
	for mode, name := range matchModeTokens {
		if name == tok {
			return mode, nil
		}
	}
	return ModeUnspecified, fmt.Errorf("%w: match mode %q", ErrInvalidEnumValue, s)
}

// Valid reports whether m is one of the declared modes.
func (m MatchMode) Valid() bool {
	_, ok := matchModeTokens[m]
	return ok
}

// String returns the lower-case token used in backups and storage.
func (m MatchMode) String() string {
	if name, ok := matchModeTokens[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// FilterAction is the outcome a matching rule asks for.
type FilterAction int

const (
	ActionUnspecified FilterAction = iota
	ActionBlock
	ActionAllow
)

// ParseFilterAction parses a case-insensitive action token.
func ParseFilterAction(s string) (FilterAction, error) {
	switch normalizeToken(s) {
	case "block":
		return ActionBlock, nil
	case "allow":
		return ActionAllow, nil
	default:
		return ActionUnspecified, fmt.Errorf("%w: filter action %q", ErrInvalidEnumValue, s)
	}
}

// Valid reports whether a is BLOCK or ALLOW.
func (a FilterAction) Valid() bool {
	return a == ActionBlock || a == ActionAllow
}

func (a FilterAction) String() string {
	switch a {
	case ActionBlock:
		return "block"
	case ActionAllow:
		return "allow"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// PatternSpec is one field-level pattern before validation.
type PatternSpec struct {
	Mode          MatchMode
	Pattern       string
	CaseSensitive bool
}

// Rule is a complete filter rule definition before compilation.
type Rule struct {
	ID     RuleID       // empty for transient rules
	Action FilterAction // block or allow
	Sender *PatternSpec // nil = no constraint on sender
	Body   *PatternSpec // nil = no constraint on body
}
