// internal/rules/matcher.go
package rules

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/solatis/smsfilter/internal/types"
	"golang.org/x/text/unicode/norm"
)

/*
 * Field pattern matching.
 *
 * FieldPattern is the validated, immutable form of types.PatternSpec. The
 * zero value is the unset pattern, which places no constraint on its field
 * and matches every candidate, including the empty string.
 *
 * Normalization:
 *   - Every mode compares NFC normalized text, so composed and decomposed
 *     accents compare equal. REGEX patterns are normalized once at
 *     compile time and candidates at match time.
 *   - Case-insensitive plain modes fold both sides rune by rune onto the
 *     smallest member of the rune's simple fold orbit. REGEX uses the
 *     (?i) flag, which folds over the same orbits, so both agree: the
 *     dotted capital I (U+0130) and the dotless i (U+0131) fold only to
 *     themselves in either mode. No locale is consulted and the rune
 *     count never changes.
 *
 * REGEX compilation happens once, in NewFieldPattern. Matching a pattern
 * that escaped validation is a programming fault and panics.
 */

// FieldPattern is a validated pattern for one message field.
type FieldPattern struct {
	mode          types.MatchMode
	pattern       string
	caseSensitive bool
	needle        string         // normalized pattern text for plain modes
	re            *regexp.Regexp // compiled expression for REGEX
}

// NewFieldPattern validates and compiles a pattern.
// Returns ErrInvalidEnumValue for an unknown mode, ErrInvalidRule for empty
// or oversized pattern text and ErrPatternCompile for a bad REGEX.
func NewFieldPattern(mode types.MatchMode, pattern string, caseSensitive bool) (FieldPattern, error) {
	if !mode.Valid() {
		return FieldPattern{}, fmt.Errorf("%w: match mode %d", types.ErrInvalidEnumValue, int(mode))
	}
	if pattern == "" {
		return FieldPattern{}, fmt.Errorf("%w: pattern text is empty", types.ErrInvalidRule)
	}
	if len(pattern) > types.MaxPatternLength {
		return FieldPattern{}, fmt.Errorf("%w: pattern exceeds %d bytes", types.ErrInvalidRule, types.MaxPatternLength)
	}

	p := FieldPattern{
		mode:          mode,
		pattern:       pattern,
		caseSensitive: caseSensitive,
	}

	if mode == types.ModeRegex {
		expr := norm.NFC.String(pattern)
		if !caseSensitive {
			expr = "(?i)" + pattern
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return FieldPattern{}, fmt.Errorf("%w: %q: %w", types.ErrPatternCompile, pattern, err)
		}
		p.re = re
		return p, nil
	}

	p.needle = normalizeText(pattern, caseSensitive)
	return p, nil
}

// PatternFromSpec builds a FieldPattern from a raw spec. A nil spec yields
// the unset pattern.
func PatternFromSpec(spec *types.PatternSpec) (FieldPattern, error) {
	if spec == nil {
		return FieldPattern{}, nil
	}
	return NewFieldPattern(spec.Mode, spec.Pattern, spec.CaseSensitive)
}

// IsSet reports whether the pattern constrains its field.
func (p FieldPattern) IsSet() bool {
	return p.mode != types.ModeUnspecified
}

func (p FieldPattern) Mode() types.MatchMode { return p.mode }
func (p FieldPattern) Pattern() string       { return p.pattern }
func (p FieldPattern) CaseSensitive() bool   { return p.caseSensitive }

// Spec returns the raw form of the pattern, nil when unset.
func (p FieldPattern) Spec() *types.PatternSpec {
	if !p.IsSet() {
		return nil
	}
	return &types.PatternSpec{
		Mode:          p.mode,
		Pattern:       p.pattern,
		CaseSensitive: p.caseSensitive,
	}
}

// Equal compares the user-visible attributes of two patterns.
func (p FieldPattern) Equal(o FieldPattern) bool {
	return p.mode == o.mode && p.pattern == o.pattern && p.caseSensitive == o.caseSensitive
}

// Matches reports whether candidate satisfies the pattern.
func (p FieldPattern) Matches(candidate string) bool {
	switch p.mode {
	case types.ModeUnspecified:
		return true
	case types.ModeRegex:
		return p.re.MatchString(norm.NFC.String(candidate))
	case types.ModeContains, types.ModeEquals, types.ModeStartsWith, types.ModeEndsWith:
		return compareText(p.mode, normalizeText(candidate, p.caseSensitive), p.needle)
	default:
		panic(fmt.Sprintf("rules: match mode %v escaped validation", p.mode))
	}
}

func (p FieldPattern) String() string {
	if !p.IsSet() {
		return "<unset>"
	}
	s := fmt.Sprintf("%s:%q", p.mode, p.pattern)
	if !p.caseSensitive {
		s += "/i"
	}
	return s
}

// normalizeText applies NFC and, for case-insensitive patterns, simple fold canonicalization.
func normalizeText(s string, caseSensitive bool) string {
	s = norm.NFC.String(s)
	if caseSensitive {
		return s
	}
	return strings.Map(foldRune, s)
}

// foldRune maps a rune to the smallest rune of its simple fold orbit, the
// same equivalence regexp applies under (?i). U+017F (long s) and U+212A
// (Kelvin sign) land on ASCII S and K.
func foldRune(r rune) rune {
	canon := r
	for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
		if f < canon {
			canon = f
		}
	}
	return canon
}
