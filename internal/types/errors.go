package types

import "errors"

// Sentinel errors for smsfilter operations. Callers test for these with
// errors.Is; every layer wraps them with context instead of replacing them.
var (
	// ErrInvalidEnumValue indicates an action or match mode token that does
	// not name a known enumerator.
	ErrInvalidEnumValue = errors.New("invalid enum value")

	// ErrMalformedDocument indicates a backup document with the wrong structure.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrMissingField indicates a required key absent from a backup record.
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidRule indicates a structurally valid rule that violates a
	// domain invariant (no pattern set, empty pattern text).
	ErrInvalidRule = errors.New("invalid rule")

	// ErrPatternCompile indicates a REGEX pattern that does not compile.
	ErrPatternCompile = errors.New("pattern does not compile")

	// ErrUnsupportedVersion indicates a backup document from an unknown format version.
	ErrUnsupportedVersion = errors.New("unsupported backup version")

	// ErrDocumentTooLarge indicates an import document exceeding MaxDocumentSize.
	ErrDocumentTooLarge = errors.New("document exceeds maximum size")

	// ErrTooManyRules indicates a rule set exceeding MaxRuleSetSize.
	ErrTooManyRules = errors.New("rule set exceeds maximum size")

	// ErrRuleNotFound indicates a rule id unknown to the store.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrMessageNotFound indicates a message id unknown to the archive.
	ErrMessageNotFound = errors.New("message not found")
)
