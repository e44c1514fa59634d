// Package types provides domain models shared across smsfilter components.
//
// Wire-agnostic design: the raw rule definitions here carry no compiled state
// and no codec tags. Validation and compilation live in internal/rules; the
// backup document format lives in internal/backup. ID utilities in ids.go
// import uuid but are isolated from the rest of the package.
package types

import "strings"

// RuleID is an opaque rule identifier assigned by the storage layer.
// The empty RuleID marks a transient rule that has never been persisted.
type RuleID string

// MessageID identifies a message held in the blocked message archive.
type MessageID string

// IsTransient reports whether the rule has not been assigned a storage id.
func (id RuleID) IsTransient() bool {
	return id == ""
}

// CandidateMessage is the read-only input to rule evaluation.
type CandidateMessage struct {
	Sender string
	Body   string
}

// Decision is the outcome of evaluating a rule set against a message.
type Decision int

const (
	DecisionPass Decision = iota
	DecisionBlock
)

func (d Decision) String() string {
	switch d {
	case DecisionPass:
		return "pass"
	case DecisionBlock:
		return "block"
	default:
		return "unknown"
	}
}

// Resource limits enforced at rule creation and import time.
const (
	// MaxPatternLength bounds pattern text so a single rule cannot make
	// per-message evaluation cost unbounded.
	MaxPatternLength = 1024

	// MaxRuleSetSize caps the number of rules in one document or store.
	MaxRuleSetSize = 10000

	// MaxDocumentSize caps the size of an imported backup document.
	MaxDocumentSize = 4 * 1024 * 1024
)

// normalizeToken lower-cases an enum token for parsing. Surrounding
// whitespace is kept so padded tokens are rejected.
func normalizeToken(s string) string {
	return strings.ToLower(s)
}
