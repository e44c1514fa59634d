package backup

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/solatis/smsfilter/internal/rules"
	"github.com/solatis/smsfilter/internal/types"
	"gopkg.in/yaml.v3"
)

/*
 * Strict document import.
 *
 * The decoder reads into pointer and RawMessage fields so an absent key is
 * distinguishable from a zero value. Validation order per record:
 *   1. record must be an object
 *   2. action present and known (version 3+)
 *   3. at least one of sender/body present
 *   4. each present pattern: mode, pattern, caseSensitive present; mode known;
 *      pattern compiles
 *
 * The first failure aborts the import. No partial rule set ever escapes.
 */

type rawDocument struct {
	Version *int            `json:"version"`
	Filters json.RawMessage `json:"filters"`
}

type rawRecord struct {
	Action *string         `json:"action"`
	Sender json.RawMessage `json:"sender"`
	Body   json.RawMessage `json:"body"`
}

type rawPattern struct {
	Mode          *string `json:"mode"`
	Pattern       *string `json:"pattern"`
	CaseSensitive *bool   `json:"caseSensitive"`
}

// Unmarshal decodes a document in the given format and imports it.
func Unmarshal(data []byte, format Format) ([]*rules.FilterRule, error) {
	switch format {
	case FormatYAML:
		return ImportYAML(data)
	case FormatJSON, "":
		return Import(data)
	default:
		return nil, fmt.Errorf("unknown backup format %q", format)
	}
}

// ImportYAML converts a YAML document to its JSON equivalent and imports it.
func ImportYAML(data []byte) ([]*rules.FilterRule, error) {
	if len(data) > types.MaxDocumentSize {
		return nil, documentError(fmt.Errorf("%w: %d bytes", types.ErrDocumentTooLarge, len(data)))
	}
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, documentError(fmt.Errorf("%w: %w", types.ErrMalformedDocument, err))
	}
	converted, err := json.Marshal(tree)
	if err != nil {
		return nil, documentError(fmt.Errorf("%w: %w", types.ErrMalformedDocument, err))
	}
	return Import(converted)
}

// Import decodes a JSON document into an ordered, validated rule set.
// All errors are *ImportError.
func Import(data []byte) ([]*rules.FilterRule, error) {
	if len(data) > types.MaxDocumentSize {
		return nil, documentError(fmt.Errorf("%w: %d bytes", types.ErrDocumentTooLarge, len(data)))
	}

	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, documentError(fmt.Errorf("%w: %w", types.ErrMalformedDocument, err))
	}

	version := CurrentVersion
	if doc.Version != nil {
		version = *doc.Version
	}
	if version < 1 || version > CurrentVersion {
		return nil, documentError(fmt.Errorf("%w: %d", types.ErrUnsupportedVersion, version))
	}

	if isAbsent(doc.Filters) {
		return nil, documentError(fmt.Errorf("%w: filters array is missing", types.ErrMalformedDocument))
	}
	var records []json.RawMessage
	if err := json.Unmarshal(doc.Filters, &records); err != nil {
		return nil, documentError(fmt.Errorf("%w: filters is not an array", types.ErrMalformedDocument))
	}
	if len(records) > types.MaxRuleSetSize {
		return nil, documentError(fmt.Errorf("%w: %d rules (max %d)", types.ErrTooManyRules, len(records), types.MaxRuleSetSize))
	}

	set := make([]*rules.FilterRule, 0, len(records))
	for i, raw := range records {
		rule, err := readRecord(i, raw, version)
		if err != nil {
			return nil, err
		}
		set = append(set, rule)
	}
	return set, nil
}

func readRecord(index int, raw json.RawMessage, version int) (*rules.FilterRule, error) {
	if isAbsent(raw) || !isObject(raw) {
		return nil, recordError(index, "", fmt.Errorf("%w: filter is not an object", types.ErrMalformedDocument))
	}
	var rec rawRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, recordError(index, "", fmt.Errorf("%w: %w", types.ErrMalformedDocument, err))
	}

	action := types.ActionBlock
	if version >= firstActionVersion {
		if rec.Action == nil {
			return nil, recordError(index, "action", types.ErrMissingField)
		}
		parsed, err := types.ParseFilterAction(*rec.Action)
		if err != nil {
			return nil, recordError(index, "action", err)
		}
		action = parsed
	}

	if isAbsent(rec.Sender) && isAbsent(rec.Body) {
		return nil, recordError(index, "", fmt.Errorf("%w: need at least one sender or body pattern", types.ErrInvalidRule))
	}

	sender, err := readPattern(index, "sender", rec.Sender)
	if err != nil {
		return nil, err
	}
	body, err := readPattern(index, "body", rec.Body)
	if err != nil {
		return nil, err
	}

	rule, err := rules.NewFilterRule(action, sender, body)
	if err != nil {
		return nil, recordError(index, "", err)
	}
	return rule, nil
}

func readPattern(index int, field string, raw json.RawMessage) (rules.FieldPattern, error) {
	if isAbsent(raw) {
		return rules.FieldPattern{}, nil
	}
	if !isObject(raw) {
		return rules.FieldPattern{}, recordError(index, field, fmt.Errorf("%w: pattern is not an object", types.ErrMalformedDocument))
	}
	var p rawPattern
	if err := json.Unmarshal(raw, &p); err != nil {
		return rules.FieldPattern{}, recordError(index, field, fmt.Errorf("%w: %w", types.ErrMalformedDocument, err))
	}

	switch {
	case p.Mode == nil:
		return rules.FieldPattern{}, recordError(index, field+".mode", types.ErrMissingField)
	case p.Pattern == nil:
		return rules.FieldPattern{}, recordError(index, field+".pattern", types.ErrMissingField)
	case p.CaseSensitive == nil:
		return rules.FieldPattern{}, recordError(index, field+".caseSensitive", types.ErrMissingField)
	}

	mode, err := types.ParseMatchMode(*p.Mode)
	if err != nil {
		return rules.FieldPattern{}, recordError(index, field+".mode", err)
	}
	pattern, err := rules.NewFieldPattern(mode, *p.Pattern, *p.CaseSensitive)
	if err != nil {
		return rules.FieldPattern{}, recordError(index, field+".pattern", err)
	}
	return pattern, nil
}

// isAbsent treats a missing key and an explicit null the same way.
func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
