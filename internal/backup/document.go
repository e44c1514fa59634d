package backup

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/solatis/smsfilter/internal/rules"
	"gopkg.in/yaml.v3"
)

// CurrentVersion is written by Export.
const CurrentVersion = 3

// firstActionVersion is the first version whose records carry an action.
const firstActionVersion = 3

// Format selects the document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat parses a format name. The empty string means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown backup format %q (expected json or yaml)", s)
	}
}

// FormatFromPath picks the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Document is the exported form of a rule set.
type Document struct {
	Version int      `json:"version" yaml:"version"`
	Filters []Record `json:"filters" yaml:"filters"`
}

// Record is one exported rule.
type Record struct {
	Action string   `json:"action" yaml:"action"`
	Sender *Pattern `json:"sender,omitempty" yaml:"sender,omitempty"`
	Body   *Pattern `json:"body,omitempty" yaml:"body,omitempty"`
}

// Pattern is one exported field pattern.
type Pattern struct {
	Mode          string `json:"mode" yaml:"mode"`
	Pattern       string `json:"pattern" yaml:"pattern"`
	CaseSensitive bool   `json:"caseSensitive" yaml:"caseSensitive"`
}

// Export converts an ordered rule set into a document. Order is preserved
// and rule IDs are not exported.
func Export(set []*rules.FilterRule) Document {
	doc := Document{
		Version: CurrentVersion,
		Filters: make([]Record, 0, len(set)),
	}
	for _, r := range set {
		doc.Filters = append(doc.Filters, Record{
			Action: r.Action().String(),
			Sender: exportPattern(r.Sender()),
			Body:   exportPattern(r.Body()),
		})
	}
	return doc
}

func exportPattern(p rules.FieldPattern) *Pattern {
	if !p.IsSet() {
		return nil
	}
	return &Pattern{
		Mode:          p.Mode().String(),
		Pattern:       p.Pattern(),
		CaseSensitive: p.CaseSensitive(),
	}
}

// Marshal exports and encodes a rule set.
func Marshal(set []*rules.FilterRule, format Format) ([]byte, error) {
	doc := Export(set)
	switch format {
	case FormatYAML:
		return yaml.Marshal(doc)
	case FormatJSON, "":
		return json.MarshalIndent(doc, "", "  ")
	default:
		return nil, fmt.Errorf("unknown backup format %q", format)
	}
}
