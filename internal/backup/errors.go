package backup

import (
	"errors"
	"fmt"

	"github.com/solatis/smsfilter/internal/types"
)

// ImportError reports why a document was rejected. Err wraps one of the
// types sentinel errors, optionally followed by the underlying cause (a JSON
// syntax error, a regexp error).
type ImportError struct {
	Index int    // record position, -1 for document-level errors
	Field string // offending key such as "action" or "sender.mode"
	Err   error
}

func (e *ImportError) Error() string {
	switch {
	case e.Index < 0:
		return fmt.Sprintf("import failed: %v", e.Err)
	case e.Field != "":
		return fmt.Sprintf("import failed: filter %d: %s: %v", e.Index, e.Field, e.Err)
	default:
		return fmt.Sprintf("import failed: filter %d: %v", e.Index, e.Err)
	}
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// importKinds lists the error kinds an import can fail with, most specific first.
var importKinds = []error{
	types.ErrDocumentTooLarge,
	types.ErrTooManyRules,
	types.ErrUnsupportedVersion,
	types.ErrMalformedDocument,
	types.ErrMissingField,
	types.ErrInvalidEnumValue,
	types.ErrPatternCompile,
	types.ErrInvalidRule,
}

// Kind returns the sentinel error classifying e, or nil if none applies.
func (e *ImportError) Kind() error {
	for _, kind := range importKinds {
		if errors.Is(e.Err, kind) {
			return kind
		}
	}
	return nil
}

func documentError(err error) *ImportError {
	return &ImportError{Index: -1, Err: err}
}

func recordError(index int, field string, err error) *ImportError {
	return &ImportError{Index: index, Field: field, Err: err}
}
