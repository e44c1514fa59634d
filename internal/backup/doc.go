// Package backup implements the rule set backup format.
//
// A backup is a document with a top-level "filters" array. Each record holds
// an "action" ("block" or "allow") and optional "sender" and "body" pattern
// objects with "mode", "pattern" and "caseSensitive" keys. Unset patterns are
// omitted, never written as null.
//
// Import is all-or-nothing: the first offending record aborts the whole
// document with an *ImportError and no rules are returned. Imported rules
// are transient; the caller persists them only after Import succeeds.
//
// Version 3 documents carry a per-rule action. Versions 1 and 2 predate
// allow rules; every record they contain is read as a block rule.
package backup
