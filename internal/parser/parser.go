// Package parser converts delimited tmux list output into attribute
// records.
//
// Each output line is split on format.Separator and zipped positionally
// against the declared field names. Empty values are omitted from the
// record rather than stored as empty strings, so presence of a key
// always implies a non-empty value.
package parser

import (
	"strings"

	"github.com/finfou/tmuxp/internal/format"
)

// Record is a single entity's attributes keyed by tmux format variable
// name. Records are plain maps: holders of a reference observe in-place
// patches applied by the client sync.
type Record map[string]string

// MalformedLine reports a line that produced more tokens than declared
// fields. Such a line cannot be mapped positionally without misaligning
// the surplus, so it is excluded from the parsed records and surfaced
// here for the caller's skip-or-fail policy.
type MalformedLine struct {
	// Index is the zero-based position of the line in the input.
	Index int
	// Line is the raw input line.
	Line string
	// Extra is the number of surplus tokens beyond len(fields).
	Extra int
}

// Parse maps delimited lines onto fields positionally. Blank lines are
// skipped. A line with at most len(fields) tokens yields one Record; a
// line with more tokens is reported in malformed instead.
func Parse(lines []string, fields []string) (records []Record, malformed []MalformedLine) {
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		// Split one past the field count so surplus tokens are
		// detectable instead of silently folded into the last field.
		tokens := strings.SplitN(line, format.Separator, len(fields)+1)
		if len(tokens) > len(fields) {
			extra := strings.Count(tokens[len(fields)], format.Separator) + 1
			malformed = append(malformed, MalformedLine{Index: i, Line: line, Extra: extra})
			continue
		}
		rec := make(Record, len(tokens))
		for j, token := range tokens {
			if token == "" {
				continue
			}
			rec[fields[j]] = token
		}
		records = append(records, rec)
	}
	return records, malformed
}

// ParseOne parses a single line, as printed by new-session -P. Returns
// false when the line is blank or malformed.
func ParseOne(line string, fields []string) (Record, bool) {
	records, malformed := Parse([]string{line}, fields)
	if len(records) != 1 || len(malformed) != 0 {
		return nil, false
	}
	return records[0], true
}

// Clone returns a shallow copy of a record. Used by callers that want a
// snapshot insulated from later in-place patches.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
