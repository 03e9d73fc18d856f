package state

import "github.com/finfou/tmuxp/internal/parser"

// Children returns the records whose foreign-key field equals the
// parent identity value. The relationship is value equality only; no
// index or back-pointer is maintained, so the result always reflects
// the collection as passed in and is recomputed on every call.
//
// An empty id matches nothing: a record lacking its identity field
// cannot be related to children.
func Children(records []parser.Record, fkField, id string) []parser.Record {
	if id == "" {
		return nil
	}
	var out []parser.Record
	for _, rec := range records {
		if rec[fkField] == id {
			out = append(out, rec)
		}
	}
	return out
}
