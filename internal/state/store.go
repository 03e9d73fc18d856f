// Package state holds the in-memory mirror of a tmux server: four flat
// collections of attribute records plus a derived parent/child join.
//
// Sessions, windows, and panes are ephemeral snapshots replaced
// wholesale on every refresh; no identity survives a refresh for those
// kinds. Clients are the exception: a client is durably identified by
// client_tty, and refreshes patch the existing record in place so that
// external holders of the record observe its mutations.
package state

import (
	"sort"

	"github.com/finfou/tmuxp/internal/parser"
)

// Store is the authoritative flat mirror. It is not safe for
// concurrent use; the engine is single-threaded by design.
type Store struct {
	sessions []parser.Record
	windows  []parser.Record
	panes    []parser.Record
	clients  []parser.Record

	// Snapshot generations, bumped on each full replace. Derived views
	// computed before a bump are stale and must be re-fetched.
	sessionGen uint64
	windowGen  uint64
	paneGen    uint64
}

// NewStore returns an empty mirror.
func NewStore() *Store {
	return &Store{}
}

// ReplaceSessions discards the previous session snapshot and installs
// records as the new one.
func (s *Store) ReplaceSessions(records []parser.Record) {
	s.sessions = records
	s.sessionGen++
}

// ReplaceWindows discards the previous window snapshot and installs
// records as the new one.
func (s *Store) ReplaceWindows(records []parser.Record) {
	s.windows = records
	s.windowGen++
}

// ReplacePanes discards the previous pane snapshot and installs records
// as the new one.
func (s *Store) ReplacePanes(records []parser.Record) {
	s.panes = records
	s.paneGen++
}

// Sessions returns the current session snapshot.
func (s *Store) Sessions() []parser.Record { return s.sessions }

// Windows returns the current window snapshot.
func (s *Store) Windows() []parser.Record { return s.windows }

// Panes returns the current pane snapshot.
func (s *Store) Panes() []parser.Record { return s.panes }

// Clients returns the long-lived client records.
func (s *Store) Clients() []parser.Record { return s.clients }

// SessionGeneration returns the session snapshot generation.
func (s *Store) SessionGeneration() uint64 { return s.sessionGen }

// WindowGeneration returns the window snapshot generation.
func (s *Store) WindowGeneration() uint64 { return s.windowGen }

// PaneGeneration returns the pane snapshot generation.
func (s *Store) PaneGeneration() uint64 { return s.paneGen }

// ClientDiff summarizes one client sync, keyed by client_tty.
type ClientDiff struct {
	Created []string
	Deleted []string
	Patched []string
}

// clientKey is the durable identity field for client records.
const clientKey = "client_tty"

// SyncClients reconciles the freshly polled client records against the
// stored collection. New ttys are appended, vanished ttys removed, and
// records present in both are patched in place: changed or added pairs
// are set, pairs absent from the new poll are deleted. A record lacking
// client_tty in the new poll is ignored; it has no identity to sync.
func (s *Store) SyncClients(polled []parser.Record) ClientDiff {
	newByTTY := make(map[string]parser.Record, len(polled))
	for _, rec := range polled {
		tty := rec[clientKey]
		if tty == "" {
			continue
		}
		newByTTY[tty] = rec
	}
	oldByTTY := make(map[string]parser.Record, len(s.clients))
	for _, rec := range s.clients {
		if tty := rec[clientKey]; tty != "" {
			oldByTTY[tty] = rec
		}
	}

	var diff ClientDiff
	for tty := range newByTTY {
		if _, ok := oldByTTY[tty]; !ok {
			diff.Created = append(diff.Created, tty)
		}
	}
	for tty := range oldByTTY {
		if _, ok := newByTTY[tty]; !ok {
			diff.Deleted = append(diff.Deleted, tty)
		}
	}

	// Patch common records in place, preserving map identity for
	// holders of a reference.
	kept := s.clients[:0]
	for _, rec := range s.clients {
		tty := rec[clientKey]
		fresh, ok := newByTTY[tty]
		if !ok {
			continue
		}
		if patchRecord(rec, fresh) {
			diff.Patched = append(diff.Patched, tty)
		}
		kept = append(kept, rec)
	}
	s.clients = kept

	sort.Strings(diff.Created)
	sort.Strings(diff.Deleted)
	sort.Strings(diff.Patched)
	for _, tty := range diff.Created {
		s.clients = append(s.clients, newByTTY[tty])
	}
	return diff
}

// patchRecord applies the attribute-level difference between old and
// fresh onto old. Reports whether anything changed.
func patchRecord(old, fresh parser.Record) bool {
	changed := false
	for k, v := range fresh {
		if old[k] != v {
			old[k] = v
			changed = true
		}
	}
	for k := range old {
		if _, ok := fresh[k]; !ok {
			delete(old, k)
			changed = true
		}
	}
	return changed
}
