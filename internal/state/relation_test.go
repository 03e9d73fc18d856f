package state

import (
	"testing"

	"github.com/finfou/tmuxp/internal/parser"
)

func TestChildren(t *testing.T) {
	windows := []parser.Record{
		{"window_id": "@1", "session_id": "$1"},
		{"window_id": "@2", "session_id": "$1"},
		{"window_id": "@3", "session_id": "$2"},
		{"window_id": "@4"}, // no foreign key
	}

	tests := []struct {
		name string
		id   string
		want int
	}{
		{"two children", "$1", 2},
		{"one child", "$2", 1},
		{"no children", "$9", 0},
		{"empty id matches nothing", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Children(windows, "session_id", tt.id)
			if len(got) != tt.want {
				t.Errorf("Children(%q) = %d records, want %d", tt.id, len(got), tt.want)
			}
		})
	}
}

func TestChildrenReflectsLatestCollection(t *testing.T) {
	s := NewStore()
	s.ReplaceWindows([]parser.Record{{"window_id": "@1", "session_id": "$1"}})

	if got := Children(s.Windows(), "session_id", "$1"); len(got) != 1 {
		t.Fatalf("before replace: %d children", len(got))
	}

	// No index is maintained: a wholesale replace is visible on the
	// next call.
	s.ReplaceWindows([]parser.Record{
		{"window_id": "@5", "session_id": "$1"},
		{"window_id": "@6", "session_id": "$1"},
	})
	got := Children(s.Windows(), "session_id", "$1")
	if len(got) != 2 || got[0]["window_id"] != "@5" {
		t.Errorf("after replace: %v", got)
	}
}
