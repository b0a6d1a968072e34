package logbook

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestTailReturnsRecentLinesAndTotal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journey.log")
	book, err := New(path)
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	for i := 0; i < 5; i++ {
		book.Info("entry-%d", i)
	}
	lines, total := book.Tail(3)
	if total != 5 {
		t.Fatalf("total lines = %d, want 5", total)
	}
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3", len(lines))
	}
	for idx, want := range []string{"entry-2", "entry-3", "entry-4"} {
		if !strings.Contains(lines[idx], want) {
			t.Fatalf("line %d = %q, missing %s", idx, lines[idx], want)
		}
	}
}

func TestAppendFormatsLevelAndClock(t *testing.T) {
	book, err := New(filepath.Join(t.TempDir(), "logs", "journal.log"))
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	book.SetClock(func() time.Time { return time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC) })
	book.Error("rollback %s: %s", "idea-1", "offline")
	book.Warn("  padded  ")
	lines, total := book.Tail(10)
	if total != 2 {
		t.Fatalf("total = %d", total)
	}
	if lines[0] != "2024-05-02T08:30:00Z ERROR rollback idea-1: offline" {
		t.Fatalf("unexpected line %q", lines[0])
	}
	if lines[1] != "2024-05-02T08:30:00Z WARN  padded" {
		t.Fatalf("unexpected line %q", lines[1])
	}
}

func TestNilLogbookIsSafe(t *testing.T) {
	var book *Logbook
	book.Info("ignored")
	if lines, total := book.Tail(5); lines != nil || total != 0 {
		t.Fatalf("nil logbook returned %v/%d", lines, total)
	}
}
