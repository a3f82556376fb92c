package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "rallybot/pkg/logx"
)

func openTestStore(t *testing.T) (Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st, path
}

func TestOpenDisabled(t *testing.T) {
	for _, driver := range []string{"", "none"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("driver %q: st=%v err=%v, want nil,nil", driver, st, err)
		}
	}
	if _, err := Open(Config{Driver: "bogus"}, logx.Nop()); err == nil {
		t.Fatal("unknown driver accepted")
	}
}

func TestFileAppendAndRecent(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i, action := range []string{ActionSent, ActionConfirmed, ActionExpired} {
		err := st.Append(ctx, Entry{
			At:     base.Add(time.Duration(i) * time.Minute),
			UserID: "u1", Type: "match_queue", Action: action, DispatchID: "d1",
		})
		if err != nil {
			t.Fatalf("append %s: %v", action, err)
		}
	}

	got, err := st.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("entries = %d, want 3", len(got))
	}
	// Oldest first.
	if got[0].Action != ActionSent || got[2].Action != ActionExpired {
		t.Fatalf("order wrong: %s .. %s", got[0].Action, got[2].Action)
	}
	if !got[0].At.Equal(base) {
		t.Fatalf("timestamp lost: %v", got[0].At)
	}
}

func TestFileRecentLimit(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := st.Append(ctx, Entry{UserID: "u1", Type: "pre_game", Action: ActionSent}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, err := st.Recent(ctx, 2)
	if err != nil || len(got) != 2 {
		t.Fatalf("got %d entries (err=%v), want 2", len(got), err)
	}
}

func TestFileRecentSkipsCorruptLines(t *testing.T) {
	st, path := openTestStore(t)
	ctx := context.Background()
	if err := st.Append(ctx, Entry{UserID: "u1", Type: "pre_game", Action: ActionSent}); err != nil {
		t.Fatalf("append: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString("{torn json\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = f.Close()

	if err := st.Append(ctx, Entry{UserID: "u2", Type: "pre_game", Action: ActionConfirmed}); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := st.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2 (corrupt line skipped)", len(got))
	}
}

func TestFileAppendAfterClose(t *testing.T) {
	st, _ := openTestStore(t)
	_ = st.Close()
	if err := st.Append(context.Background(), Entry{Action: ActionSent}); err == nil {
		t.Fatal("append after close succeeded")
	}
}
