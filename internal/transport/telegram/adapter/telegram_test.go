package adapter

import (
	"strings"
	"testing"

	logx "rallybot/pkg/logx"
)

func TestSplitTextShortPassthrough(t *testing.T) {
	got := splitText("hello", 10)
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("got %v", got)
	}
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	text := strings.Repeat("x", 8) + "\n" + strings.Repeat("y", 8)
	got := splitText(text, 10)
	if len(got) != 2 {
		t.Fatalf("chunks = %d, want 2: %v", len(got), got)
	}
	if got[0] != strings.Repeat("x", 8) {
		t.Fatalf("first chunk = %q", got[0])
	}
	if got[1] != strings.Repeat("y", 8) {
		t.Fatalf("second chunk = %q", got[1])
	}
}

func TestSplitTextHardWrapWithoutNewlines(t *testing.T) {
	text := strings.Repeat("a", 25)
	got := splitText(text, 10)
	if len(got) != 3 {
		t.Fatalf("chunks = %d, want 3", len(got))
	}
	if joined := strings.Join(got, ""); joined != text {
		t.Fatalf("content lost: %q", joined)
	}
	for i, c := range got {
		if len(c) > 10 {
			t.Fatalf("chunk %d over limit: %d", i, len(c))
		}
	}
}

func TestChannelRefRecipient(t *testing.T) {
	if channelRef("@ops").Recipient() != "@ops" {
		t.Fatal("username recipient mangled")
	}
	if channelRef("-1001234").Recipient() != "-1001234" {
		t.Fatal("numeric recipient mangled")
	}
}

func TestNewRejectsEmptyToken(t *testing.T) {
	if _, err := New(Config{Token: "  "}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty token")
	}
}
