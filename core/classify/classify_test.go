package classify

import (
	"strings"
	"testing"
)

func TestParseReply(t *testing.T) {
	cases := []struct {
		name     string
		reply    string
		wantKind Kind
		wantText string
	}{
		{"question", "[Q] The assistant wants to edit main.py. Approve?", KindQuestion, "The assistant wants to edit main.py. Approve?"},
		{"summary", "[S] All tests passed.", KindSummary, "All tests passed."},
		{"lowercase tag", "[q] Continue?", KindQuestion, "Continue?"},
		{"skip token", "SKIP", KindSkip, ""},
		{"skip token lowercase", "skip", KindSkip, ""},
		{"empty", "", KindSkip, ""},
		{"whitespace only", "   \n ", KindSkip, ""},
		{"missing tag", "The assistant finished the task.", KindSkip, ""},
		{"unknown tag", "[X] something", KindSkip, ""},
		{"tag not anchored", "noise [Q] Continue?", KindSkip, ""},
		{"tag with no narration", "[S]   ", KindSkip, ""},
		{"surrounding whitespace", "  [S] Done.  ", KindSummary, "Done."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseReply(tc.reply)
			if got.Kind != tc.wantKind {
				t.Fatalf("expected kind %q, got %q", tc.wantKind, got.Kind)
			}
			if got.Text != tc.wantText {
				t.Fatalf("expected text %q, got %q", tc.wantText, got.Text)
			}
		})
	}
}

func TestParseReplyNeverNarratesMalformed(t *testing.T) {
	malformed := []string{
		"```json\n{}\n```",
		"Q: is this a question?",
		"(Q) wrong brackets",
		"[QS] double tag",
		"I think you should SKIP this",
	}

	for _, reply := range malformed {
		if got := ParseReply(reply); !got.IsSkip() {
			t.Fatalf("expected skip for %q, got %+v", reply, got)
		}
	}
}

func TestNewResultBoundsNarrationLength(t *testing.T) {
	long := strings.Repeat("status update ", 100)
	got := NewResult(KindSummary, long)

	if len(got.Text) >= len(long) {
		t.Fatalf("expected truncation, got %d chars", len(got.Text))
	}
	if !strings.HasSuffix(got.Text, "...") {
		t.Fatalf("expected ellipsis tail, got %q", got.Text[len(got.Text)-10:])
	}
}

func TestNewResultBlankCollapsesToSkip(t *testing.T) {
	if got := NewResult(KindQuestion, "  \n "); !got.IsSkip() {
		t.Fatalf("expected skip for blank narration, got %+v", got)
	}
}
