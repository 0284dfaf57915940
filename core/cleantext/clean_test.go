package cleantext

import "testing"

func TestStripANSI(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"color codes", "\x1b[31mred\x1b[0m text", "red text"},
		{"cursor movement", "\x1b[2Ahidden\x1b[K", "hidden"},
		{"osc title", "\x1b]0;window title\x07prompt", "prompt"},
		{"charset and keypad", "\x1b(Btext\x1b=", "text"},
		{"control bytes", "a\x08b\x00c", "abc"},
		{"box drawing to space", "│ done │", " done "},
		{"space collapse", "a    b", "a b"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripANSI(tc.in); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestCleanDropsNoiseLines(t *testing.T) {
	in := "╭──────────╮\n" +
		"│ Building │\n" +
		"──────────\n" +
		"? for shortcuts\n" +
		"Tests passed: 14\n" +
		"~/projects/demo\n" +
		"\n" +
		"Do you want to continue? (y/n)\n"

	want := "Building\nTests passed: 14\nDo you want to continue? (y/n)"
	if got := Clean(in); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestCleanIdempotent(t *testing.T) {
	inputs := []string{
		"\x1b[32m✓\x1b[0m built in 2.1s\n⠋ waiting\nplain line\n",
		"───\nreal content here\n\n\n",
		"",
	}

	for _, in := range inputs {
		once := Clean(in)
		if twice := Clean(once); twice != once {
			t.Fatalf("not idempotent for %q: %q != %q", in, twice, once)
		}
	}
}

func TestCleanKeepsInterleavedProse(t *testing.T) {
	in := "⠙ Compiling...\nerror[E0308]: mismatched types\nBuild failed.\n"
	want := "Compiling...\nerror[E0308]: mismatched types\nBuild failed."
	if got := Clean(in); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
