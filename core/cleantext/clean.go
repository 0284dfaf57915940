// Package cleantext strips terminal escape sequences and filters the
// decorative chrome that coding-agent TUIs paint around their output,
// leaving prose worth classifying.
package cleantext

import (
	"regexp"
	"strings"
)

var (
	// CSI, OSC, charset switching, and keypad/cursor mode sequences.
	ansiRe    = regexp.MustCompile(`\x1b(?:\[[0-9;?]*[A-Za-z]|\].*?(?:\x07|\x1b\\)|[()][AB012]|[=><])`)
	controlRe = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)

	// Box drawing, block elements, geometric shapes, braille spinner
	// frames, and private-use glyphs used for terminal decoration.
	unicodeNoiseRe = regexp.MustCompile(`[\x{2500}-\x{257f}\x{2580}-\x{259f}\x{25a0}-\x{25ff}\x{2800}-\x{28ff}\x{e000}-\x{f8ff}\x{f0000}-\x{fffff}]+`)

	multiSpaceRe = regexp.MustCompile(`  +`)
)

// Lines that are pure UI noise: rules and borders, shortcut hints,
// welcome banners, version and changelog chrome, bare path displays.
var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\s*[─━┄┈╌═╍]+\s*$`),
	regexp.MustCompile(`^\s*[│┃┆┊╎║╏]+\s*$`),
	regexp.MustCompile(`^\s*[╭╮╰╯┌┐└┘]+`),
	regexp.MustCompile(`^\s*\?\s*(for\s+shortcuts)?\s*$`),
	regexp.MustCompile(`^\s*Try\s+".*"\s*$`),
	regexp.MustCompile(`^\s*/\w+\s+for\s+`),
	regexp.MustCompile(`^\s*(Welcome\s+back|Recent\s+activity|Tips\s+for)`),
	regexp.MustCompile(`^\s*\d+[smh]\s+ago\s+`),
	regexp.MustCompile(`^\s*/resume\s+for\s+more`),
	regexp.MustCompile(`^\s*/release-notes`),
	regexp.MustCompile(`^\s*(Claude\s+Code|Opus|Sonnet|Haiku)\s+[\d.]+`),
	regexp.MustCompile(`^\s*Claude\s+Max\b`),
	regexp.MustCompile(`^\s*~/`),
	regexp.MustCompile(`^\s*What's\s+new`),
	regexp.MustCompile(`^\s*Fixed\s+a\s+(crash|bug)`),
}

// StripANSI removes escape sequences, control characters, and
// decorative Unicode, collapsing the runs of spaces left behind.
func StripANSI(text string) string {
	text = ansiRe.ReplaceAllString(text, "")
	text = controlRe.ReplaceAllString(text, "")
	text = unicodeNoiseRe.ReplaceAllString(text, " ")
	return multiSpaceRe.ReplaceAllString(text, " ")
}

// Clean strips escape sequences and drops lines that carry no prose.
// Surviving lines are trimmed and joined with single newlines, no
// trailing blanks. Clean is deterministic and idempotent.
func Clean(text string) string {
	text = StripANSI(text)

	var cleanLines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isNoise(line) {
			continue
		}
		cleanLines = append(cleanLines, line)
	}
	return strings.Join(cleanLines, "\n")
}

func isNoise(line string) bool {
	for _, pattern := range noisePatterns {
		if pattern.MatchString(line) {
			return true
		}
	}
	return false
}
