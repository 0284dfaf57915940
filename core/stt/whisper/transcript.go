package whisper

import (
	"regexp"
	"strings"
)

var (
	// annotationRe matches environmental annotations like
	// "(keyboard clicking)", "[BLANK_AUDIO]" or "[laughter]".
	annotationRe = regexp.MustCompile(`[\(\[][A-Za-z_][A-Za-z_'\s-]*[\)\]]`)
	multiSpaceRe = regexp.MustCompile(`  +`)
)

// hallucinations are complete transcripts the model is known to emit
// for silence or background noise. Matched case-insensitively against
// the whole cleaned text.
var hallucinations = []string{
	"...",
	"you",
	"thank you.",
	"thanks for watching!",
	"thank you for watching.",
	"bye.",
	"bye!",
	"the end.",
}

// CleanTranscript normalizes raw whisper output into a single
// injectable line. Newlines collapse to spaces, bracketed annotations
// are stripped and known hallucination transcripts are discarded.
func CleanTranscript(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	s = annotationRe.ReplaceAllString(s, "")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	lower := strings.ToLower(s)
	for _, h := range hallucinations {
		if lower == h {
			return ""
		}
	}
	return s
}
