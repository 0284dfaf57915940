package classify

import (
	"regexp"
	"strings"
)

var prefixRe = regexp.MustCompile(`(?i)^\[([QS])\]\s*`)

// ParseReply maps a raw model reply onto a Result. Only replies
// carrying the expected bracket tag narrate; the skip token, empty
// replies, and anything that doesn't match the tag format collapse to
// a skip, so malformed model output is never spoken.
func ParseReply(reply string) Result {
	reply = strings.TrimSpace(reply)
	if reply == "" || strings.EqualFold(reply, "SKIP") {
		return Skip()
	}

	loc := prefixRe.FindStringSubmatchIndex(reply)
	if loc == nil {
		return Skip()
	}

	kind := KindSummary
	if strings.EqualFold(reply[loc[2]:loc[3]], "Q") {
		kind = KindQuestion
	}
	return NewResult(kind, reply[loc[1]:])
}
