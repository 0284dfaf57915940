package capture

import (
	"slices"
	"strings"
)

var anchorSizes = []int{5, 3, 2, 1}

// diffAppended isolates the lines of current that follow the previous
// snapshot. Snapshots of a live pane scroll, so plain prefix
// comparison fails; instead the tail of the previous snapshot is used
// as an anchor and searched for in the current one, largest anchor
// first, latest match preferred.
func diffAppended(current, previous string) string {
	if previous == "" {
		return ""
	}

	prevLines := splitLines(previous)
	curLines := splitLines(current)
	if slices.Equal(prevLines, curLines) {
		return ""
	}

	for _, anchorSize := range anchorSizes {
		if len(prevLines) < anchorSize {
			continue
		}
		anchor := prevLines[len(prevLines)-anchorSize:]

		for i := len(curLines) - anchorSize; i >= 0; i-- {
			if slices.Equal(curLines[i:i+anchorSize], anchor) {
				return strings.TrimSpace(strings.Join(curLines[i+anchorSize:], "\n"))
			}
		}
	}

	// No anchor survived. If the snapshot only grew, everything past
	// the old length is new.
	if len(curLines) > len(prevLines) {
		return strings.TrimSpace(strings.Join(curLines[len(prevLines):], "\n"))
	}

	// Scrolled beyond recognition; hand back the recent tail as a
	// best effort.
	tail := min(20, len(curLines))
	return strings.TrimSpace(strings.Join(curLines[len(curLines)-tail:], "\n"))
}

func splitLines(text string) []string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
