package chunk

import (
	"strings"
	"unicode/utf8"
)

const (
	// maxRun is the longest run of one repeated character kept as is.
	maxRun = 50
	// collapsedRun is the length a longer run is reduced to.
	collapsedRun = 3
)

// Normalize prepares text for chunking. It drops invalid UTF-8, collapses
// every whitespace sequence to a single space, trims the ends, and reduces
// runs of one character longer than 50 to three copies.
func Normalize(text string) string {
	text = strings.ToValidUTF8(text, "")
	text = strings.Join(strings.Fields(text), " ")
	return collapseRuns(text)
}

func collapseRuns(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	var prev rune = utf8.RuneError
	run := 0
	flush := func() {
		n := run
		if n > maxRun {
			n = collapsedRun
		}
		for i := 0; i < n; i++ {
			sb.WriteRune(prev)
		}
	}
	for _, r := range s {
		if run > 0 && r == prev {
			run++
			continue
		}
		if run > 0 {
			flush()
		}
		prev, run = r, 1
	}
	if run > 0 {
		flush()
	}
	return sb.String()
}
