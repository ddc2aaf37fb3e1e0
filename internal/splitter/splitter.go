// Package splitter partitions outbound text into transport-safe chunks.
// Chunks break on record boundaries (blank-line separated blocks) so a
// product's name is never severed from its stock and price; plain
// character-count splitting would routinely do exactly that.
package splitter

import (
	"fmt"
	"strings"
)

const DefaultLimit = 4000

// markerReserve is the room held back in every chunk for the "(parte i/n)"
// prefix added when the text does not fit in one piece.
const markerReserve = len("(parte 999/999)\n")

// Split partitions text into ordered chunks of at most limit bytes each.
// A text that fits is returned as a single unmarked chunk. Otherwise blocks
// are packed greedily; a block is split on line boundaries only when it
// alone exceeds the limit, and a single over-long line is cut hard. Every
// chunk carries a "(parte i/n)" prefix; concatenating the chunks minus
// those prefixes reproduces the input exactly.
func Split(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(text) <= limit {
		return []string{text}
	}

	budget := limit - markerReserve
	if budget < 1 {
		budget = limit
	}

	var parts []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
		}
	}

	for _, block := range strings.SplitAfter(text, "\n\n") {
		if block == "" {
			continue
		}
		if cur.Len()+len(block) <= budget {
			cur.WriteString(block)
			continue
		}
		flush()
		if len(block) <= budget {
			cur.WriteString(block)
			continue
		}
		// A single record larger than the limit: fall back to lines.
		for _, piece := range splitLines(block, budget) {
			if cur.Len()+len(piece) > budget {
				flush()
			}
			cur.WriteString(piece)
		}
	}
	flush()

	if len(parts) == 1 {
		return parts
	}
	for i, p := range parts {
		parts[i] = fmt.Sprintf("(parte %d/%d)\n", i+1, len(parts)) + p
	}
	return parts
}

// splitLines cuts a block into pieces no longer than budget, preferring
// line boundaries and hard-cutting only a line that alone exceeds budget.
func splitLines(block string, budget int) []string {
	var pieces []string
	for _, line := range strings.SplitAfter(block, "\n") {
		for len(line) > budget {
			pieces = append(pieces, line[:budget])
			line = line[budget:]
		}
		if line != "" {
			pieces = append(pieces, line)
		}
	}
	return pieces
}

// StripMarker removes the "(parte i/n)" prefix from a chunk, if present.
func StripMarker(chunk string) string {
	if !strings.HasPrefix(chunk, "(parte ") {
		return chunk
	}
	if idx := strings.IndexByte(chunk, '\n'); idx >= 0 {
		return chunk[idx+1:]
	}
	return chunk
}
