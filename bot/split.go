package bot

import "fmt"

// maxSegmentRunes is the chat service's per-message length limit.
const maxSegmentRunes = 100

// splitText breaks text into chunks of at most max runes, splitting at line
// breaks where possible. A single line longer than max is hard-cut at the
// limit. Concatenating the chunks (re-joining on the newlines that were cut)
// reconstructs the original text.
func splitText(text string, max int) []string {
	if len([]rune(text)) <= max {
		return []string{text}
	}
	var (
		out     []string
		current []rune
	)
	flush := func() {
		if len(current) > 0 {
			out = append(out, string(current))
			current = nil
		}
	}
	start := 0
	runes := []rune(text)
	for i := 0; i <= len(runes); i++ {
		if i < len(runes) && runes[i] != '\n' {
			continue
		}
		line := runes[start:i]
		start = i + 1
		switch {
		case len(current)+len(line)+1 > max && len(current) > 0:
			flush()
			fallthrough
		case len(line) > max:
			// Hard-cut an oversized line; the tail becomes the next segment.
			for len(line) > max {
				out = append(out, string(line[:max]))
				line = line[max:]
			}
			current = append([]rune(nil), line...)
		default:
			if len(current) > 0 {
				current = append(current, '\n')
			}
			current = append(current, line...)
		}
	}
	flush()
	return out
}

// segments returns the outgoing message parts for text: one part when it
// fits, otherwise each part numbered with an [i/N] prefix so readers can
// reassemble them if the transport reorders.
func segments(text string) []string {
	parts := splitText(text, maxSegmentRunes)
	if len(parts) == 1 {
		return parts
	}
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = fmt.Sprintf("[%d/%d] %s", i+1, len(parts), p)
	}
	return out
}
