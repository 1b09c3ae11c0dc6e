package channel

import (
	"strings"
	"unicode/utf8"
)

// splitMessage breaks text into ordered chunks of at most max bytes,
// preferring newline boundaries. A newline in the first half of the window is
// too early a cut, so mid-line splits happen for very long paragraphs; those
// back up to a rune boundary so multi-byte text is never torn.
func splitMessage(text string, max int) []string {
	var chunks []string
	for len(text) > 0 {
		chunk := text
		if len(chunk) > max {
			cutAt := strings.LastIndex(chunk[:max], "\n")
			if cutAt < max/2 {
				cutAt = max
				for cutAt > 0 && !utf8.RuneStart(text[cutAt]) {
					cutAt--
				}
				if cutAt == 0 {
					// Not valid UTF-8; take the full window.
					cutAt = max
				}
			}
			chunk = text[:cutAt]
			text = text[cutAt:]
		} else {
			text = ""
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}
