package console

import (
	"regexp"
	"unicode/utf8"
)

// escapeSeq matches CSI, OSC, DCS/PM/APC strings, charset and keypad
// selections, then any other two-byte escape.
var escapeSeq = regexp.MustCompile(
	`\x1b\[[0-?]*[ -/]*[@-~]` +
		`|\x1b\].*?(?:\x07|\x1b\\)` +
		`|\x1b[P^_k].*?\x1b\\` +
		`|\x1b[()][0-9A-Za-z]` +
		`|\x1b.`,
)

// StripANSI drops escape sequences from line, applies backspaces one rune
// at a time and removes the remaining control bytes other than tab.
func StripANSI(line string) string {
	line = escapeSeq.ReplaceAllString(line, "")

	out := make([]byte, 0, len(line))
	for i := 0; i < len(line); i++ {
		switch ch := line[i]; {
		case ch == '\b':
			_, size := utf8.DecodeLastRune(out)
			out = out[:len(out)-size]
		case ch == '\t':
			out = append(out, ch)
		case ch < 0x20 || ch == 0x7f:
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}
