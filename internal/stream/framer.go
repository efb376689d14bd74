package stream

import (
	"regexp"
	"strings"
)

// csiRegexp matches CSI sequences: ESC [ ... final-byte.
var csiRegexp = regexp.MustCompile("\x1b\\[[0-9;?]*[ -/]*[@-~]")

// oscRegexp matches OSC sequences: ESC ] ... BEL (or ESC \).
var oscRegexp = regexp.MustCompile("\x1b\\][^\x07]*(\x07|\x1b\\\\)")

// charsetRegexp matches the charset-selector pair: ESC ( | ESC ) + one of A,B,0,1,2.
var charsetRegexp = regexp.MustCompile("\x1b[()][AB012]")

// stripANSI removes the union of CSI, OSC, and charset-selector escape
// sequences from line, per spec.md §4.1's pre-clean step.
func stripANSI(line string) string {
	line = csiRegexp.ReplaceAllString(line, "")
	line = oscRegexp.ReplaceAllString(line, "")
	line = charsetRegexp.ReplaceAllString(line, "")
	return line
}

// preClean strips ANSI escapes and discards any leading garbage before
// the first `{`. It reports ok=false when no `{` is present at all,
// meaning the caller should emit the line verbatim as LineText.
func preClean(line string) (cleaned string, ok bool) {
	stripped := stripANSI(line)
	idx := strings.IndexByte(stripped, '{')
	if idx < 0 {
		return stripped, false
	}
	return stripped[idx:], true
}

// Framer buffers arbitrary byte chunks and yields complete lines split
// on '\n', retaining any trailing partial line across calls. Call
// Flush at end-of-stream to retrieve a final non-empty trimmed
// remainder, if any.
type Framer struct {
	buf strings.Builder
}

// Feed appends chunk to the internal buffer and returns every complete
// line it now contains (newline stripped), leaving any trailing
// partial line buffered for the next Feed or Flush call.
func (f *Framer) Feed(chunk []byte) []string {
	f.buf.Write(chunk)
	data := f.buf.String()

	var lines []string
	start := 0
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}

	f.buf.Reset()
	if start < len(data) {
		f.buf.WriteString(data[start:])
	}
	return lines
}

// Flush returns the buffered remainder as a final line if it is
// non-empty after trimming, per spec.md §4.1.
func (f *Framer) Flush() (line string, ok bool) {
	rem := f.buf.String()
	f.buf.Reset()
	trimmed := strings.TrimRight(rem, "\r\n")
	if strings.TrimSpace(trimmed) == "" {
		return "", false
	}
	return trimmed, true
}
