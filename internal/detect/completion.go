// Package detect implements the three Signal Detectors of spec.md
// §4.2: completion, rate-limit, and fatal-error classification over
// the iteration's accumulated text and structured events.
package detect

import "strings"

// CompletionSentinel is the literal, case-sensitive marker the agent
// emits to signal task completion.
const CompletionSentinel = "<promise>COMPLETE</promise>"

// CompletionDetector reports whether the concatenated text seen so far
// in an iteration contains the completion sentinel.
type CompletionDetector struct {
	seen bool
}

// Feed appends one chunk of text (from LineText or a structured
// event's Text field) to the detector's view of the iteration.
func (d *CompletionDetector) Feed(text string) {
	if d.seen {
		return
	}
	if strings.Contains(text, CompletionSentinel) {
		d.seen = true
	}
}

// Fired reports whether the sentinel has been seen.
func (d *CompletionDetector) Fired() bool { return d.seen }
