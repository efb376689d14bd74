package detect

import (
	"testing"
	"time"

	"github.com/ralphctl/ralph/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestCompletionDetector(t *testing.T) {
	var d CompletionDetector
	assert.False(t, d.Fired())
	d.Feed("...still working...")
	assert.False(t, d.Fired())
	d.Feed("all done <promise>COMPLETE</promise>")
	assert.True(t, d.Fired())
}

func TestCompletionDetectorCaseSensitive(t *testing.T) {
	var d CompletionDetector
	d.Feed("<promise>complete</promise>")
	assert.False(t, d.Fired())
}

func TestRateLimitDetectorStartOfLine(t *testing.T) {
	d := RateLimitDetector{}
	v := d.CheckLine("Error: rate limit exceeded. Retry after 2 seconds.")
	assert.True(t, v.Matched)
	assert.Equal(t, 2*time.Second, v.RetryAfter)
}

func TestRateLimitDetectorFalsePositiveSafe(t *testing.T) {
	d := RateLimitDetector{}
	// "rate limit" appears mid-sentence in ordinary text, no numeric hint,
	// not at start of line: must not match (spec.md §4.2).
	v := d.CheckLine("// see docs on how we implement rate limit handling in this module")
	assert.False(t, v.Matched)
}

func TestRateLimitDetectorWithNumericHintMidSentence(t *testing.T) {
	d := RateLimitDetector{}
	v := d.CheckLine("the request failed because of a rate limit, please wait 30 seconds before continuing")
	assert.True(t, v.Matched)
	assert.Equal(t, 30*time.Second, v.RetryAfter)
}

func TestRateLimitDetectorStructuredErrorTrustsBarePhrase(t *testing.T) {
	d := RateLimitDetector{}
	v := d.CheckStructuredError("quota exceeded")
	assert.True(t, v.Matched)
}

func TestRateLimitDetectorHTTPStatus(t *testing.T) {
	d := RateLimitDetector{}
	v := d.CheckHTTPStatus(429, "5", "")
	assert.True(t, v.Matched)
	assert.Equal(t, 5*time.Second, v.RetryAfter)

	v = d.CheckHTTPStatus(500, "", "")
	assert.False(t, v.Matched)
}

func TestExtractRetryAfterPhrasings(t *testing.T) {
	assert.Equal(t, 2*time.Second, extractRetryAfter("try again in 2 seconds"))
	assert.Equal(t, 3*time.Minute, extractRetryAfter("please wait 3 minutes"))
	assert.Equal(t, 10*time.Second, extractRetryAfter(`retry_after: 10`))
	assert.Equal(t, time.Duration(0), extractRetryAfter("no hint here"))
}

func TestFatalDetectorAuth(t *testing.T) {
	d := FatalDetector{}
	v := d.CheckLine("Error: authentication failed, invalid API key")
	assert.True(t, v.Matched)
	assert.Equal(t, types.ErrorAuth, v.Kind)
}

func TestFatalDetectorMissingBinary(t *testing.T) {
	d := FatalDetector{}
	v := d.CheckExitCode(127)
	assert.True(t, v.Matched)
	assert.Equal(t, types.ErrorMissingBinary, v.Kind)

	v = d.CheckExitCode(0)
	assert.False(t, v.Matched)
}

func TestFatalDetectorToolResult(t *testing.T) {
	d := FatalDetector{}
	v := d.CheckToolResult(true, "permission denied")
	assert.True(t, v.Matched)
	assert.Equal(t, types.ErrorRuntime, v.Kind)

	v = d.CheckToolResult(false, "ok")
	assert.False(t, v.Matched)
}

func TestErrorKindImmediatelyFatal(t *testing.T) {
	assert.True(t, types.ErrorAuth.ImmediatelyFatal())
	assert.True(t, types.ErrorMissingBinary.ImmediatelyFatal())
	assert.False(t, types.ErrorRuntime.ImmediatelyFatal())
}
