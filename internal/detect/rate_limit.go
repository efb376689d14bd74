package detect

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Grounded on steveyegge-vc/internal/ai/retry.go's pre-compiled
// natural-language retry-hint regex trio.
var (
	retryAfterTryAgainRegex = regexp.MustCompile(`(?i)try again in (\d+)\s*(second|minute|hour)s?`)
	retryAfterWaitRegex     = regexp.MustCompile(`(?i)wait (\d+)\s*(second|minute|hour)s?`)
	retryAfterPhraseRegex   = regexp.MustCompile(`(?i)retry after (\d+)\s*(second|minute|hour)s?`)
	retryAfterColonRegex    = regexp.MustCompile(`(?i)retry[_-]?after["']?\s*:\s*(\d+)`)

	rateLimitStartOfLine = regexp.MustCompile(`(?i)^\s*(error:\s*)?(rate limit|quota exceeded|too many requests|429)`)
	rateLimitWithHint    = regexp.MustCompile(`(?i)(rate limit|quota exceeded).{0,80}\b\d+\s*(second|minute|hour)s?\b`)
)

// RateLimitVerdict is the result of one RateLimitDetector.Check call.
type RateLimitVerdict struct {
	Matched    bool
	RetryAfter time.Duration // zero if no hint could be extracted
}

// RateLimitDetector classifies a line or a structured event's text as
// a rate-limit signal. It is false-positive safe per spec.md §4.2: it
// only matches when the phrase appears at the start of a line, inside
// a structured error event (IsStructuredError=true), or alongside a
// numeric retry hint — never on the bare phrase appearing mid-sentence
// in ordinary source/help text.
type RateLimitDetector struct{}

// CheckLine classifies a plain text line (LineText or a Text-kind
// StructuredEvent payload).
func (RateLimitDetector) CheckLine(line string) RateLimitVerdict {
	if rateLimitStartOfLine.MatchString(line) {
		return RateLimitVerdict{Matched: true, RetryAfter: extractRetryAfter(line)}
	}
	if rateLimitWithHint.MatchString(line) {
		return RateLimitVerdict{Matched: true, RetryAfter: extractRetryAfter(line)}
	}
	return RateLimitVerdict{}
}

// CheckStructuredError classifies text known to originate from a
// structured error event (e.g. a tool_result with is_error=true, or a
// dialect's "result" envelope reporting failure) — here the bare
// phrase is trusted without requiring start-of-line or a numeric hint,
// since structure already rules out it being quoted source/help text.
func (RateLimitDetector) CheckStructuredError(text string) RateLimitVerdict {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "rate limit") || strings.Contains(lower, "quota exceeded") ||
		strings.Contains(lower, "too many requests") || strings.Contains(lower, "429") {
		return RateLimitVerdict{Matched: true, RetryAfter: extractRetryAfter(text)}
	}
	return RateLimitVerdict{}
}

// CheckHTTPStatus classifies an HTTP status code plus optional
// Retry-After/X-RateLimit-Reset header values, grounded on
// steveyegge-vc/internal/ai/retry.go's classifyError/parseRetryAfter.
func (RateLimitDetector) CheckHTTPStatus(status int, retryAfterHeader, rateLimitResetHeader string) RateLimitVerdict {
	if status != 429 {
		return RateLimitVerdict{}
	}
	if retryAfterHeader != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(retryAfterHeader)); err == nil {
			return RateLimitVerdict{Matched: true, RetryAfter: time.Duration(secs) * time.Second}
		}
	}
	if rateLimitResetHeader != "" {
		if secs, err := strconv.ParseInt(strings.TrimSpace(rateLimitResetHeader), 10, 64); err == nil {
			if until := time.Unix(secs, 0); until.After(time.Now()) {
				return RateLimitVerdict{Matched: true, RetryAfter: time.Until(until)}
			}
		}
	}
	return RateLimitVerdict{Matched: true}
}

// extractRetryAfter looks for the common natural-language phrasings
// from spec.md §4.2 ("retry after N seconds", "try again in Nm", a
// "retry-after" header rendered inline).
func extractRetryAfter(text string) time.Duration {
	if m := retryAfterTryAgainRegex.FindStringSubmatch(text); m != nil {
		return durationFromMatch(m)
	}
	if m := retryAfterWaitRegex.FindStringSubmatch(text); m != nil {
		return durationFromMatch(m)
	}
	if m := retryAfterPhraseRegex.FindStringSubmatch(text); m != nil {
		return durationFromMatch(m)
	}
	if m := retryAfterColonRegex.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return 0
}

func durationFromMatch(m []string) time.Duration {
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	unit := strings.ToLower(m[2])
	switch {
	case strings.HasPrefix(unit, "second"):
		return time.Duration(n) * time.Second
	case strings.HasPrefix(unit, "minute"):
		return time.Duration(n) * time.Minute
	case strings.HasPrefix(unit, "hour"):
		return time.Duration(n) * time.Hour
	default:
		return 0
	}
}
