package detect

import (
	"regexp"

	"github.com/ralphctl/ralph/internal/types"
)

var authFailureRegex = regexp.MustCompile(`(?i)\b(unauthorized|authentication failed|invalid api key|401|403 forbidden)\b`)

// missingBinaryExitCode is the shell convention for "command not
// found" (bash, zsh, and POSIX-sh all use 127).
const missingBinaryExitCode = 127

// FatalVerdict is the result of one FatalDetector check.
type FatalVerdict struct {
	Matched bool
	Kind    types.ErrorKind
	Reason  string
}

// FatalDetector classifies authentication failures, missing-binary
// exit codes, and explicit is_error=true tool results as fatal,
// per spec.md §4.2.
type FatalDetector struct{}

// CheckLine inspects a plain text line for an authentication failure.
func (FatalDetector) CheckLine(line string) FatalVerdict {
	if authFailureRegex.MatchString(line) {
		return FatalVerdict{Matched: true, Kind: types.ErrorAuth, Reason: "authentication failure detected in output"}
	}
	return FatalVerdict{}
}

// CheckExitCode inspects the child process's exit code.
func (FatalDetector) CheckExitCode(code int) FatalVerdict {
	if code == missingBinaryExitCode {
		return FatalVerdict{Matched: true, Kind: types.ErrorMissingBinary, Reason: "exit code 127: command not found"}
	}
	return FatalVerdict{}
}

// CheckToolResult inspects a structured tool_result for an explicit
// is_error flag (spec.md §4.2: "explicit is_error: true in a
// tool_result").
func (FatalDetector) CheckToolResult(isError bool, output string) FatalVerdict {
	if !isError {
		return FatalVerdict{}
	}
	if authFailureRegex.MatchString(output) {
		return FatalVerdict{Matched: true, Kind: types.ErrorAuth, Reason: "tool reported an authentication failure"}
	}
	return FatalVerdict{Matched: true, Kind: types.ErrorRuntime, Reason: "tool_result reported is_error=true"}
}
