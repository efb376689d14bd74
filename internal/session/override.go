package session

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Override is an optional per-working-directory ralph.toml that lets
// an operator pin engine tunables without going through the (out of
// scope) interactive config wizard, grounded on nevindra-oasis's
// toml-parsed service config.
type Override struct {
	IterationCap      int    `toml:"iteration_cap"`
	InitialBackoffMS  int64  `toml:"initial_backoff_ms"`
	MaxBackoffMS      int64  `toml:"max_backoff_ms"`
	MaxRetries        int    `toml:"max_retries"`
	Model             string `toml:"model"`
	ReasoningEffort   string `toml:"reasoning_effort"`
}

// LoadOverride reads dir/ralph.toml if present, returning a zero
// Override and no error when the file does not exist.
func LoadOverride(dir string) (Override, error) {
	path := filepath.Join(dir, "ralph.toml")
	var o Override
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return o, nil
	}
	if _, err := toml.DecodeFile(path, &o); err != nil {
		return o, fmt.Errorf("session: parse %s: %w", path, err)
	}
	return o, nil
}

// InitialBackoff returns the override's backoff as a time.Duration, or
// zero if unset.
func (o Override) InitialBackoff() time.Duration {
	return time.Duration(o.InitialBackoffMS) * time.Millisecond
}

// MaxBackoff returns the override's max backoff as a time.Duration, or
// zero if unset.
func (o Override) MaxBackoff() time.Duration {
	return time.Duration(o.MaxBackoffMS) * time.Millisecond
}
