package contracts

import "fmt"

// FetchErrorKind classifies provider failures for retry decisions
type FetchErrorKind string

const (
	FetchTimeout     FetchErrorKind = "timeout"
	FetchRateLimited FetchErrorKind = "rate_limited"
	FetchServerError FetchErrorKind = "server_error"
	FetchNotFound    FetchErrorKind = "not_found"
	FetchMalformed   FetchErrorKind = "malformed"

	// FetchCancelled marks tasks abandoned by cooperative
	// cancellation, for batch bookkeeping. Never retried.
	FetchCancelled FetchErrorKind = "cancelled"
)

// Transient reports whether a failure of this kind is worth retrying
func (k FetchErrorKind) Transient() bool {
	switch k {
	case FetchTimeout, FetchRateLimited, FetchServerError:
		return true
	}
	return false
}

// FetchError is a typed provider failure. The fetcher inspects Kind
// to decide between retry and immediate failure.
type FetchError struct {
	Kind FetchErrorKind
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError wraps err with a failure classification
func NewFetchError(kind FetchErrorKind, err error) *FetchError {
	return &FetchError{Kind: kind, Err: err}
}

// FetchFailure is the terminal per-symbol failure recorded in a batch
// after retries are exhausted or a permanent error is hit.
type FetchFailure struct {
	Symbol   string         `json:"symbol"`
	Kind     FetchErrorKind `json:"kind"`
	Attempts int            `json:"attempts"`
	LastErr  string         `json:"last_err"`
}

func (f *FetchFailure) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %s (%s)", f.Symbol, f.Attempts, f.LastErr, f.Kind)
}

// ConfigError is a fatal configuration problem, raised before any
// task is dispatched. It always fails the whole batch.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}
