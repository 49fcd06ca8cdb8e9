package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch failure. The executor retries only throttling;
// every other kind propagates to the orchestrator as a per-item failure.
type Kind int

const (
	// KindNetwork is a transport-level failure (connection, timeout).
	KindNetwork Kind = iota + 1
	// KindHTTP is a non-2xx, non-429, non-404 response.
	KindHTTP
	// KindRateLimitExhausted is a 429 that persisted past the retry budget.
	KindRateLimitExhausted
	// KindDecode is a 2xx response whose body could not be parsed.
	KindDecode
	// KindNotFound is a 404, treated as a benign empty result by callers.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindRateLimitExhausted:
		return "rate_limit_exhausted"
	case KindDecode:
		return "decode"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a classified fetch failure.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the failure kind of err, or zero if err is not a fetch error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// IsNotFound reports whether err is the benign not-found case.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
