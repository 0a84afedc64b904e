package scoring

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/clickrush/apiserver/types"
)

// Kind classifies a score-subsystem failure.
type Kind int

// Error kinds. Validation kinds are caused by the client.
const (
	KindUnknown Kind = iota
	KindInvalidMode
	KindInvalidModeValue
	KindInvalidMetrics
	KindInvalidInput
	KindRateLimited
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindInvalidMode:
		return "invalid_mode"
	case KindInvalidModeValue:
		return "invalid_mode_value"
	case KindInvalidMetrics:
		return "invalid_metrics"
	case KindInvalidInput:
		return "invalid_input"
	case KindRateLimited:
		return "rate_limited"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by the score subsystem.
// Each kind carries only the fields it needs: RetryAfter is set for
// KindRateLimited, Err holds the underlying cause for KindPersistence.
type Error struct {
	Kind       Kind
	Detail     string
	RetryAfter time.Duration
	Err        error
}

// Sentinels for errors.Is matching by kind.
var (
	ErrInvalidMode      = &Error{Kind: KindInvalidMode}
	ErrInvalidModeValue = &Error{Kind: KindInvalidModeValue}
	ErrInvalidMetrics   = &Error{Kind: KindInvalidMetrics}
	ErrInvalidInput     = &Error{Kind: KindInvalidInput}
	ErrRateLimited      = &Error{Kind: KindRateLimited}
	ErrPersistence      = &Error{Kind: KindPersistence}
)

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return e.Detail
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind when target is a bare sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Detail == ""
}

// Validation reports whether the kind is client-caused.
func (k Kind) Validation() bool {
	switch k {
	case KindInvalidMode, KindInvalidModeValue, KindInvalidMetrics, KindInvalidInput:
		return true
	default:
		return false
	}
}

// KindOf extracts the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// InvalidMode reports an unsupported mode token.
func InvalidMode(mode string) *Error {
	return &Error{
		Kind:   KindInvalidMode,
		Detail: fmt.Sprintf("invalid mode %q: must be one of time, clicks", mode),
	}
}

// InvalidModeValue reports a mode value outside the allowed set for mode.
func InvalidModeValue(mode types.Mode, value int) *Error {
	valid := mode.Values()
	parts := make([]string, len(valid))
	for i, v := range valid {
		parts[i] = strconv.Itoa(v)
	}
	return &Error{
		Kind: KindInvalidModeValue,
		Detail: fmt.Sprintf("invalid mode value %d for mode %s: valid values are %s",
			value, mode, strings.Join(parts, ", ")),
	}
}

// InvalidMetrics reports inconsistent session counters.
func InvalidMetrics(detail string) *Error {
	return &Error{Kind: KindInvalidMetrics, Detail: detail}
}

// InvalidInput reports a malformed query parameter.
func InvalidInput(detail string) *Error {
	return &Error{Kind: KindInvalidInput, Detail: detail}
}

// RateLimited reports that a user exhausted the submission window.
func RateLimited(retryAfter time.Duration) *Error {
	return &Error{
		Kind:       KindRateLimited,
		Detail:     "score submission rate limit exceeded",
		RetryAfter: retryAfter,
	}
}

// Persistence wraps a store failure. The cause is kept for logs only.
func Persistence(detail string, cause error) *Error {
	return &Error{Kind: KindPersistence, Detail: detail, Err: cause}
}
