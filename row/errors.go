package row

import "github.com/cockroachdb/errors"

// The evaluator's error taxonomy. Every error returned by the engines is
// marked with exactly one of these sentinels so callers can classify
// failures with errors.Is without string matching. Validation errors are
// raised before any row is processed; type mismatches abort the current
// evaluation; internal invariant violations indicate evaluator bugs and
// are deliberately kept separate from user-facing validation failures.
var (
	ErrValidation     = errors.New("validation error")
	ErrTypeMismatch   = errors.New("type mismatch")
	ErrRecursionLimit = errors.New("recursion limit exceeded")
	ErrCancelled      = errors.New("evaluation cancelled")
	ErrInternal       = errors.New("internal invariant violation")
)

// Validationf builds a malformed-spec error.
func Validationf(format string, args ...interface{}) error {
	return errors.Mark(errors.NewWithDepthf(1, format, args...), ErrValidation)
}

// TypeMismatchf builds a runtime value/schema divergence error.
func TypeMismatchf(format string, args ...interface{}) error {
	return errors.Mark(errors.NewWithDepthf(1, format, args...), ErrTypeMismatch)
}

// Internalf builds an internal invariant violation. These are never the
// caller's fault.
func Internalf(format string, args ...interface{}) error {
	return errors.Mark(errors.NewWithDepthf(1, format, args...), ErrInternal)
}

// Cancelled wraps a context error as a cooperative cancellation result.
func Cancelled(cause error) error {
	return errors.Mark(errors.Wrap(cause, "evaluation cancelled"), ErrCancelled)
}

// Wrapf adds context to an error while preserving its taxonomy marker.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// IsValidation reports whether err is a malformed-spec error.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsTypeMismatch reports whether err is a value/schema divergence.
func IsTypeMismatch(err error) bool { return errors.Is(err, ErrTypeMismatch) }

// IsRecursionLimit reports whether err reports an exceeded depth ceiling.
func IsRecursionLimit(err error) bool { return errors.Is(err, ErrRecursionLimit) }

// IsCancelled reports whether err is a cooperative cancellation.
func IsCancelled(err error) bool { return errors.Is(err, ErrCancelled) }

// IsInternal reports whether err is an evaluator invariant violation.
func IsInternal(err error) bool { return errors.Is(err, ErrInternal) }
