package apperror

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Kind groups codes by how callers should react to them.
type Kind uint8

const (
	KindInternal Kind = iota
	KindInvalid
	KindNotFound
	// KindUnavailable marks failures of a dependency that may succeed on a
	// later block: RPC, storage, open breakers, rate limits.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// AppError implements the error interface and provides structured error handling
type AppError struct {
	Code      Code
	Message   string
	Kind      Kind
	Context   string
	Timestamp time.Time
	cause     error
	stack     []uintptr
}

// Error implements the error interface
func (e *AppError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Code))
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Context != "" {
		sb.WriteString(" (")
		sb.WriteString(e.Context)
		sb.WriteString(")")
	}
	if e.cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.cause.Error())
	}
	return sb.String()
}

// Unwrap implements the errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.cause
}

// Is matches any AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Summary is the one-line form shown to operators: message and context,
// without the cause chain.
func (e *AppError) Summary() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Context)
	}
	return e.Message
}

// Stack returns the captured call stack, one frame per line.
func (e *AppError) Stack() string {
	var sb strings.Builder
	frames := runtime.CallersFrames(e.stack)
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			fmt.Fprintf(&sb, "\n\t%s:%d %s", frame.File, frame.Line, frame.Function)
		}
		if !more {
			break
		}
	}
	return sb.String()
}

func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[:n]
}

// New creates a new AppError with the given code and options
func New(code Code, opts ...Option) *AppError {
	err := &AppError{
		Code:      code,
		Message:   messages[code],
		Kind:      kindOf(code),
		Timestamp: time.Now(),
		stack:     captureStack(),
	}

	for _, opt := range opts {
		opt(err)
	}

	if err.Message == "" {
		err.Message = string(code)
	}

	return err
}

// Option is a functional option for AppError
type Option func(*AppError)

// WithContext adds context information
func WithContext(context string) Option {
	return func(e *AppError) {
		e.Context = context
	}
}

// WithCause wraps an underlying error
func WithCause(cause error) Option {
	return func(e *AppError) {
		e.cause = cause
	}
}

// WithKind overrides the kind derived from the code.
func WithKind(kind Kind) Option {
	return func(e *AppError) {
		e.Kind = kind
	}
}

// NotFound creates a not found error
func NotFound(code Code, context string) *AppError {
	return New(code, WithContext(context), WithKind(KindNotFound))
}

// Validation creates a validation error
func Validation(code Code, context string) *AppError {
	return New(code, WithContext(context), WithKind(KindInvalid))
}

// Internal creates an internal error
func Internal(code Code, context string, cause error) *AppError {
	return New(code, WithContext(context), WithCause(cause), WithKind(KindInternal))
}

// External creates an error for a failing dependency
func External(code Code, context string, cause error) *AppError {
	return New(code, WithContext(context), WithCause(cause), WithKind(KindUnavailable))
}

// Wrap turns err into an AppError. An AppError anywhere in the chain is
// returned as is, gaining context if it had none.
func Wrap(err error, code Code, context string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		if context != "" && appErr.Context == "" {
			appErr.Context = context
		}
		return appErr
	}

	return Internal(code, context, err)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetCode extracts the error code from an error
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknownError
}

// IsUnavailable reports whether any AppError in err's chain is of
// KindUnavailable.
func IsUnavailable(err error) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Kind == KindUnavailable {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// Summary returns the operator-facing line for err.
func Summary(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Summary()
	}
	return err.Error()
}

func kindOf(code Code) Kind {
	s := string(code)
	switch {
	case strings.Contains(s, "NOT_FOUND"):
		return KindNotFound
	case strings.Contains(s, "INVALID"), strings.Contains(s, "REQUIRED"), code == CodeValidationError:
		return KindInvalid
	case strings.Contains(s, "CONNECTION"),
		strings.Contains(s, "TIMEOUT"),
		strings.Contains(s, "UNAVAILABLE"),
		strings.Contains(s, "CIRCUIT"),
		code == CodeRateLimitExceeded,
		code == CodeEthereumRPCError,
		code == CodeContractCallFailed:
		return KindUnavailable
	default:
		return KindInternal
	}
}
