package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	ErrAuth          = errors.New("authentication rejected")
)

// Kind classifies an error for logging and retry decisions.
type Kind string

const (
	KindTransient     Kind = "transient"
	KindTimeout       Kind = "timeout"
	KindExternalTool  Kind = "external_tool"
	KindAuth          Kind = "auth"
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
	KindNotFound      Kind = "not_found"
	KindUnknown       Kind = "unknown"
)

// Retryable reports whether failures of this kind may succeed on a later attempt.
// Auth is retryable: a rejected key is often rotated or re-enabled upstream.
func (k Kind) Retryable() bool {
	switch k {
	case KindValidation, KindConfiguration, KindNotFound:
		return false
	default:
		return true
	}
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to its Kind using the sentinel markers.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAuth):
		return KindAuth
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrExternalTool):
		return KindExternalTool
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindUnknown
	}
}

// ErrorDetails is the structured view of an error used in log attributes.
type ErrorDetails struct {
	Kind    Kind
	Message string
	Hint    string
	Cause   error
}

// Details extracts a classification, the outermost message, and an operator hint.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Kind: KindUnknown}
	}
	kind := Classify(err)
	details := ErrorDetails{
		Kind:    kind,
		Message: strings.TrimSpace(err.Error()),
		Hint:    hintFor(kind),
		Cause:   errors.Unwrap(err),
	}
	return details
}

func hintFor(kind Kind) string {
	switch kind {
	case KindAuth:
		return "check llm.api_key or smtp credentials"
	case KindTimeout:
		return "remote service slow or unreachable; will retry"
	case KindExternalTool:
		return "check render.converter_command is installed"
	case KindConfiguration:
		return "fix configuration and reconcile the record"
	case KindValidation, KindNotFound:
		return "inspect the record payload with 'leadflow ledger show'"
	case KindTransient:
		return "transient failure; will retry"
	default:
		return "check logs for details"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
