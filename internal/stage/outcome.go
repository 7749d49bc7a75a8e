package stage

import (
	"context"
	"errors"
	"strings"

	"leadflow/internal/ledger"
	"leadflow/internal/services"
)

// Kind identifies how an executor finished.
type Kind string

const (
	KindAdvance   Kind = "advance"
	KindReject    Kind = "reject"
	KindRetryable Kind = "retryable"
	KindFatal     Kind = "fatal"
)

// Outcome is the value an executor returns. Fields is set only for Advance;
// Reason is set for every other kind.
type Outcome struct {
	Kind   Kind
	Fields ledger.Payload
	Reason string
	Err    error
}

// Advance reports success with the payload fields the stage produced.
func Advance(fields ledger.Payload) Outcome {
	if fields == nil {
		fields = ledger.Payload{}
	}
	return Outcome{Kind: KindAdvance, Fields: fields}
}

// Reject is a terminal business decision. Only the validate stage may reject.
func Reject(reason string) Outcome {
	return Outcome{Kind: KindReject, Reason: reasonOr(reason, "rejected")}
}

// Retryable reports a failure that may succeed on a later tick.
func Retryable(reason string, err error) Outcome {
	return Outcome{Kind: KindRetryable, Reason: reasonOr(reason, errReason(err)), Err: err}
}

// Fatal reports a failure that will not succeed on retry.
func Fatal(reason string, err error) Outcome {
	return Outcome{Kind: KindFatal, Reason: reasonOr(reason, errReason(err)), Err: err}
}

// FromError maps the services error taxonomy to an outcome. Deadline and
// cancellation errors are retryable.
func FromError(err error) Outcome {
	if err == nil {
		return Fatal("executor returned no result", nil)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Retryable("stage timed out", err)
	}
	if services.Classify(err).Retryable() {
		return Retryable("", err)
	}
	return Fatal("", err)
}

func errReason(err error) string {
	if err == nil {
		return ""
	}
	return services.Details(err).Message
}

func reasonOr(reason, fallback string) string {
	if r := strings.TrimSpace(reason); r != "" {
		return r
	}
	if f := strings.TrimSpace(fallback); f != "" {
		return f
	}
	return "unspecified"
}
