// Package errors implements the error taxonomy shared by every component.
// FailedToWithDetails, DatabaseError, NetworkError, ReasoningBlockError and
// ParseError return an *OperationError, so callers can uniformly inspect
// operation/component/resource/cause without type-switching on strings;
// FailedTo, ValidationError, ConfigurationError, TimeoutError,
// AuthenticationError and AuthorizationError return plain formatted errors.
package errors

import (
	"fmt"
	"strings"
)

// OperationError is the base error shape: "failed to <operation>[, component:
// <component>][, resource: <resource>][, cause: <cause>]".
type OperationError struct {
	Operation string
	Component string
	Resource  string
	Cause     error
}

func (e *OperationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "failed to %s", e.Operation)
	if e.Component != "" {
		fmt.Fprintf(&b, ", component: %s", e.Component)
	}
	if e.Resource != "" {
		fmt.Fprintf(&b, ", resource: %s", e.Resource)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ", cause: %s", e.Cause)
	}
	return b.String()
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// FailedTo builds a minimal "failed to <action>[: <cause>]" error with no
// component/resource; cause stays reachable through errors.Unwrap.
func FailedTo(action string, cause error) error {
	if cause == nil {
		return fmt.Errorf("failed to %s", action)
	}
	return fmt.Errorf("failed to %s: %w", action, cause)
}

// FailedToWithDetails builds a fully-populated OperationError.
func FailedToWithDetails(operation, component, resource string, cause error) error {
	return &OperationError{Operation: operation, Component: component, Resource: resource, Cause: cause}
}

// Wrapf wraps err with an additional formatted message, fmt.Errorf-style.
// Returns nil when err is nil so call sites can wrap unconditionally.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", msg, err)
}

// DatabaseError is a StorageError-flavored OperationError for the Hypergraph
// Store / World Model repositories.
func DatabaseError(operation string, cause error) error {
	return &OperationError{Operation: operation, Component: "database", Cause: cause}
}

// NetworkError is a RetrievalError-flavored OperationError for ResearchClient
// and LLM-backed reasoning block calls.
func NetworkError(operation, endpoint string, cause error) error {
	return &OperationError{Operation: operation, Component: "network", Resource: endpoint, Cause: cause}
}

// ValidationError reports a single field-level validation failure. The
// Canonical Schema Layer does not use it: schema.ValidationError collects
// its own schema.FieldError values.
func ValidationError(field, reason string) error {
	return fmt.Errorf("validation failed for field %s: %s", field, reason)
}

// ConfigurationError is fatal at startup per the error taxonomy.
func ConfigurationError(setting, reason string) error {
	return fmt.Errorf("configuration error for setting %s: %s", setting, reason)
}

// TimeoutError reports a per-call or per-job deadline exceeded.
func TimeoutError(operation, duration string) error {
	return fmt.Errorf("timeout while %s after %s", operation, duration)
}

// AuthenticationError reports a failed credential check against an external
// collaborator (ResearchClient, Odoo RPC, ...).
func AuthenticationError(reason string) error {
	return fmt.Errorf("authentication failed: %s", reason)
}

// AuthorizationError reports an insufficient-permission rejection, e.g. a
// domain agent attempting a strategic reasoning block.
func AuthorizationError(action, resource string) error {
	return fmt.Errorf("authorization failed: insufficient permissions to %s %s", action, resource)
}

// ReasoningBlockError reports a named reasoning block's invocation
// failure, carrying the block name as Resource so a caller inspecting the
// error (e.g. to decide retry-with-stricter-prompt vs. fall back without
// the block's contribution) can identify which block failed.
func ReasoningBlockError(blockName string, cause error) error {
	return &OperationError{Operation: "invoke", Component: "reasoning_block", Resource: blockName, Cause: cause}
}

// ParseError reports an ExtractionError-flavored failure decoding raw
// retrieval output or a YAML payload.
func ParseError(resource, format string, cause error) error {
	return &OperationError{Operation: fmt.Sprintf("parse %s as %s", resource, format), Component: "parser", Cause: cause}
}

// IsRetryable applies a conservative message-based heuristic: timeouts,
// refused connections and "unavailable" errors are retryable; everything
// else is treated as permanent. The Research DAG's retry loops do not call
// it; they retry every failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, substr := range []string{"timeout", "connection refused", "unavailable", "temporarily", "reset by peer"} {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

// Chain joins multiple non-nil errors into one message, returning nil when
// every error is nil. The joined error carries only the messages; the
// original errors are not reachable through errors.Is/As.
func Chain(errs ...error) error {
	var nonNil []string
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err.Error())
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("%s", nonNil[0])
	default:
		return fmt.Errorf("multiple errors: %s", strings.Join(nonNil, "; "))
	}
}
