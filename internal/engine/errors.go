package engine

import (
	"errors"
	"fmt"
)

// Code categorizes engine diagnostics.
type Code string

const (
	// CodeInvalidBindingKey rejects a request for an undeclared key.
	// Rejected pre-staging: no side effects.
	CodeInvalidBindingKey Code = "INVALID_BINDING_KEY"

	// CodeReservedValue rejects a request storing the wildcard sentinel.
	// The wildcard is only meaningful inside catalog entries.
	CodeReservedValue Code = "RESERVED_VALUE"

	// CodeInvalidTransition indicates no qualifying edge (or guard) exists
	// for an explicit named transition. The store is unchanged.
	CodeInvalidTransition Code = "INVALID_TRANSITION"

	// CodeNoMatchingConfiguration is the non-fatal diagnostic logged when
	// a commit attempt leaves the system in an unclassified combination.
	CodeNoMatchingConfiguration Code = "NO_MATCHING_CONFIGURATION"

	// CodeWatcherFailure marks an isolated watcher callback failure.
	CodeWatcherFailure Code = "WATCHER_FAILURE"

	// CodeCycleDetected aborts a cascade that reproduced an earlier store
	// snapshot. Only the offending cascade is dropped; the store remains
	// at its last stable commit.
	CodeCycleDetected Code = "CYCLE_DETECTED"

	// CodeCascadeQuotaExceeded aborts a cascade that ran more steps than
	// the configured limit without cycling (linear explosion).
	CodeCascadeQuotaExceeded Code = "CASCADE_QUOTA_EXCEEDED"
)

// EngineError is a structured runtime diagnostic.
//
// Runtime errors surface through diagnostics and error returns, never by
// terminating the engine. Only configuration-time misuse (duplicate
// catalog names, edges to undefined configurations, malformed guards)
// fails fast at definition time, outside this type.
type EngineError struct {
	Code    Code
	Message string

	// Key is the affected binding key, when the error concerns one.
	Key string

	// From and To name the configurations of a failed transition.
	From string
	To   string

	// Txn is the transaction token of the offending cascade.
	Txn string
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	switch {
	case e.Key != "":
		return fmt.Sprintf("%s: %s (key=%s)", e.Code, e.Message, e.Key)
	case e.From != "" || e.To != "":
		return fmt.Sprintf("%s: %s (from=%s, to=%s)", e.Code, e.Message, e.From, e.To)
	case e.Txn != "":
		return fmt.Sprintf("%s: %s (txn=%s)", e.Code, e.Message, e.Txn)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsInvalidKey reports whether err is an invalid-binding-key rejection.
// Uses errors.As to handle wrapped errors.
func IsInvalidKey(err error) bool {
	return hasCode(err, CodeInvalidBindingKey)
}

// IsInvalidTransition reports whether err is an invalid-transition rejection.
func IsInvalidTransition(err error) bool {
	return hasCode(err, CodeInvalidTransition)
}

// IsCycleError reports whether err is a cycle-detection abort.
func IsCycleError(err error) bool {
	return hasCode(err, CodeCycleDetected)
}

// IsQuotaError reports whether err is a cascade-quota abort.
func IsQuotaError(err error) bool {
	return hasCode(err, CodeCascadeQuotaExceeded)
}

func hasCode(err error, code Code) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

// NewInvalidKeyError creates the pre-staging rejection for an undeclared key.
func NewInvalidKeyError(key string) *EngineError {
	return &EngineError{
		Code:    CodeInvalidBindingKey,
		Message: "binding key not declared",
		Key:     key,
	}
}

// NewReservedValueError creates the rejection for storing the wildcard.
func NewReservedValueError(key string) *EngineError {
	return &EngineError{
		Code:    CodeReservedValue,
		Message: `"*" is reserved for catalog entries and cannot be stored`,
		Key:     key,
	}
}

// NewInvalidTransitionError creates the rejection for an unqualified transition.
func NewInvalidTransitionError(from, to, reason string) *EngineError {
	return &EngineError{
		Code:    CodeInvalidTransition,
		Message: reason,
		From:    from,
		To:      to,
	}
}

// NewCycleError creates the abort for a cascade reproducing a snapshot.
func NewCycleError(txn, fingerprint string) *EngineError {
	return &EngineError{
		Code:    CodeCycleDetected,
		Message: fmt.Sprintf("cascade reproduced store snapshot %.12s", fingerprint),
		Txn:     txn,
	}
}

// NewQuotaError creates the abort for a cascade exceeding its step limit.
func NewQuotaError(txn string, steps, limit int) *EngineError {
	return &EngineError{
		Code:    CodeCascadeQuotaExceeded,
		Message: fmt.Sprintf("cascade exceeded max steps (%d > %d)", steps, limit),
		Txn:     txn,
	}
}
