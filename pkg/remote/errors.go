package remote

import (
	"errors"
	"fmt"
	"time"
)

// ContractError reports a payload that failed local contract validation
// before any network call. It signals a code defect: the same payload would
// be malformed for every subsequent item, so callers must abort rather than
// retry.
type ContractError struct {
	Operation string
	Detail    string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("contract violation in %s payload: %s", e.Operation, e.Detail)
}

// IsContractError reports whether err is a ContractError
func IsContractError(err error) bool {
	var ce *ContractError
	return errors.As(err, &ce)
}

// RemoteError reports a failed call to the remote store after a well-formed
// request was sent.
type RemoteError struct {
	Operation  string
	StatusCode int // 0 for transport-level failures
	Body       string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("remote %s failed with status %d: %s", e.Operation, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("remote %s failed: %v", e.Operation, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient. Transport errors,
// server errors, and 408/409/429 are retryable; other client errors are not.
func (e *RemoteError) Retryable() bool {
	if e.StatusCode == 0 {
		return true
	}
	switch e.StatusCode {
	case 408, 409, 429:
		return true
	}
	return e.StatusCode >= 500
}

// IsRetryable reports whether err is a retryable RemoteError
func IsRetryable(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return false
}

// VerificationTimeoutError reports that pushed content could not be
// confirmed remotely within the verification budget. It is distinct from a
// push failure: the add call itself succeeded, but the read-after-write
// check did not pass in time.
type VerificationTimeoutError struct {
	Collection string
	Timeout    time.Duration
}

func (e *VerificationTimeoutError) Error() string {
	return fmt.Sprintf("collection %q not verified within %s after push", e.Collection, e.Timeout)
}

// IsVerificationTimeout reports whether err is a VerificationTimeoutError
func IsVerificationTimeout(err error) bool {
	var ve *VerificationTimeoutError
	return errors.As(err, &ve)
}

// ProcessingError reports that the remote processing step ended in an
// errored status for a collection.
type ProcessingError struct {
	CollectionID string
	Status       Status
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing failed for collection %q: %s", e.CollectionID, e.Status)
}
