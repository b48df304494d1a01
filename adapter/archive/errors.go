package archive

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
)

// Sentinel errors for archive failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrAccessDenied indicates valid credentials without permission (403).
	ErrAccessDenied = errors.New("access denied")

	// ErrAuth indicates missing, invalid or expired credentials.
	ErrAuth = errors.New("authentication failed")

	// ErrNotFound indicates the bucket does not exist.
	ErrNotFound = errors.New("not found")

	// ErrThrottled indicates rate limiting (429, SlowDown).
	ErrThrottled = errors.New("rate limited")

	// ErrTimeout indicates the put timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrNetwork indicates a network-level failure (connection refused, DNS).
	ErrNetwork = errors.New("network error")

	// ErrStorage is the fallback for unclassified failures.
	ErrStorage = errors.New("storage error")
)

// StorageError wraps an object-store failure with its classification.
// The original error stays in the chain for errors.As.
type StorageError struct {
	// Kind is the sentinel used for classification.
	Kind error
	// Key is the object key involved.
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("archive put %s: %v: %v", e.Key, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// wrapPutError classifies err. Returns nil if err is nil.
func wrapPutError(err error, key string) error {
	if err == nil {
		return nil
	}
	return &StorageError{Kind: classifyError(err), Key: key, Err: err}
}

// classifyError prefers the service error code and falls back to message
// patterns for transport failures.
func classifyError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "Forbidden", "AllAccessDisabled":
			return ErrAccessDenied
		case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "Unauthorized":
			return ErrAuth
		case "NoSuchBucket", "NotFound":
			return ErrNotFound
		case "SlowDown", "TooManyRequests", "Throttling", "RequestLimitExceeded":
			return ErrThrottled
		case "RequestTimeout":
			return ErrTimeout
		}
	}

	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return ErrTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "timeout", "timed out", "deadline exceeded"):
		return ErrTimeout
	case containsAny(msg, "no valid providers", "credentials", "401"):
		return ErrAuth
	case containsAny(msg, "accessdenied", "forbidden", "403"):
		return ErrAccessDenied
	case containsAny(msg, "connection refused", "no route to host", "network unreachable",
		"no such host", "dial tcp"):
		return ErrNetwork
	default:
		return ErrStorage
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
