package lode

import (
	"errors"
	"fmt"
	"strings"
)

// Storage failure kinds. A *StorageError matches its kind with errors.Is.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrDiskFull         = errors.New("no space left on device")
	ErrTimeout          = errors.New("operation timed out")
	ErrThrottled        = errors.New("rate limited")
	ErrAuth             = errors.New("authentication failed")
	ErrAccessDenied     = errors.New("access denied")
	ErrNetwork          = errors.New("network error")
	ErrUnclassified     = errors.New("storage error")
)

// StorageError is an archive failure with its operation and kind.
type StorageError struct {
	Kind   error
	Op     string // init, read or write
	Target string // dataset or object path
	Err    error
}

func (e *StorageError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("archive %s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("archive %s %s: %v: %v", e.Op, e.Target, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is matches the failure kind.
func (e *StorageError) Is(target error) bool { return e.Kind == target }

func wrap(op, target string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Kind: classifyError(err), Op: op, Target: target, Err: err}
}

// WrapWriteError classifies a failed write. nil stays nil.
func WrapWriteError(err error, path string) error { return wrap("write", path, err) }

// WrapReadError classifies a failed read. nil stays nil.
func WrapReadError(err error, path string) error { return wrap("read", path, err) }

// WrapInitError classifies a failure to open the dataset. nil stays nil.
func WrapInitError(err error, dataset string) error { return wrap("init", dataset, err) }

// Retriable reports whether err is a transient storage failure that a
// later run may not hit.
func Retriable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrThrottled) || errors.Is(err, ErrNetwork)
}

// classification rules, first match wins. S3 auth messages mention keys
// that "do not exist", so auth precedes not-found.
var rules = []struct {
	kind     error
	patterns []string
}{
	{ErrAccessDenied, []string{"accessdenied", "forbidden", "403"}},
	{ErrPermissionDenied, []string{"permission denied", "eacces", "access denied"}},
	{ErrAuth, []string{"nocredentialproviders", "credentials", "invalidaccesskeyid", "signaturedoesnotmatch", "expiredtoken", "401", "unauthorized"}},
	{ErrNotFound, []string{"no such file", "does not exist", "not found", "enoent", "404", "nosuchkey"}},
	{ErrDiskFull, []string{"no space left", "disk full", "enospc", "quota exceeded"}},
	{ErrTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{ErrThrottled, []string{"slowdown", "rate exceeded", "throttl", "429", "toomanyrequests"}},
	{ErrNetwork, []string{"connection refused", "no route to host", "network unreachable", "dns", "dial tcp"}},
}

func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var t interface{ Timeout() bool }
	if errors.As(err, &t) && t.Timeout() {
		return ErrTimeout
	}
	msg := strings.ToLower(err.Error())
	for _, r := range rules {
		for _, p := range r.patterns {
			if strings.Contains(msg, p) {
				return r.kind
			}
		}
	}
	return ErrUnclassified
}
