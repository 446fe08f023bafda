package lode

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"context deadline exceeded", ErrTimeout},
		{"upload timed out after 30s", ErrTimeout},
		{"AccessDenied: you do not have access to anxeod-archive", ErrAccessDenied},
		{"open /archive/anxeod: permission denied", ErrPermissionDenied},
		{"NoSuchKey: datasets/anxeod/manifest.json", ErrNotFound},
		{"open /archive/anxeod: no such file or directory", ErrNotFound},
		{"write /archive/anxeod/part-0.jsonl: no space left on device", ErrDiskFull},
		{"SlowDown: please reduce your request rate", ErrThrottled},
		{"InvalidAccessKeyId: the key does not exist in our records", ErrAuth},
		{"dial tcp 10.0.0.5:9000: connect: connection refused", ErrNetwork},
		{"something unexpected", ErrUnclassified},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := classifyError(errors.New(tt.msg)); !errors.Is(got, tt.want) {
				t.Errorf("classifyError(%q) = %v, want %v", tt.msg, got, tt.want)
			}
		})
	}
}

func TestClassifyError_Nil(t *testing.T) {
	if got := classifyError(nil); got != nil {
		t.Errorf("classifyError(nil) = %v, want nil", got)
	}
}

type timeoutError struct{}

func (timeoutError) Error() string { return "i/o deadline" }
func (timeoutError) Timeout() bool { return true }

func TestClassifyError_TimeoutInterface(t *testing.T) {
	err := fmt.Errorf("put object: %w", timeoutError{})
	if got := classifyError(err); got != ErrTimeout {
		t.Errorf("classifyError = %v, want ErrTimeout", got)
	}
}

func TestStorageError_Chain(t *testing.T) {
	orig := errors.New("no space left on device")
	err := WrapWriteError(orig, "datasets/anxeod")

	if !errors.Is(err, ErrDiskFull) {
		t.Error("expected errors.Is(err, ErrDiskFull)")
	}
	if !errors.Is(err, orig) {
		t.Error("expected original error in chain")
	}
	var se *StorageError
	if !errors.As(err, &se) || se.Op != "write" || se.Target != "datasets/anxeod" {
		t.Errorf("StorageError = %+v", se)
	}
	if WrapReadError(nil, "x") != nil || WrapInitError(nil, "x") != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestRetriable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{WrapWriteError(errors.New("SlowDown: reduce your request rate"), "p"), true},
		{WrapReadError(errors.New("dial tcp 10.0.0.5:9000: connect: connection refused"), "p"), true},
		{WrapInitError(errors.New("context deadline exceeded"), "anxeod"), true},
		{WrapWriteError(errors.New("no space left on device"), "p"), false},
		{errors.New("plain"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := Retriable(tt.err); got != tt.want {
			t.Errorf("Retriable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
