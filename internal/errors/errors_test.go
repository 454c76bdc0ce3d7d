package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("exit status 1")

	err := New(RetrievalFailed, "bk log failed", cause)

	if err.Code != RetrievalFailed {
		t.Errorf("Code = %v, want %v", err.Code, RetrievalFailed)
	}
	if err.Message != "bk log failed" {
		t.Errorf("Message = %q, want %q", err.Message, "bk log failed")
	}
	if len(err.SuggestedFixes) != 0 {
		t.Errorf("len(SuggestedFixes) = %d, want 0", len(err.SuggestedFixes))
	}

	withFixes := New(ToolNotAvailable, "bk missing", nil)
	if len(withFixes.SuggestedFixes) == 0 {
		t.Error("ToolNotAvailable should carry default suggested fixes")
	}
}

func TestVcsError_Error(t *testing.T) {
	tests := []struct {
		name      string
		code      ErrorCode
		message   string
		cause     error
		wantParts []string
	}{
		{
			name:      "with cause",
			code:      RetrievalFailed,
			message:   "history retrieval failed",
			cause:     errors.New("ERROR-not a BitKeeper repository"),
			wantParts: []string{"RETRIEVAL_FAILED", "history retrieval failed", "not a BitKeeper repository"},
		},
		{
			name:      "without cause",
			code:      UnsupportedOperation,
			message:   "update is not supported",
			cause:     nil,
			wantParts: []string{"UNSUPPORTED_OPERATION", "update is not supported"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.code, tt.message, tt.cause).Error()

			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, want to contain %q", got, part)
				}
			}
		})
	}
}

func TestVcsError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := New(InternalError, "something went wrong", cause)

	if err.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), cause)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}

	if New(Timeout, "timed out", nil).Unwrap() != nil {
		t.Error("Unwrap() on error without cause should return nil")
	}
}

func TestVcsError_WithDetails(t *testing.T) {
	err := New(RetrievalFailed, "failed", nil).WithDetails(map[string]interface{}{
		"stderr": "boom",
	})

	details, ok := err.Details.(map[string]interface{})
	if !ok {
		t.Fatalf("Details type = %T, want map", err.Details)
	}
	if details["stderr"] != "boom" {
		t.Errorf("stderr detail = %v, want boom", details["stderr"])
	}
}

func TestHasCode(t *testing.T) {
	inner := New(Timeout, "bk log timed out", nil)
	outer := New(RetrievalFailed, "history failed", inner)
	wrapped := fmt.Errorf("indexing foo.c: %w", outer)

	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"direct", inner, Timeout, true},
		{"outer code", wrapped, RetrievalFailed, true},
		{"nested code", wrapped, Timeout, true},
		{"absent code", wrapped, UnsupportedOperation, false},
		{"plain error", errors.New("x"), RetrievalFailed, false},
		{"nil", nil, RetrievalFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasCode(tt.err, tt.code); got != tt.want {
				t.Errorf("HasCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	err := fmt.Errorf("wrap: %w", New(MalformedOutput, "bad line", nil))
	if got := CodeOf(err); got != MalformedOutput {
		t.Errorf("CodeOf() = %q, want %q", got, MalformedOutput)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}
}
