package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ToolNotAvailable indicates the backend executable is missing or not working
	ToolNotAvailable ErrorCode = "TOOL_NOT_AVAILABLE"
	// RetrievalFailed indicates a backend command exited non-zero
	RetrievalFailed ErrorCode = "RETRIEVAL_FAILED"
	// UnsupportedOperation indicates a capability the backend fundamentally lacks
	UnsupportedOperation ErrorCode = "UNSUPPORTED_OPERATION"
	// MalformedOutput indicates backend output did not match the expected structure
	MalformedOutput ErrorCode = "MALFORMED_OUTPUT"
	// Timeout indicates the backend command was killed after its deadline
	Timeout ErrorCode = "TIMEOUT"
	// NotFound indicates a repository, file or record does not exist
	NotFound ErrorCode = "NOT_FOUND"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// OpenDocs suggests opening documentation
	OpenDocs FixActionType = "open-docs"
	// InstallTool suggests installing a tool
	InstallTool FixActionType = "install-tool"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
	Tool        string        `json:"tool,omitempty"`
}

// VcsError represents an error with code, message, and suggestions
type VcsError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a new VcsError. Suggested fixes registered for the code are attached.
func New(code ErrorCode, message string, cause error) *VcsError {
	return &VcsError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Error implements the error interface
func (e *VcsError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *VcsError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *VcsError) WithDetails(details interface{}) *VcsError {
	e.Details = details
	return e
}

// WithFixes replaces the suggested fixes
func (e *VcsError) WithFixes(fixes ...FixAction) *VcsError {
	e.SuggestedFixes = fixes
	return e
}

// CodeOf returns the code of the first VcsError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var ve *VcsError
	if stderrors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

// HasCode reports whether err's chain contains a VcsError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var ve *VcsError
	for err != nil {
		if !stderrors.As(err, &ve) {
			return false
		}
		if ve.Code == code {
			return true
		}
		err = ve.cause
	}
	return false
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	ToolNotAvailable: {
		{
			Type:        InstallTool,
			Description: "Install the version-control client or set backends.<kind>.command",
		},
		{
			Type:        RunCommand,
			Command:     "vcshist config show",
			Safe:        true,
			Description: "Check which command path is configured",
		},
	},
	Timeout: {
		{
			Type:        RunCommand,
			Command:     "VCSHIST_HISTORY_TIMEOUTMS=120000 vcshist ${retry_command}",
			Safe:        true,
			Description: "Retry with a longer command timeout",
		},
	},
	UnsupportedOperation: {
		{
			Type:        OpenDocs,
			Description: "This backend does not implement the operation; it is not a transient failure",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
