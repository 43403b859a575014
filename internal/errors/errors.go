package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// InvalidIdentifier indicates a proposed name is not valid for its symbol kind
	InvalidIdentifier ErrorCode = "INVALID_IDENTIFIER"
	// NameConflict indicates a proposed name is already used in its uniqueness scope
	NameConflict ErrorCode = "NAME_CONFLICT"
	// SymbolNotFound indicates a class or member is not part of the loaded archive
	SymbolNotFound ErrorCode = "SYMBOL_NOT_FOUND"
	// HistoryInconsistency indicates an undo for an action that is not in the log
	HistoryInconsistency ErrorCode = "HISTORY_INCONSISTENCY"
	// ArchiveLoadFailed indicates the archive inventory could not be read or built
	ArchiveLoadFailed ErrorCode = "ARCHIVE_LOAD_FAILED"
	// MappingFormatInvalid indicates a mapping file could not be parsed
	MappingFormatInvalid ErrorCode = "MAPPING_FORMAT_INVALID"
	// SessionMissing indicates no archive has been loaded in the working directory
	SessionMissing ErrorCode = "SESSION_MISSING"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// ChooseOtherName suggests retrying with a different name
	ChooseOtherName FixActionType = "choose-other-name"
	// RefreshView suggests re-reading state before retrying
	RefreshView FixActionType = "refresh-view"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
}

// RemapError is a recoverable, user-facing failure with a stable code
type RemapError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a RemapError with the default fixes for its code
func New(code ErrorCode, message string) *RemapError {
	return &RemapError{
		Code:           code,
		Message:        message,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Newf is New with a format string
func Newf(code ErrorCode, format string, args ...interface{}) *RemapError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates a RemapError around an underlying cause
func Wrap(code ErrorCode, message string, cause error) *RemapError {
	e := New(code, message)
	e.cause = cause
	return e
}

// Error implements the error interface
func (e *RemapError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *RemapError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *RemapError) WithDetails(details interface{}) *RemapError {
	e.Details = details
	return e
}

// CodeOf returns the code of the first RemapError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var re *RemapError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	NameConflict: {
		{
			Type:        ChooseOtherName,
			Description: "Pick a name that is not used by another symbol in the same scope",
		},
	},
	InvalidIdentifier: {
		{
			Type:        ChooseOtherName,
			Description: "Use a valid identifier; reserved words are rejected in strict mode",
		},
	},
	HistoryInconsistency: {
		{
			Type:        RunCommand,
			Command:     "remap history renames",
			Safe:        true,
			Description: "Refresh the rename log and retry with a listed action",
		},
	},
	SessionMissing: {
		{
			Type:        RunCommand,
			Command:     "remap load <inventory>",
			Safe:        true,
			Description: "Load an archive inventory to start a session",
		},
	},
	SymbolNotFound: {
		{
			Type:        RunCommand,
			Command:     "remap classes",
			Safe:        true,
			Description: "List the classes of the loaded archive",
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
