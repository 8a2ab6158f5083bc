package output

import (
	"encoding/json"
	"io"

	"github.com/ALT-F4-LLC/bundlepub/internal/model"
)

// ErrorCode represents a machine-readable error classification.
type ErrorCode string

// Error code constants. The pipeline codes follow model.Kind one to one.
const (
	ErrGeneral    ErrorCode = "GENERAL_ERROR"
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	ErrRequest    ErrorCode = "REQUEST_ERROR"
	ErrAttachment ErrorCode = "ATTACHMENT_ERROR"
	ErrArchive    ErrorCode = "ARCHIVE_ERROR"
	ErrMetadata   ErrorCode = "METADATA_ERROR"
	ErrPublish    ErrorCode = "PUBLISH_ERROR"
	ErrIssue      ErrorCode = "ISSUE_ERROR"
)

// Exit code constants.
const (
	ExitSuccess = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// ExitCodeForError maps an ErrorCode to its corresponding exit code. Only a
// bad invocation or configuration exits with ExitUsage; every run failure
// exits with ExitFailure.
func ExitCodeForError(code ErrorCode) int {
	if code == ErrValidation {
		return ExitUsage
	}
	return ExitFailure
}

// ErrorCodeForKind maps a pipeline error kind to its ErrorCode.
func ErrorCodeForKind(kind model.Kind) ErrorCode {
	switch kind {
	case model.KindRequest:
		return ErrRequest
	case model.KindAttachment:
		return ErrAttachment
	case model.KindArchive:
		return ErrArchive
	case model.KindMetadata:
		return ErrMetadata
	case model.KindPublish:
		return ErrPublish
	case model.KindIssue:
		return ErrIssue
	case model.KindConfig:
		return ErrValidation
	default:
		return ErrGeneral
	}
}

// successEnvelope is the JSON structure for successful responses.
type successEnvelope struct {
	OK      bool   `json:"ok"`
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

// errorEnvelope is the JSON structure for error responses.
type errorEnvelope struct {
	OK    bool      `json:"ok"`
	Error string    `json:"error"`
	Code  ErrorCode `json:"code"`
	RunID string    `json:"run_id,omitempty"`
}

func writeJSONSuccess(w io.Writer, data any, message string) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(successEnvelope{
		OK:      true,
		Data:    data,
		Message: message,
	})
}

func writeJSONError(w io.Writer, err error, code ErrorCode, runID string) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(errorEnvelope{
		OK:    false,
		Error: err.Error(),
		Code:  code,
		RunID: runID,
	})
}
