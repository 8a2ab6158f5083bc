package model

import (
	"errors"
	"fmt"
)

// Kind classifies a terminal pipeline failure.
type Kind string

const (
	KindRequest    Kind = "request"
	KindAttachment Kind = "attachment"
	KindArchive    Kind = "archive"
	KindMetadata   Kind = "metadata"
	KindPublish    Kind = "publish"
	KindIssue      Kind = "issue"
	KindConfig     Kind = "config"
)

// Sentinel errors, one per Kind. errors.Is(err, ErrMetadata) reports whether
// err is (or wraps) an *Error of KindMetadata.
var (
	ErrRequest    = &Error{Kind: KindRequest}
	ErrAttachment = &Error{Kind: KindAttachment}
	ErrArchive    = &Error{Kind: KindArchive}
	ErrMetadata   = &Error{Kind: KindMetadata}
	ErrPublish    = &Error{Kind: KindPublish}
	ErrIssue      = &Error{Kind: KindIssue}
	ErrConfig     = &Error{Kind: KindConfig}
)

// Error is a classified failure. Op names the operation that failed. Msg is
// the human-readable description; when empty, Err's text is used instead.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind) + " error"
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Errorf builds an *Error of the given kind with a formatted message. A %w
// verb in format is honoured for unwrapping.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	wrapped := fmt.Errorf(format, args...)
	return &Error{Kind: kind, Op: op, Msg: wrapped.Error(), Err: errors.Unwrap(wrapped)}
}

// Wrap classifies err under kind. A nil err returns nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
