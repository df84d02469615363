package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures reported by external collaborators
type ErrorKind string

const (
	KindAuth       ErrorKind = "auth"
	KindValidation ErrorKind = "validation"
	KindServer     ErrorKind = "server"
	KindNetwork    ErrorKind = "network"
	KindNotFound   ErrorKind = "not_found"
)

// Error is a classified failure. Kind is set structurally by whoever
// produced the error (status code, transport failure), never parsed from text.
type Error struct {
	Kind    ErrorKind
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	ErrNoSession       = errors.New("no active session")
	ErrEmptyQuestion   = &Error{Kind: KindValidation, Message: "Question must not be empty."}
	ErrEmptyUpload     = &Error{Kind: KindValidation, Message: "Please choose a file to upload."}
	ErrUnknownDocument = &Error{Kind: KindNotFound, Message: "Document not found."}
)

// NewError builds a classified error
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of a classified error, or KindServer for anything else
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindServer
}

// IsKind reports whether err is a classified error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// UserMessage returns the text surfaced to the user for err
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return "Something went wrong"
	}
	switch e.Kind {
	case KindAuth:
		if e.Message != "" {
			return e.Message
		}
		return "Invalid username or password"
	case KindValidation:
		if e.Message != "" {
			return e.Message
		}
		return "Invalid request"
	case KindServer:
		return "Server error. Please try again later."
	case KindNetwork:
		return "Network error. Please check your connection."
	case KindNotFound:
		return "Document not found."
	default:
		return "Something went wrong"
	}
}
