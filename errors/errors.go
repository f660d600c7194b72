package errors

import (
	"encoding/json"
	"fmt"
)

// Code classifies an Error
type Code int

const (
	// Internal is an unexpected failure inside patchkit
	Internal Code = iota + 1
	// Setup means the run could not start: bad config, unreachable store, unreadable or malformed document
	Setup
	// NotFound means a target no longer exists
	NotFound
	// WriteRejected means the store refused a write
	WriteRejected
	// Serialization means a mutated document could not be written back safely
	Serialization
	// Validation means user input (flags, plan files) is invalid
	Validation
)

var codeNames = map[Code]string{
	Internal:      "internal",
	Setup:         "setup",
	NotFound:      "not_found",
	WriteRejected: "write_rejected",
	Serialization: "serialization",
	Validation:    "validation",
}

// String returns the name of the code
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// MarshalJSON encodes the code by name
func (c Code) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// Error is a custom error
type Error struct {
	Code     Code     `json:"code"`
	Messages []string `json:"messages"`
	Err      error    `json:"-"`
}

// Error returns the Error as a json string
func (e *Error) Error() string {
	type view struct {
		Code     Code     `json:"code,omitempty"`
		Messages []string `json:"messages"`
		Cause    string   `json:"cause,omitempty"`
	}
	v := view{Code: e.Code, Messages: e.Messages}
	if e.Err != nil {
		v.Cause = e.Err.Error()
	}
	bits, _ := json.Marshal(v)
	return string(bits)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// RemoveError removes the error from the Error and leaves it's messages and code
func (e *Error) RemoveError() *Error {
	return &Error{
		Code:     e.Code,
		Messages: e.Messages,
		Err:      nil,
	}
}

// Extract extracts the custom Error from the given error
func Extract(err error) *Error {
	e, ok := err.(*Error)
	if !ok {
		return &Error{
			Code:     0,
			Messages: nil,
			Err:      err,
		}
	}
	return e
}

// Is reports whether err is an Error carrying the given code
func Is(err error, code Code) bool {
	if err == nil {
		return false
	}
	return Extract(err).Code == code
}

// New creates a new error with the given code and message
func New(code Code, msg string, args ...any) error {
	e := &Error{
		Code: code,
	}
	if msg != "" {
		e.Messages = append(e.Messages, fmt.Sprintf(msg, args...))
	}
	return e
}

// Wrap wraps the given error and returns a new one. Wrapping a nil error returns nil.
func Wrap(err error, code Code, msg string, args ...any) error {
	if err == nil {
		return nil
	}
	e, ok := err.(*Error)
	if ok {
		if msg != "" {
			e.Messages = append(e.Messages, fmt.Sprintf(msg, args...))
		}
		if code > 0 {
			e.Code = code
		}
		return e
	}
	e = &Error{
		Code: code,
		Err:  err,
	}
	if msg != "" {
		e.Messages = append(e.Messages, fmt.Sprintf(msg, args...))
	}
	return e
}
