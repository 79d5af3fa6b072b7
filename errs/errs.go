// Package errs defines the failure taxonomy shared by every dcstore package.
//
// Each failure carries a stable numeric Code so pipeline steps can surface
// it to callers unchanged, plus the context needed to explain it (the path
// involved and the expected versus actual shape or type).
//
// Match on the category with errors.Is:
//
//	if errors.Is(err, errs.ErrNotFound) { ... }
//
// and recover the details with errors.As:
//
//	var e *errs.Error
//	if errors.As(err, &e) { fmt.Println(e.Code, e.Path) }
package errs

import (
	"errors"
	"fmt"
)

// Code is a stable numeric failure code.
type Code int

const (
	CodeOK                      Code = 0
	CodeNotFound                Code = -10001
	CodeAlreadyExists           Code = -10002
	CodeInvalidName             Code = -10003
	CodeShapeMismatch           Code = -10004
	CodeTypeMismatch            Code = -10005
	CodeStructuralVersionTooOld Code = -10006
	CodeAmbiguous               Code = -10007
	CodeCorrupt                 Code = -10008
	CodeInvalidArgument         Code = -10009
)

var codeNames = map[Code]string{
	CodeOK:                      "ok",
	CodeNotFound:                "not found",
	CodeAlreadyExists:           "already exists",
	CodeInvalidName:             "invalid name",
	CodeShapeMismatch:           "shape mismatch",
	CodeTypeMismatch:            "type mismatch",
	CodeStructuralVersionTooOld: "structural version too old",
	CodeAmbiguous:               "ambiguous",
	CodeCorrupt:                 "corrupt",
	CodeInvalidArgument:         "invalid argument",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Sentinels for errors.Is. An *Error matches the sentinel of its Code.
var (
	ErrNotFound                = &Error{Code: CodeNotFound}
	ErrAlreadyExists           = &Error{Code: CodeAlreadyExists}
	ErrInvalidName             = &Error{Code: CodeInvalidName}
	ErrShapeMismatch           = &Error{Code: CodeShapeMismatch}
	ErrTypeMismatch            = &Error{Code: CodeTypeMismatch}
	ErrStructuralVersionTooOld = &Error{Code: CodeStructuralVersionTooOld}
	ErrAmbiguous               = &Error{Code: CodeAmbiguous}
	ErrCorrupt                 = &Error{Code: CodeCorrupt}
	ErrInvalidArgument         = &Error{Code: CodeInvalidArgument}
)

// Error is a categorized failure with context.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type Error struct {
	Code Code
	// Op names the failing operation (e.g. "CreateMatrix").
	Op string
	// Path is the serialized path or name the failure refers to.
	Path string
	// Expected and Actual describe shape or type disagreements.
	Expected string
	Actual   string
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Code.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" %q", e.Path)
	}
	if e.Expected != "" || e.Actual != "" {
		msg += fmt.Sprintf(": expected %s, got %s", e.Expected, e.Actual)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the Code carried by err, CodeOK for nil and
// CodeInvalidArgument for errors outside the taxonomy.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInvalidArgument
}

// NotFound reports a path that resolves partway and then dead-ends.
func NotFound(op, path string) error {
	return &Error{Code: CodeNotFound, Op: op, Path: path}
}

// AlreadyExists reports a create or rename target colliding with a sibling.
func AlreadyExists(op, path string) error {
	return &Error{Code: CodeAlreadyExists, Op: op, Path: path}
}

// InvalidName reports an empty or separator-containing name.
func InvalidName(op, name, reason string) error {
	return &Error{Code: CodeInvalidName, Op: op, Path: name, Err: errors.New(reason)}
}

// ShapeMismatch reports a tuple-count or component-dimension disagreement.
func ShapeMismatch(op, path, expected, actual string) error {
	return &Error{Code: CodeShapeMismatch, Op: op, Path: path, Expected: expected, Actual: actual}
}

// TypeMismatch reports a scalar kind or array class disagreement.
func TypeMismatch(op, path, expected, actual string) error {
	return &Error{Code: CodeTypeMismatch, Op: op, Path: path, Expected: expected, Actual: actual}
}

// VersionTooOld reports a persisted file below the minimum structural version.
func VersionTooOld(op string, minimum, actual uint32) error {
	return &Error{
		Code:     CodeStructuralVersionTooOld,
		Op:       op,
		Expected: fmt.Sprintf(">= %d", minimum),
		Actual:   fmt.Sprintf("%d", actual),
	}
}

// Corrupt wraps an integrity failure found while reading a persisted file.
func Corrupt(op, path string, err error) error {
	return &Error{Code: CodeCorrupt, Op: op, Path: path, Err: err}
}

// InvalidArgument wraps a caller error that fits no other category.
func InvalidArgument(op string, err error) error {
	return &Error{Code: CodeInvalidArgument, Op: op, Err: err}
}
