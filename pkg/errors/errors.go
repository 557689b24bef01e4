// Package errors provides structured error types for nary.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the installer and the CLI
//   - Machine-readable error codes for programmatic handling
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Every failure the installer can surface maps to one [Code]. Security-relevant
// codes ([ErrCodePathTraversal], [ErrCodeCyclicDependency]) are always fatal.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeRegistryResponse, "no versions for %s", name)
//	if errors.Is(err, errors.ErrCodeRegistryResponse) {
//	    // Handle malformed registry data
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeNetwork, origErr, "failed to fetch %s", url)
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input errors
	ErrCodeManifestRead    Code = "MANIFEST_READ"
	ErrCodeConstraintParse Code = "CONSTRAINT_PARSE"
	ErrCodeVersionParse    Code = "VERSION_PARSE"
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidPackage  Code = "INVALID_PACKAGE"

	// Resolution errors
	ErrCodeNotFound            Code = "NOT_FOUND"
	ErrCodeNoSatisfyingVersion Code = "NO_SATISFYING_VERSION"
	ErrCodeRegistryResponse    Code = "REGISTRY_RESPONSE"
	ErrCodeSourceCheckout      Code = "SOURCE_CHECKOUT"
	ErrCodeCyclicDependency    Code = "CYCLIC_DEPENDENCY"
	ErrCodeDepthExceeded       Code = "DEPTH_EXCEEDED"

	// Network errors
	ErrCodeNetwork Code = "NETWORK_ERROR"

	// Storage and archive errors
	ErrCodeCacheIO       Code = "CACHE_IO"
	ErrCodeDecompression Code = "DECOMPRESSION"
	ErrCodeArchiveFormat Code = "ARCHIVE_FORMAT"
	ErrCodePathTraversal Code = "PATH_TRAVERSAL"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// coder is implemented by every error type in this package.
type coder interface {
	error
	Code() Code
}

// Error is a structured error with a code and optional cause.
type Error struct {
	code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.Message)
}

// Code returns the error code.
func (e *Error) Code() Code { return e.code }

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It walks the chain and matches the first coded error it finds.
func Is(err error, code Code) bool {
	return GetCode(err) == code
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if no error in the chain carries a code.
func GetCode(err error) Code {
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Chain splits err into its causal links, outermost first.
//
// Each entry holds only the text a link adds on top of its cause, so
// fmt.Errorf("install foo: %w", err) contributes "install foo".
func Chain(err error) []string {
	var links []string
	for err != nil {
		msg := err.Error()
		next := errors.Unwrap(err)
		if next != nil {
			inner := next.Error()
			if trimmed, ok := strings.CutSuffix(msg, ": "+inner); ok {
				msg = trimmed
			} else if msg == inner {
				err = next
				continue
			}
		}
		links = append(links, msg)
		err = next
	}
	return links
}

// ConstraintParseError reports a version constraint that could not be parsed.
type ConstraintParseError struct {
	Name       string // Dependency declaring the constraint
	Constraint string
	Cause      error
}

func (e *ConstraintParseError) Error() string {
	return fmt.Sprintf("%s: invalid constraint %q for %s: %v", e.Code(), e.Constraint, e.Name, e.Cause)
}

func (e *ConstraintParseError) Code() Code    { return ErrCodeConstraintParse }
func (e *ConstraintParseError) Unwrap() error { return e.Cause }

// NoSatisfyingVersionError reports that no published version matches a constraint.
type NoSatisfyingVersionError struct {
	Name       string
	Constraint string
}

func (e *NoSatisfyingVersionError) Error() string {
	return fmt.Sprintf("%s: no version of %s satisfies %q", e.Code(), e.Name, e.Constraint)
}

func (e *NoSatisfyingVersionError) Code() Code { return ErrCodeNoSatisfyingVersion }

// PathTraversalError reports an archive entry that would be written outside
// its destination directory.
type PathTraversalError struct {
	EntryPath string
}

func (e *PathTraversalError) Error() string {
	return fmt.Sprintf("%s: archive entry %q escapes the destination", e.Code(), e.EntryPath)
}

func (e *PathTraversalError) Code() Code { return ErrCodePathTraversal }

// CyclicDependencyError lists every node that participates in a dependency cycle.
type CyclicDependencyError struct {
	Nodes []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("%s: dependency cycle between %s", e.Code(), strings.Join(e.Nodes, ", "))
}

func (e *CyclicDependencyError) Code() Code { return ErrCodeCyclicDependency }
