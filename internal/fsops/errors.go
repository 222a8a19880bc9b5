package fsops

import (
	"errors"
	"fmt"
	"io/fs"
)

// ErrorCode is a stable classification of a file access failure.
type ErrorCode string

const (
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	CodeBinaryContent    ErrorCode = "BINARY_CONTENT"
	CodePathTraversal    ErrorCode = "PATH_TRAVERSAL"
	CodeIOError          ErrorCode = "IO_ERROR"
)

const accessErrorFormat = "%s %s: %s"

// AccessError is returned by Repository for every refused or failed access.
type AccessError struct {
	Code    ErrorCode
	Path    string
	Message string
	Err     error
}

func (accessError *AccessError) Error() string {
	return fmt.Sprintf(accessErrorFormat, accessError.Code, accessError.Path, accessError.Message)
}

func (accessError *AccessError) Unwrap() error { return accessError.Err }

// Transient reports whether retrying the same access could succeed.
func (accessError *AccessError) Transient() bool { return accessError.Code == CodeIOError }

// CodeOf extracts the error code; unclassified errors are IO_ERROR.
func CodeOf(err error) ErrorCode {
	var accessError *AccessError
	if errors.As(err, &accessError) {
		return accessError.Code
	}
	return CodeIOError
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var accessError *AccessError
	if errors.As(err, &accessError) {
		return accessError.Transient()
	}
	return false
}

func newAccessError(code ErrorCode, path string, message string) *AccessError {
	return &AccessError{Code: code, Path: path, Message: message}
}

func classify(path string, err error) *AccessError {
	var accessError *AccessError
	if errors.As(err, &accessError) {
		return accessError
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &AccessError{Code: CodeNotFound, Path: path, Message: "file not found", Err: err}
	case errors.Is(err, fs.ErrPermission):
		return &AccessError{Code: CodePermissionDenied, Path: path, Message: "permission denied", Err: err}
	default:
		return &AccessError{Code: CodeIOError, Path: path, Message: err.Error(), Err: err}
	}
}
