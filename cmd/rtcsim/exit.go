package main

import (
	"errors"
	"fmt"
)

const (
	exitSuccess      = 0
	exitFailure      = 1 // a scenario or frame check failed
	exitCommandError = 2 // bad arguments, unreadable files, database errors
)

// ExitError carries the process exit code for an error.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

func failure(format string, a ...any) *ExitError {
	return &ExitError{Code: exitFailure, Message: fmt.Sprintf(format, a...)}
}

func commandError(message string, err error) *ExitError {
	return &ExitError{Code: exitCommandError, Message: message, Err: err}
}

// exitCode maps err to a process exit code. Errors from cobra itself (unknown
// commands, bad flags) are command errors.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var e *ExitError
	if errors.As(err, &e) {
		return e.Code
	}
	return exitCommandError
}
