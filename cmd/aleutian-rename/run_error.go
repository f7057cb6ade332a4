// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
)

// RunError carries the process exit code alongside the failure cause.
//
// # Description
//
// Every fatal path in the tool yields exit code 1; success and no-op
// runs exit 0. The type exists so main() can translate a returned
// error into the right code without string matching, and so tests can
// assert on the code through errors.As.
type RunError struct {
	// Code is the process exit code.
	Code int

	// Err is the underlying failure.
	Err error
}

// Error returns the underlying failure message.
func (e *RunError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *RunError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code for this failure.
func (e *RunError) ExitCode() int {
	return e.Code
}

// failuref wraps a formatted error as a fatal (exit 1) run error.
func failuref(format string, args ...any) *RunError {
	return &RunError{Code: 1, Err: fmt.Errorf(format, args...)}
}

// exitCode maps an error returned by the root command to a process
// exit code: 0 on nil, the carried code for a RunError, 1 otherwise.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr.ExitCode()
	}
	return 1
}
