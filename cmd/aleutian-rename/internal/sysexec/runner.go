// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package sysexec abstracts system command execution for the rename tool.

# Problem Statement

The identity store on macOS is driven through the `dscl` command line
tool, and the post-commit restart is scheduled through `shutdown`. Code
that shells out directly with os/exec cannot be unit tested without
mutating the machine it runs on.

# Solution

A small Runner interface with two implementations:

  - DefaultRunner: production implementation using os/exec
  - MockRunner: scripted outputs and recorded calls for tests

Every caller takes a Runner, so the dscl identity store and the restart
scheduler can both be exercised against MockRunner in tests.

# Related Files

  - internal/identity/dscl.go: dscl-backed identity store
  - cmd_sync.go: restart scheduling after a committed rename
*/
package sysexec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Runner executes external commands.
//
// # Thread Safety
//
// Implementations must be safe for sequential use from a single
// goroutine. The rename tool never runs commands concurrently.
type Runner interface {
	// Run executes a command synchronously and returns its stdout.
	//
	// On failure the returned error includes trimmed stderr output so
	// callers can surface the underlying tool's diagnostic directly.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// -----------------------------------------------------------------------------
// Production Implementation
// -----------------------------------------------------------------------------

// DefaultRunner implements Runner using os/exec.
//
// This is the production implementation that executes real commands on
// the system. Use MockRunner in tests instead.
type DefaultRunner struct{}

// NewDefaultRunner creates a Runner backed by os/exec.
func NewDefaultRunner() *DefaultRunner {
	return &DefaultRunner{}
}

// Run executes a command synchronously and returns its output.
func (r *DefaultRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// Include stderr in the error for debugging
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, err
	}

	return stdout.Bytes(), nil
}

// -----------------------------------------------------------------------------
// Mock Implementation
// -----------------------------------------------------------------------------

// Call records a single command invocation on a MockRunner.
type Call struct {
	Name string
	Args []string
}

// String renders the call as a single command line for assertions.
func (c Call) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// MockRunner implements Runner with scripted responses for tests.
//
// # Description
//
// Responses are keyed by the rendered command line (see Call.String).
// Unscripted commands succeed with empty output, so tests only script
// the calls they care about. All calls are recorded for assertions.
//
// # Example
//
//	mock := sysexec.NewMockRunner()
//	mock.Script("dscl . -read /Users/jdoe", []byte("..."), nil)
//	mock.Script("dscl . -change ...", nil, errors.New("eDSPermissionError"))
type MockRunner struct {
	mu      sync.Mutex
	calls   []Call
	outputs map[string][]byte
	errors  map[string]error
}

// NewMockRunner creates an empty MockRunner.
func NewMockRunner() *MockRunner {
	return &MockRunner{
		outputs: make(map[string][]byte),
		errors:  make(map[string]error),
	}
}

// Script sets the output and error returned for an exact command line.
func (m *MockRunner) Script(commandLine string, output []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outputs[commandLine] = output
	m.errors[commandLine] = err
}

// Run returns the scripted response for the command, or empty success.
func (m *MockRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	call := Call{Name: name, Args: args}
	m.calls = append(m.calls, call)

	key := call.String()
	if err, ok := m.errors[key]; ok && err != nil {
		return m.outputs[key], err
	}
	return m.outputs[key], nil
}

// Calls returns a copy of all recorded calls in order.
func (m *MockRunner) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Reset clears recorded calls and scripted responses.
func (m *MockRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.outputs = make(map[string][]byte)
	m.errors = make(map[string]error)
}

// Compile-time interface satisfaction checks
var (
	_ Runner = (*DefaultRunner)(nil)
	_ Runner = (*MockRunner)(nil)
)
