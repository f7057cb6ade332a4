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
	"context"
	"fmt"
	"strconv"

	"github.com/AleutianAI/AleutianRename/cmd/aleutian-rename/internal/sysexec"
)

// Restarter schedules the post-rename reboot.
//
// A rename only fully takes effect for the login session after a
// restart; the delay gives the operator a window to finish up.
type Restarter interface {
	// Schedule arranges a reboot delayMinutes from now.
	Schedule(ctx context.Context, delayMinutes int) error
}

// ShutdownRestarter schedules the reboot through shutdown(8).
type ShutdownRestarter struct {
	runner sysexec.Runner
}

// NewShutdownRestarter creates a restarter on the given runner.
func NewShutdownRestarter(runner sysexec.Runner) *ShutdownRestarter {
	return &ShutdownRestarter{runner: runner}
}

// Schedule runs `shutdown -r +<delay>`.
func (r *ShutdownRestarter) Schedule(ctx context.Context, delayMinutes int) error {
	if delayMinutes < 1 {
		delayMinutes = 1
	}
	if _, err := r.runner.Run(ctx, "shutdown", "-r", "+"+strconv.Itoa(delayMinutes)); err != nil {
		return fmt.Errorf("schedule restart: %w", err)
	}
	return nil
}

// MockRestarter records schedule requests for tests.
type MockRestarter struct {
	// Err is returned by every Schedule call.
	Err error

	// Scheduled records the requested delays in order.
	Scheduled []int
}

// Schedule records the delay and returns the scripted error.
func (m *MockRestarter) Schedule(ctx context.Context, delayMinutes int) error {
	m.Scheduled = append(m.Scheduled, delayMinutes)
	return m.Err
}

var (
	_ Restarter = (*ShutdownRestarter)(nil)
	_ Restarter = (*MockRestarter)(nil)
)
