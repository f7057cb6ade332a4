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
	"strings"

	"github.com/AleutianAI/AleutianRename/cmd/aleutian-rename/internal/sysexec"
)

// HostInfo answers the two questions the coordinator has about the
// machine it runs on: which hardware this is, and who is sitting at it.
type HostInfo interface {
	// Serial returns the hardware serial number.
	Serial(ctx context.Context) (string, error)

	// ConsoleUser returns the login name of the user owning the
	// console session. Errors when no real user session exists.
	ConsoleUser(ctx context.Context) (string, error)
}

// Host reads hardware and session facts from the platform registry.
//
// # Description
//
// The serial comes from the IOPlatformExpertDevice registry entry, the
// same value the MDM keys its device records on. The console user is
// the owner of /dev/console, which is root at the login window and the
// setup assistant user during enrollment; both are rejected because
// neither is an account this tool may rename.
type Host struct {
	runner sysexec.Runner
}

// NewHost creates a Host on the given command runner.
func NewHost(runner sysexec.Runner) *Host {
	return &Host{runner: runner}
}

// Serial returns the hardware serial number from the IO registry.
func (h *Host) Serial(ctx context.Context) (string, error) {
	out, err := h.runner.Run(ctx, "ioreg", "-rd1", "-c", "IOPlatformExpertDevice")
	if err != nil {
		return "", fmt.Errorf("read platform registry: %w", err)
	}

	for _, line := range strings.Split(string(out), "\n") {
		if !strings.Contains(line, `"IOPlatformSerialNumber"`) {
			continue
		}
		// `  "IOPlatformSerialNumber" = "C02XK0AAJK77"`
		parts := strings.Split(line, `"`)
		if len(parts) >= 4 && parts[3] != "" {
			return parts[3], nil
		}
	}
	return "", fmt.Errorf("platform registry output has no serial number")
}

// consoleOwnersWithoutSession are /dev/console owners that mean no
// real user is logged in.
var consoleOwnersWithoutSession = map[string]bool{
	"":             true,
	"root":         true,
	"_mbsetupuser": true,
}

// ConsoleUser returns the login name owning the console session.
func (h *Host) ConsoleUser(ctx context.Context) (string, error) {
	out, err := h.runner.Run(ctx, "stat", "-f", "%Su", "/dev/console")
	if err != nil {
		return "", fmt.Errorf("read console owner: %w", err)
	}

	user := strings.TrimSpace(string(out))
	if consoleOwnersWithoutSession[user] {
		return "", fmt.Errorf("no user session at the console (owner %q)", user)
	}
	return user, nil
}

// MockHost is a test double with fixed answers.
type MockHost struct {
	SerialValue string
	SerialErr   error
	User        string
	UserErr     error
}

// Serial returns the scripted serial.
func (m *MockHost) Serial(ctx context.Context) (string, error) {
	return m.SerialValue, m.SerialErr
}

// ConsoleUser returns the scripted console user.
func (m *MockHost) ConsoleUser(ctx context.Context) (string, error) {
	return m.User, m.UserErr
}

var (
	_ HostInfo = (*Host)(nil)
	_ HostInfo = (*MockHost)(nil)
)
