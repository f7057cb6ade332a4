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
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/AleutianRename/pkg/logging"
	"github.com/AleutianAI/AleutianRename/pkg/ux"
)

// Notifier presents run-critical messages to the operator.
//
// # Description
//
// The pre-change warning is blocking with a single acknowledgment and
// no cancel path: the run proceeds whatever the operator does, the
// warning only ensures they saw it. The failure presentation is
// fire-and-forget. Neither method's error ever aborts the run; callers
// log delivery failures and continue.
type Notifier interface {
	// WarnBeforeChange tells the operator their account is about to be
	// renamed and blocks until acknowledged (or delivery fails).
	WarnBeforeChange(ctx context.Context, oldName, newName string) error

	// NotifyFailure presents a fatal run outcome.
	NotifyFailure(ctx context.Context, message string) error
}

// NewNotifier selects the notifier implementation for this run.
//
// Non-interactive mode always gets the logging notifier. Otherwise a
// TTY on stdin gets the modal dialog, anything else the plain console
// fallback.
func NewNotifier(log *logging.Logger, nonInteractive bool) Notifier {
	if nonInteractive {
		return NewNonInteractiveNotifier(log)
	}
	if isatty.IsTerminal(os.Stdin.Fd()) {
		return NewDialogNotifier()
	}
	return NewConsoleNotifier()
}

// -----------------------------------------------------------------------------
// DialogNotifier
// -----------------------------------------------------------------------------

// DialogNotifier presents a modal acknowledgment form on the terminal.
type DialogNotifier struct{}

// NewDialogNotifier creates a modal terminal notifier.
func NewDialogNotifier() *DialogNotifier {
	return &DialogNotifier{}
}

// WarnBeforeChange blocks on a single-button acknowledgment form.
func (n *DialogNotifier) WarnBeforeChange(ctx context.Context, oldName, newName string) error {
	acknowledged := true
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Account rename scheduled").
			Description(fmt.Sprintf(
				"Your account %q will be renamed to %q.\n"+
					"Your home directory moves with it and this computer will restart afterwards.\n"+
					"Save your work now.", oldName, newName)).
			Affirmative("OK").
			Negative("").
			Value(&acknowledged),
	))
	if err := form.RunWithContext(ctx); err != nil {
		return fmt.Errorf("present rename warning: %w", err)
	}
	return nil
}

// NotifyFailure presents the failure in a styled error box.
func (n *DialogNotifier) NotifyFailure(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(os.Stderr, ux.Styles.ErrorBox.Render(
		ux.IconError.Render()+" "+message))
	return err
}

// -----------------------------------------------------------------------------
// ConsoleNotifier
// -----------------------------------------------------------------------------

// ConsoleNotifier is the plain press-enter fallback for sessions
// without a usable TTY, with injectable IO for tests.
type ConsoleNotifier struct {
	in  io.Reader
	out io.Writer
}

// NewConsoleNotifier creates a console notifier on stdin/stderr.
func NewConsoleNotifier() *ConsoleNotifier {
	return NewConsoleNotifierWithIO(os.Stdin, os.Stderr)
}

// NewConsoleNotifierWithIO creates a console notifier with custom IO.
func NewConsoleNotifierWithIO(in io.Reader, out io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{in: in, out: out}
}

// WarnBeforeChange prints the warning and waits for a line of input.
// EOF counts as acknowledgment: a closed stdin must not block the run.
func (n *ConsoleNotifier) WarnBeforeChange(ctx context.Context, oldName, newName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fmt.Fprintln(n.out, ux.Styles.WarningBox.Render(fmt.Sprintf(
		"%s Account rename scheduled\n\n"+
			"Your account %q will be renamed to %q.\n"+
			"Your home directory moves with it and this computer will restart afterwards.\n"+
			"Save your work now.",
		ux.IconWarning.Render(), oldName, newName)))
	fmt.Fprint(n.out, "Press Enter to acknowledge: ")

	reader := bufio.NewReader(n.in)
	if _, err := reader.ReadString('\n'); err != nil && err != io.EOF {
		return fmt.Errorf("read acknowledgment: %w", err)
	}
	return nil
}

// NotifyFailure prints the failure message.
func (n *ConsoleNotifier) NotifyFailure(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(n.out, ux.Styles.ErrorBox.Render(
		ux.IconError.Render()+" "+message))
	return err
}

// -----------------------------------------------------------------------------
// NonInteractiveNotifier
// -----------------------------------------------------------------------------

// NonInteractiveNotifier logs instead of prompting. The warning does
// not block: unattended runs proceed immediately.
type NonInteractiveNotifier struct {
	log *logging.Logger
}

// NewNonInteractiveNotifier creates a logging-only notifier.
func NewNonInteractiveNotifier(log *logging.Logger) *NonInteractiveNotifier {
	if log == nil {
		log = logging.Default()
	}
	return &NonInteractiveNotifier{log: log}
}

// WarnBeforeChange logs the pending rename and returns immediately.
func (n *NonInteractiveNotifier) WarnBeforeChange(ctx context.Context, oldName, newName string) error {
	n.log.Warn("renaming account without operator acknowledgment",
		"from", oldName, "to", newName)
	return nil
}

// NotifyFailure logs the failure.
func (n *NonInteractiveNotifier) NotifyFailure(ctx context.Context, message string) error {
	n.log.Error("rename run failed", "message", message)
	return nil
}

// -----------------------------------------------------------------------------
// MockNotifier
// -----------------------------------------------------------------------------

// NotifierCall records one notifier invocation for test assertions.
type NotifierCall struct {
	Method  string
	OldName string
	NewName string
	Message string
}

// MockNotifier is a test double recording every invocation.
type MockNotifier struct {
	// WarnFunc and FailFunc override the default nil-error behavior.
	WarnFunc func(ctx context.Context, oldName, newName string) error
	FailFunc func(ctx context.Context, message string) error

	// Calls records invocations in order.
	Calls []NotifierCall
}

// WarnBeforeChange records the call and delegates to WarnFunc if set.
func (m *MockNotifier) WarnBeforeChange(ctx context.Context, oldName, newName string) error {
	m.Calls = append(m.Calls, NotifierCall{Method: "WarnBeforeChange", OldName: oldName, NewName: newName})
	if m.WarnFunc != nil {
		return m.WarnFunc(ctx, oldName, newName)
	}
	return nil
}

// NotifyFailure records the call and delegates to FailFunc if set.
func (m *MockNotifier) NotifyFailure(ctx context.Context, message string) error {
	m.Calls = append(m.Calls, NotifierCall{Method: "NotifyFailure", Message: message})
	if m.FailFunc != nil {
		return m.FailFunc(ctx, message)
	}
	return nil
}

// Warnings returns the recorded pre-change warnings.
func (m *MockNotifier) Warnings() []NotifierCall {
	return m.filter("WarnBeforeChange")
}

// Failures returns the recorded failure notifications.
func (m *MockNotifier) Failures() []NotifierCall {
	return m.filter("NotifyFailure")
}

func (m *MockNotifier) filter(method string) []NotifierCall {
	var out []NotifierCall
	for _, c := range m.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears the recorded call history.
func (m *MockNotifier) Reset() {
	m.Calls = nil
}

var (
	_ Notifier = (*DialogNotifier)(nil)
	_ Notifier = (*ConsoleNotifier)(nil)
	_ Notifier = (*NonInteractiveNotifier)(nil)
	_ Notifier = (*MockNotifier)(nil)
)
