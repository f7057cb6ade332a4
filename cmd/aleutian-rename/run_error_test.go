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
	"testing"
)

// TestExitCode verifies error-to-exit-code mapping.
func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"run error", &RunError{Code: 1, Err: errors.New("boom")}, 1},
		{"wrapped run error", fmt.Errorf("outer: %w", &RunError{Code: 1, Err: errors.New("boom")}), 1},
		{"plain error", errors.New("boom"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

// TestRunError_Unwrap verifies errors.Is reaches the cause.
func TestRunError_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	err := failuref("context: %w", cause)

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is() did not find the cause through %v", err)
	}
	if err.ExitCode() != 1 {
		t.Errorf("ExitCode() = %d, want 1", err.ExitCode())
	}
}
