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
Package rename implements the account rename transaction: four ordered
mutations across the directory node and the filesystem that must either
all succeed or be fully reverted.

# Problem Statement

Renaming a managed account touches four mutually dependent attributes:
the physical home directory location, the display name, the directory
record key, and the home-directory-pointer attribute. The host offers
no transaction primitive spanning the directory node and the
filesystem, and any of the four writes can fail independently. A
half-renamed account (record key changed, home directory not moved) is
worse than a failed rename.

# Solution

A hand-rolled compensating transaction:

	┌──────────────────────────────────────────────────────────┐
	│ commit order          │ rollback order (reverse)         │
	├──────────────────────────────────────────────────────────┤
	│ 1. move-home          │ 4. move home back (guarded)      │
	│ 2. set-display-name   │ 3. restore display name          │
	│ 3. set-record-key     │ 2. restore record key            │
	│ 4. set-home-attribute │ 1. restore home attribute        │
	└──────────────────────────────────────────────────────────┘

Each Step pairs a forward Commit with an idempotent Compensate. On the
first commit failure the transaction compensates every previously
committed step in strict reverse order; the failing step itself never
committed and is never compensated. If a compensation itself fails the
transaction stops immediately and reports StateRollbackFailed carrying
both errors: the terminal inconsistent state, surfaced as the most
severe outcome and persisted to the run journal for manual recovery.

No step is retried, and no step runs more than once in either
direction per run. There are no per-step timeouts: every underlying
directory or filesystem call blocks until it returns.

# Thread Safety

Transaction is NOT safe for concurrent use. One transaction runs per
process invocation, from a single goroutine, and it is the only writer
of the four attributes for the lifetime of the run.

# Related Files

  - steps.go: the four concrete step definitions
  - linker.go: post-commit compatibility symlink (outside rollback scope)
  - journal.go: persisted per-run recovery state
*/
package rename

import (
	"context"
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianRename/pkg/logging"
)

// State tracks where a transaction is in its lifecycle.
//
// Transitions:
//
//	StatePending → StateCommitting → StateCommitted
//	                      │
//	                      └→ StateRollingBack → StateRolledBack
//	                                  │
//	                                  └→ StateRollbackFailed
//
// StateRolledBack is observably equivalent to StatePending: every
// attribute equals the pre-transaction snapshot. StateRollbackFailed
// is terminal and guarantees nothing about consistency.
type State int

const (
	// StatePending means no step has been attempted.
	StatePending State = iota

	// StateCommitting means forward execution is in progress.
	StateCommitting

	// StateCommitted means all steps committed; the account fully
	// reflects the target identity.
	StateCommitted

	// StateRollingBack means a commit failed and compensations are
	// running in reverse order.
	StateRollingBack

	// StateRolledBack means every committed step was compensated;
	// the account equals the pre-transaction snapshot.
	StateRolledBack

	// StateRollbackFailed means a compensation failed. The account is
	// in a mixed state and the tool has no further recovery strategy.
	StateRollbackFailed
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCommitting:
		return "committing"
	case StateCommitted:
		return "committed"
	case StateRollingBack:
		return "rolling-back"
	case StateRolledBack:
		return "rolled-back"
	case StateRollbackFailed:
		return "rollback-failed"
	default:
		return "unknown"
	}
}

// Step is one mutation primitive with its compensating action.
type Step struct {
	// Name identifies the step in logs and the run journal.
	Name string

	// Commit performs the forward action. A single failed attempt is
	// final for this direction.
	Commit func(ctx context.Context) error

	// Compensate reverts the forward action. It must be idempotent:
	// safe to invoke even if Commit partially or never executed, with
	// an inspect-then-act guard where the forward action is not a
	// plain attribute write.
	Compensate func(ctx context.Context) error
}

// Result is the outcome of one transaction run.
type Result struct {
	// State is the terminal state: StateCommitted, StateRolledBack,
	// or StateRollbackFailed.
	State State

	// Committed lists step names that committed, in commit order.
	Committed []string

	// Compensated lists step names whose compensation succeeded, in
	// rollback (reverse) order.
	Compensated []string

	// FailedStep and CommitErr describe the originating commit
	// failure. Empty/nil when State is StateCommitted.
	FailedStep string
	CommitErr  error

	// RollbackStep and RollbackErr describe the compensation failure.
	// Only set when State is StateRollbackFailed.
	RollbackStep string
	RollbackErr  error

	// Duration is the total execution time.
	Duration time.Duration
}

// Err folds the result into a single reportable error, nil on commit.
func (r Result) Err() error {
	switch r.State {
	case StateCommitted:
		return nil
	case StateRolledBack:
		return fmt.Errorf("rename failed at step %q and was fully reverted: %w", r.FailedStep, r.CommitErr)
	case StateRollbackFailed:
		return fmt.Errorf("rename failed at step %q and rollback of %q also failed, account left inconsistent: %v (rollback: %w)",
			r.FailedStep, r.RollbackStep, r.CommitErr, r.RollbackErr)
	default:
		return fmt.Errorf("transaction did not run to a terminal state: %s", r.State)
	}
}

// Config configures transaction logging and observation hooks.
type Config struct {
	// Logger receives step-level progress. Default: logging.Default().
	Logger *logging.Logger

	// OnCommitted is called after each successful commit, before the
	// next step runs. The run journal hooks in here.
	OnCommitted func(step string)

	// OnCompensated is called after each compensation attempt with
	// its error (nil on success).
	OnCompensated func(step string, err error)
}

// Transaction executes ordered steps with reverse-order rollback.
type Transaction struct {
	config    Config
	steps     []Step
	committed []Step
	state     State
}

// NewTransaction creates a transaction over the given steps.
func NewTransaction(config Config, steps ...Step) *Transaction {
	if config.Logger == nil {
		config.Logger = logging.Default()
	}
	return &Transaction{
		config: config,
		steps:  steps,
		state:  StatePending,
	}
}

// State returns the transaction's current lifecycle state.
func (t *Transaction) State() State {
	return t.state
}

// Run executes all steps in order. On the first commit failure it
// compensates every committed step in reverse order; on the first
// compensation failure it stops immediately.
//
// The returned Result always has a terminal State. Run must be called
// at most once per Transaction.
func (t *Transaction) Run(ctx context.Context) Result {
	start := time.Now()
	log := t.config.Logger

	t.state = StateCommitting
	res := Result{}

	for _, step := range t.steps {
		log.Info("committing step", "step", step.Name)

		if err := step.Commit(ctx); err != nil {
			log.Error("step commit failed", "step", step.Name, "error", err)
			res.FailedStep = step.Name
			res.CommitErr = err
			t.rollback(ctx, &res)
			res.State = t.state
			res.Duration = time.Since(start)
			return res
		}

		t.committed = append(t.committed, step)
		res.Committed = append(res.Committed, step.Name)
		if t.config.OnCommitted != nil {
			t.config.OnCommitted(step.Name)
		}
	}

	t.state = StateCommitted
	res.State = StateCommitted
	res.Duration = time.Since(start)
	log.Info("all steps committed", "steps", len(t.steps))
	return res
}

// rollback compensates committed steps in reverse order, stopping at
// the first compensation failure.
func (t *Transaction) rollback(ctx context.Context, res *Result) {
	t.state = StateRollingBack
	log := t.config.Logger

	if len(t.committed) == 0 {
		// The failing step was the first: nothing committed, nothing
		// to revert.
		t.state = StateRolledBack
		return
	}

	log.Warn("rolling back committed steps", "count", len(t.committed))

	for i := len(t.committed) - 1; i >= 0; i-- {
		step := t.committed[i]
		log.Info("compensating step", "step", step.Name)

		err := step.Compensate(ctx)
		if t.config.OnCompensated != nil {
			t.config.OnCompensated(step.Name, err)
		}
		if err != nil {
			// Do not attempt further compensations: a failed
			// compensation means the account state no longer matches
			// any assumption the remaining compensations rely on.
			log.Error("compensation failed, account left inconsistent",
				"step", step.Name, "error", err)
			t.state = StateRollbackFailed
			res.RollbackStep = step.Name
			res.RollbackErr = err
			return
		}

		res.Compensated = append(res.Compensated, step.Name)
	}

	t.state = StateRolledBack
	log.Info("rollback complete, account restored to snapshot")
}
