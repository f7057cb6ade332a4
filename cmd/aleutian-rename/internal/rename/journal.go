// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rename

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// JournalRecord is the persisted state of one rename run.
//
// A run that ends in StateRollbackFailed leaves the account in a mixed
// state with no automated recovery; this record is what an operator
// has to work with, so it captures which steps committed, which
// compensations ran, and both failure causes.
type JournalRecord struct {
	RunID      string    `json:"run_id"`
	HostSerial string    `json:"host_serial,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	FromLogin string `json:"from_login"`
	ToLogin   string `json:"to_login"`
	FromHome  string `json:"from_home"`
	ToHome    string `json:"to_home"`

	State       string   `json:"state"`
	Committed   []string `json:"committed_steps"`
	Compensated []string `json:"compensated_steps"`

	FailedStep    string `json:"failed_step,omitempty"`
	CommitError   string `json:"commit_error,omitempty"`
	RollbackStep  string `json:"rollback_failed_step,omitempty"`
	RollbackError string `json:"rollback_error,omitempty"`
}

// Journal persists a JournalRecord to disk after every state change.
//
// Writes are synchronous and happen before the transaction moves on,
// so the on-disk record never lags the account state by more than the
// operation in flight. Persistence failures are reported to the caller
// but must not abort the run: losing journal fidelity is better than
// abandoning a rollback half-way.
type Journal struct {
	path   string
	record JournalRecord
}

// NewJournal creates the journal file for one run under dir.
//
// The file is named rename-<run-id>.json with a fresh uuid per run,
// so re-runs after a failure never overwrite prior recovery state.
func NewJournal(dir, hostSerial string, snap JournalIdentity, target JournalIdentity) (*Journal, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	runID := uuid.NewString()
	now := time.Now().UTC()
	j := &Journal{
		path: filepath.Join(dir, "rename-"+runID+".json"),
		record: JournalRecord{
			RunID:      runID,
			HostSerial: hostSerial,
			StartedAt:  now,
			UpdatedAt:  now,
			FromLogin:  snap.LoginName,
			FromHome:   snap.HomePath,
			ToLogin:    target.LoginName,
			ToHome:     target.HomePath,
			State:      StatePending.String(),
		},
	}

	if err := j.persist(); err != nil {
		return nil, err
	}
	return j, nil
}

// JournalIdentity names the fields of an identity the journal records.
type JournalIdentity struct {
	LoginName string
	HomePath  string
}

// Path returns the journal file location, for operator-facing output.
func (j *Journal) Path() string {
	return j.path
}

// StepCommitted records a successful forward step.
func (j *Journal) StepCommitted(step string) error {
	j.record.State = StateCommitting.String()
	j.record.Committed = append(j.record.Committed, step)
	return j.persist()
}

// StepCompensated records a compensation attempt.
func (j *Journal) StepCompensated(step string, err error) error {
	j.record.State = StateRollingBack.String()
	if err != nil {
		j.record.RollbackStep = step
		j.record.RollbackError = err.Error()
	} else {
		j.record.Compensated = append(j.record.Compensated, step)
	}
	return j.persist()
}

// Finish records the terminal result of the run.
func (j *Journal) Finish(res Result) error {
	j.record.State = res.State.String()
	j.record.FailedStep = res.FailedStep
	if res.CommitErr != nil {
		j.record.CommitError = res.CommitErr.Error()
	}
	j.record.RollbackStep = res.RollbackStep
	if res.RollbackErr != nil {
		j.record.RollbackError = res.RollbackErr.Error()
	}
	return j.persist()
}

// persist writes the record atomically (temp file + rename).
func (j *Journal) persist() error {
	j.record.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(j.record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode journal: %w", err)
	}

	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	if err := os.Rename(tmp, j.path); err != nil {
		return fmt.Errorf("publish journal: %w", err)
	}
	return nil
}
