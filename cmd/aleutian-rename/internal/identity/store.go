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
Package identity reads and writes the local account attributes that the
rename transaction mutates.

# Problem Statement

A macOS account's identity is spread across three Directory Services
attributes (RecordName, RealName, NFSHomeDirectory) plus the physical
home directory. The directory node has no multi-attribute transaction:
each attribute is written in a separate dscl invocation that can fail
independently, and a rename must keep all of them mutually consistent.

# Solution

A Store interface exposing exactly the reads and writes the transaction
needs, with two implementations:

  - DsclStore: production implementation driving the local directory
    node through `dscl` (via sysexec.Runner)
  - MemStore: in-memory fake with scripted failures and a write log,
    used by the transaction atomicity tests

The Store tracks the account's current record name internally: after a
successful SetRecordName, subsequent operations (including a rollback
of a later step) address the record under its new name.

# Related Files

  - internal/rename/steps.go: the four mutations built on this Store
  - internal/sysexec/runner.go: command execution abstraction
*/
package identity

import (
	"context"
	"fmt"
)

// Account holds the directory attributes of one local account.
type Account struct {
	// RecordName is the directory record's primary key (login name).
	RecordName string

	// RealName is the human-readable display name.
	RealName string

	// HomeDirectory is the NFSHomeDirectory attribute: where the
	// directory record claims the home directory lives, independent
	// of the actual filesystem location.
	HomeDirectory string
}

// Snapshot is the immutable pre-mutation record of the account, taken
// once at startup. It is the rollback target for the transaction.
type Snapshot struct {
	// LoginName is the account's current canonical login key.
	LoginName string

	// HomePath is the current home directory filesystem path.
	HomePath string

	// RecordKey is the current directory record key. Equals LoginName
	// when the account is consistent; may differ if a previous run
	// failed mid-way.
	RecordKey string

	// DisplayName is the current human-readable full name.
	DisplayName string
}

// SnapshotFrom builds a Snapshot for the given login name from a read
// account record.
func SnapshotFrom(loginName string, acct Account) Snapshot {
	return Snapshot{
		LoginName:   loginName,
		HomePath:    acct.HomeDirectory,
		RecordKey:   acct.RecordName,
		DisplayName: acct.RealName,
	}
}

// Store reads and writes one account's directory attributes.
//
// # Thread Safety
//
// Implementations are used from a single goroutine; the transaction is
// the only writer for the lifetime of a run.
type Store interface {
	// ReadAccount reads the account's current attributes.
	ReadAccount(ctx context.Context) (Account, error)

	// SetRealName writes the display-name attribute.
	SetRealName(ctx context.Context, name string) error

	// SetRecordName rewrites the record's primary key. On success,
	// subsequent operations address the record under the new name.
	SetRecordName(ctx context.Context, name string) error

	// SetHomeDirectory writes the home-directory-pointer attribute.
	SetHomeDirectory(ctx context.Context, path string) error
}

// StoreError wraps a directory write failure with the attribute and
// underlying command context.
type StoreError struct {
	// Attribute is the directory attribute being written.
	Attribute string

	// Record is the record name the operation addressed.
	Record string

	// Wrapped is the underlying command error (includes stderr).
	Wrapped error
}

// Error returns a formatted error message.
func (e *StoreError) Error() string {
	return fmt.Sprintf("directory write %s on record %q: %v", e.Attribute, e.Record, e.Wrapped)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Wrapped
}
