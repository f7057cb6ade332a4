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
Transaction-level tests over the four concrete rename steps, using the
in-memory identity store and filesystem.

# Testing Strategy

The central property is atomicity: for a failure injected at any of
the four steps, the run must end with the account either fully at the
target identity or exactly at the snapshot, never a mix (except the
deliberately constructed rollback-failure case, which must be reported
as its own, more severe state).
*/
package rename

import (
	"context"
	"errors"
	"testing"

	"github.com/AleutianAI/AleutianRename/cmd/aleutian-rename/internal/identity"
	"github.com/AleutianAI/AleutianRename/cmd/aleutian-rename/internal/sysfs"
)

const homeRoot = "/Users"

func testSnapshot() identity.Snapshot {
	return identity.Snapshot{
		LoginName:   "jdoe",
		HomePath:    "/Users/jdoe",
		RecordKey:   "jdoe",
		DisplayName: "J Doe",
	}
}

func testTarget() Target {
	return Target{LoginName: "jsmith", DisplayName: "Jane Smith"}
}

func testStore() *identity.MemStore {
	return identity.NewMemStore(identity.Account{
		RecordName:    "jdoe",
		RealName:      "J Doe",
		HomeDirectory: "/Users/jdoe",
	})
}

// assertAtSnapshot verifies every attribute equals the pre-run state.
func assertAtSnapshot(t *testing.T, store *identity.MemStore, fs *sysfs.MemFilesystem) {
	t.Helper()
	acct := store.Account()
	if acct.RecordName != "jdoe" || acct.RealName != "J Doe" || acct.HomeDirectory != "/Users/jdoe" {
		t.Errorf("account = %+v, want snapshot values", acct)
	}
	if !fs.Exists("/Users/jdoe") {
		t.Error("home directory not at original path")
	}
	if fs.Exists("/Users/jsmith") {
		t.Error("destination home path exists after rollback")
	}
}

// assertAtTarget verifies every attribute equals the target identity.
func assertAtTarget(t *testing.T, store *identity.MemStore, fs *sysfs.MemFilesystem) {
	t.Helper()
	acct := store.Account()
	if acct.RecordName != "jsmith" || acct.RealName != "Jane Smith" || acct.HomeDirectory != "/Users/jsmith" {
		t.Errorf("account = %+v, want target values", acct)
	}
	if !fs.Exists("/Users/jsmith") {
		t.Error("home directory not at target path")
	}
}

func TestSteps_FullCommit(t *testing.T) {
	store := testStore()
	fs := sysfs.NewMemFilesystem("/Users/jdoe")

	steps := BuildSteps(testSnapshot(), testTarget(), store, fs, homeRoot)
	res := NewTransaction(Config{}, steps...).Run(context.Background())

	if res.State != StateCommitted {
		t.Fatalf("State = %v, want StateCommitted (err %v)", res.State, res.Err())
	}
	assertAtTarget(t, store, fs)

	wantOrder := []string{StepMoveHome, StepSetDisplayName, StepSetRecordKey, StepSetHomeAttribute}
	for i, name := range wantOrder {
		if res.Committed[i] != name {
			t.Errorf("Committed[%d] = %q, want %q", i, res.Committed[i], name)
		}
	}
}

func TestSteps_CollisionGuard(t *testing.T) {
	store := testStore()
	// Destination already occupied by another account's home.
	fs := sysfs.NewMemFilesystem("/Users/jdoe", "/Users/jsmith")

	steps := BuildSteps(testSnapshot(), testTarget(), store, fs, homeRoot)
	res := NewTransaction(Config{}, steps...).Run(context.Background())

	if res.State != StateRolledBack {
		t.Fatalf("State = %v, want StateRolledBack", res.State)
	}
	if !errors.Is(res.CommitErr, ErrHomeCollision) {
		t.Errorf("CommitErr = %v, want ErrHomeCollision", res.CommitErr)
	}
	// Zero mutations: no filesystem ops, no directory writes.
	if len(fs.Ops()) != 0 {
		t.Errorf("filesystem ops = %v, want none", fs.Ops())
	}
	if len(store.Writes()) != 0 {
		t.Errorf("directory writes = %v, want none", store.Writes())
	}
}

// TestSteps_AtomicUnderInjectedFailures injects a commit failure at
// each step and verifies the account is exactly back at the snapshot.
func TestSteps_AtomicUnderInjectedFailures(t *testing.T) {
	boom := errors.New("injected failure")

	tests := []struct {
		name   string
		inject func(store *identity.MemStore, fs *sysfs.MemFilesystem)
	}{
		{
			name: StepMoveHome,
			inject: func(store *identity.MemStore, fs *sysfs.MemFilesystem) {
				fs.FailMove("/Users/jdoe", "/Users/jsmith", boom)
			},
		},
		{
			name: StepSetDisplayName,
			inject: func(store *identity.MemStore, fs *sysfs.MemFilesystem) {
				store.FailWrite(identity.AttrRealName, boom)
			},
		},
		{
			name: StepSetRecordKey,
			inject: func(store *identity.MemStore, fs *sysfs.MemFilesystem) {
				store.FailWrite(identity.AttrRecordName, boom)
			},
		},
		{
			name: StepSetHomeAttribute,
			inject: func(store *identity.MemStore, fs *sysfs.MemFilesystem) {
				store.FailWrite(identity.AttrHomeDirectory, boom)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testStore()
			fs := sysfs.NewMemFilesystem("/Users/jdoe")
			tt.inject(store, fs)

			steps := BuildSteps(testSnapshot(), testTarget(), store, fs, homeRoot)
			res := NewTransaction(Config{}, steps...).Run(context.Background())

			if res.State != StateRolledBack {
				t.Fatalf("State = %v, want StateRolledBack", res.State)
			}
			if res.FailedStep != tt.name {
				t.Errorf("FailedStep = %q, want %q", res.FailedStep, tt.name)
			}
			assertAtSnapshot(t, store, fs)
		})
	}
}

// TestSteps_ExampleScenario is the reference rename with a failure at
// the record-key step: home moved back, display name restored, record
// key untouched.
func TestSteps_ExampleScenario(t *testing.T) {
	store := testStore()
	fs := sysfs.NewMemFilesystem("/Users/jdoe")
	store.FailWrite(identity.AttrRecordName, errors.New("eDSSchemaError"))

	steps := BuildSteps(testSnapshot(), testTarget(), store, fs, homeRoot)
	res := NewTransaction(Config{}, steps...).Run(context.Background())

	if res.State != StateRolledBack {
		t.Fatalf("State = %v, want StateRolledBack", res.State)
	}

	acct := store.Account()
	if acct.RecordName != "jdoe" {
		t.Errorf("record key = %q, want untouched jdoe", acct.RecordName)
	}
	if acct.RealName != "J Doe" {
		t.Errorf("display name = %q, want restored J Doe", acct.RealName)
	}
	if !fs.Exists("/Users/jdoe") || fs.Exists("/Users/jsmith") {
		t.Error("home directory not moved back to /Users/jdoe")
	}

	// Rollback order: display name restored before the home moved back.
	writes := store.Writes()
	last := writes[len(writes)-1]
	if last.Attribute != identity.AttrRealName || last.Value != "J Doe" {
		t.Errorf("last directory write = %+v, want RealName restore", last)
	}
	ops := fs.Ops()
	lastOp := ops[len(ops)-1]
	if lastOp.Kind != "move" || lastOp.From != "/Users/jsmith" || lastOp.To != "/Users/jdoe" {
		t.Errorf("last fs op = %+v, want move back", lastOp)
	}
}

// TestSteps_RollbackFailureLeavesDistinctState constructs the terminal
// inconsistent state: forward display-name write succeeds, a later
// commit fails, and the display-name restore also fails.
func TestSteps_RollbackFailureLeavesDistinctState(t *testing.T) {
	store := testStore()
	fs := sysfs.NewMemFilesystem("/Users/jdoe")

	commitBoom := errors.New("eDSSchemaError")
	rollbackBoom := errors.New("eDSPermissionError")
	store.FailWrite(identity.AttrRecordName, commitBoom)
	store.FailWriteAfter(identity.AttrRealName, 1, rollbackBoom)

	steps := BuildSteps(testSnapshot(), testTarget(), store, fs, homeRoot)
	res := NewTransaction(Config{}, steps...).Run(context.Background())

	if res.State != StateRollbackFailed {
		t.Fatalf("State = %v, want StateRollbackFailed", res.State)
	}
	if res.FailedStep != StepSetRecordKey || !errors.Is(res.CommitErr, commitBoom) {
		t.Errorf("originating failure = %q/%v", res.FailedStep, res.CommitErr)
	}
	if res.RollbackStep != StepSetDisplayName || !errors.Is(res.RollbackErr, rollbackBoom) {
		t.Errorf("rollback failure = %q/%v", res.RollbackStep, res.RollbackErr)
	}

	// Mixed state is expected here: the home was never moved back
	// because rollback stopped at the display-name restore.
	if !fs.Exists("/Users/jsmith") {
		t.Error("home should remain at destination, rollback stopped before move-home")
	}
	if store.Account().RealName != "Jane Smith" {
		t.Error("display name should remain at target value")
	}
}

// TestSteps_CompensationIdempotent invokes move-home's compensation
// twice; the second call must see the restored path and succeed as a
// no-op.
func TestSteps_CompensationIdempotent(t *testing.T) {
	store := testStore()
	fs := sysfs.NewMemFilesystem("/Users/jdoe")

	steps := BuildSteps(testSnapshot(), testTarget(), store, fs, homeRoot)
	moveHome := steps[0]
	ctx := context.Background()

	if err := moveHome.Commit(ctx); err != nil {
		t.Fatalf("Commit() unexpected error: %v", err)
	}
	if err := moveHome.Compensate(ctx); err != nil {
		t.Fatalf("first Compensate() unexpected error: %v", err)
	}
	if err := moveHome.Compensate(ctx); err != nil {
		t.Errorf("second Compensate() must be a no-op, got %v", err)
	}
	if !fs.Exists("/Users/jdoe") {
		t.Error("home not restored")
	}

	// Compensation without a prior commit is also safe.
	fresh := sysfs.NewMemFilesystem("/Users/jdoe")
	steps2 := BuildSteps(testSnapshot(), testTarget(), store, fresh, homeRoot)
	if err := steps2[0].Compensate(ctx); err != nil {
		t.Errorf("Compensate() before Commit() must succeed, got %v", err)
	}
}

// TestSteps_CompensationBothPathsMissing covers the unrecoverable
// guard: the home directory exists at neither location.
func TestSteps_CompensationBothPathsMissing(t *testing.T) {
	store := testStore()
	fs := sysfs.NewMemFilesystem() // no paths at all

	steps := BuildSteps(testSnapshot(), testTarget(), store, fs, homeRoot)
	if err := steps[0].Compensate(context.Background()); err == nil {
		t.Error("Compensate() must fail when home exists at neither path")
	}
}

func TestTarget_HomePath(t *testing.T) {
	target := Target{LoginName: "jsmith"}
	if got := target.HomePath("/Users"); got != "/Users/jsmith" {
		t.Errorf("HomePath() = %q, want /Users/jsmith", got)
	}
}
