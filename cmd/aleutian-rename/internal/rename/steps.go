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
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/AleutianAI/AleutianRename/cmd/aleutian-rename/internal/identity"
	"github.com/AleutianAI/AleutianRename/cmd/aleutian-rename/internal/sysfs"
)

// Step names, stable because they are persisted in the run journal.
const (
	StepMoveHome         = "move-home"
	StepSetDisplayName   = "set-display-name"
	StepSetRecordKey     = "set-record-key"
	StepSetHomeAttribute = "set-home-attribute"
)

// ErrHomeCollision means the destination home path already exists, so
// the rename stops before any mutation. Guards against renaming onto
// another account's home directory.
var ErrHomeCollision = errors.New("destination home path already exists")

// Target is the canonical identity the account is renamed to.
type Target struct {
	// LoginName is the target login name. Must be non-empty.
	LoginName string

	// DisplayName is the target human-readable full name.
	DisplayName string
}

// HomePath returns the home directory path the target login name
// implies: a directory named after the login name under homeRoot.
func (t Target) HomePath(homeRoot string) string {
	return filepath.Join(homeRoot, t.LoginName)
}

// BuildSteps assembles the four rename steps in their fixed order:
// move-home, set-display-name, set-record-key, set-home-attribute.
//
// The snapshot supplies every compensation's restore values, so a
// rollback targets the exact pre-transaction state regardless of how
// far forward execution got.
func BuildSteps(snap identity.Snapshot, target Target, store identity.Store, fs sysfs.Filesystem, homeRoot string) []Step {
	oldHome := snap.HomePath
	newHome := target.HomePath(homeRoot)

	return []Step{
		{
			Name: StepMoveHome,
			Commit: func(ctx context.Context) error {
				// Collision guard: never move onto an existing path.
				// Lexists so a dangling symlink at the destination
				// also counts as occupied.
				if fs.Lexists(newHome) {
					return fmt.Errorf("%w: %s", ErrHomeCollision, newHome)
				}
				return fs.Move(oldHome, newHome)
			},
			Compensate: func(ctx context.Context) error {
				// Inspect-then-act: the move may have never taken
				// effect, or a previous compensation already restored
				// the original path.
				if fs.Exists(oldHome) {
					return nil
				}
				if fs.Exists(newHome) {
					return fs.Move(newHome, oldHome)
				}
				return fmt.Errorf("home directory missing from both %s and %s", oldHome, newHome)
			},
		},
		{
			Name: StepSetDisplayName,
			Commit: func(ctx context.Context) error {
				return store.SetRealName(ctx, target.DisplayName)
			},
			Compensate: func(ctx context.Context) error {
				return store.SetRealName(ctx, snap.DisplayName)
			},
		},
		{
			Name: StepSetRecordKey,
			Commit: func(ctx context.Context) error {
				return store.SetRecordName(ctx, target.LoginName)
			},
			Compensate: func(ctx context.Context) error {
				return store.SetRecordName(ctx, snap.RecordKey)
			},
		},
		{
			Name: StepSetHomeAttribute,
			Commit: func(ctx context.Context) error {
				return store.SetHomeDirectory(ctx, newHome)
			},
			Compensate: func(ctx context.Context) error {
				return store.SetHomeDirectory(ctx, snap.HomePath)
			},
		},
	}
}
