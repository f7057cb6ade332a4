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
	"errors"
	"testing"

	"github.com/AleutianAI/AleutianRename/cmd/aleutian-rename/internal/sysfs"
)

func TestLinker_CreatesAliasAtOldPath(t *testing.T) {
	fs := sysfs.NewMemFilesystem("/Users/jsmith")
	linker := NewLinker(fs, nil)

	if err := linker.Link("/Users/jdoe", "/Users/jsmith"); err != nil {
		t.Fatalf("Link() unexpected error: %v", err)
	}

	// A lookup at the old location must resolve to the new home.
	if !fs.Exists("/Users/jdoe") {
		t.Error("old path does not resolve after linking")
	}
	target, ok := fs.ReadSymlink("/Users/jdoe")
	if !ok || target != "/Users/jsmith" {
		t.Errorf("symlink target = %q, %v; want /Users/jsmith", target, ok)
	}
}

func TestLinker_SkipsWhenNewHomeMissing(t *testing.T) {
	fs := sysfs.NewMemFilesystem()
	linker := NewLinker(fs, nil)

	if err := linker.Link("/Users/jdoe", "/Users/jsmith"); err == nil {
		t.Error("Link() expected error when new home is missing")
	}
	if len(fs.Ops()) != 0 {
		t.Error("Link() must not mutate anything when preconditions fail")
	}
}

func TestLinker_SkipsWhenOldPathOccupied(t *testing.T) {
	fs := sysfs.NewMemFilesystem("/Users/jdoe", "/Users/jsmith")
	linker := NewLinker(fs, nil)

	if err := linker.Link("/Users/jdoe", "/Users/jsmith"); err == nil {
		t.Error("Link() expected error when old path is still occupied")
	}
}

func TestLinker_ReportsSymlinkFailure(t *testing.T) {
	fs := sysfs.NewMemFilesystem("/Users/jsmith")
	boom := errors.New("EPERM")
	fs.FailSymlink("/Users/jsmith", "/Users/jdoe", boom)

	linker := NewLinker(fs, nil)
	if err := linker.Link("/Users/jdoe", "/Users/jsmith"); !errors.Is(err, boom) {
		t.Errorf("Link() error = %v, want underlying symlink failure", err)
	}
}
