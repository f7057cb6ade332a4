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
	"fmt"

	"github.com/AleutianAI/AleutianRename/cmd/aleutian-rename/internal/sysfs"
	"github.com/AleutianAI/AleutianRename/pkg/logging"
)

// Linker leaves a symlink at the old home path after a committed
// rename, so tools and stored paths referencing the old location keep
// resolving.
//
// The link is outside the transaction's rollback scope: by the time it
// runs the identity change is the durable outcome, and a link failure
// is logged, never used to unwind the committed rename.
type Linker struct {
	fs  sysfs.Filesystem
	log *logging.Logger
}

// NewLinker creates a Linker over the given filesystem.
func NewLinker(fs sysfs.Filesystem, log *logging.Logger) *Linker {
	if log == nil {
		log = logging.Default()
	}
	return &Linker{fs: fs, log: log}
}

// Link creates the compatibility symlink oldHome -> newHome.
//
// Preconditions are checked rather than assumed: the new home must
// exist and the old path must be vacant. Returns the failure for the
// caller's logs; callers must treat it as best-effort.
func (l *Linker) Link(oldHome, newHome string) error {
	if !l.fs.Exists(newHome) {
		err := fmt.Errorf("compatibility link skipped: new home %s does not exist", newHome)
		l.log.Warn("compatibility link not created", "error", err)
		return err
	}
	if l.fs.Lexists(oldHome) {
		err := fmt.Errorf("compatibility link skipped: %s still occupied", oldHome)
		l.log.Warn("compatibility link not created", "error", err)
		return err
	}

	if err := l.fs.Symlink(newHome, oldHome); err != nil {
		l.log.Warn("compatibility link not created", "error", err)
		return err
	}

	l.log.Info("compatibility link created", "link", oldHome, "target", newHome)
	return nil
}
