// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sysfs abstracts the three filesystem operations the rename
// transaction needs: existence checks, directory moves, and symlink
// creation. MemFilesystem backs the atomicity tests; OSFilesystem is
// the production implementation.
package sysfs

import (
	"fmt"
	"os"
	"sort"
	"sync"
)

// Filesystem is the filesystem surface used by the rename transaction.
type Filesystem interface {
	// Exists reports whether path exists, following symlinks.
	Exists(path string) bool

	// Lexists reports whether path exists without following symlinks,
	// so a dangling symlink still counts.
	Lexists(path string) bool

	// Move renames src to dst. Directories move atomically when src and
	// dst are on the same volume, which holds for home directories
	// under a single parent.
	Move(src, dst string) error

	// Symlink creates a symbolic link at linkPath pointing to target.
	Symlink(target, linkPath string) error
}

// -----------------------------------------------------------------------------
// Production Implementation
// -----------------------------------------------------------------------------

// OSFilesystem implements Filesystem against the real filesystem.
type OSFilesystem struct{}

// NewOSFilesystem creates the production filesystem.
func NewOSFilesystem() *OSFilesystem {
	return &OSFilesystem{}
}

// Exists reports whether path exists, following symlinks.
func (fs *OSFilesystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Lexists reports whether path exists without following symlinks.
func (fs *OSFilesystem) Lexists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Move renames src to dst.
func (fs *OSFilesystem) Move(src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("move %s -> %s: %w", src, dst, err)
	}
	return nil
}

// Symlink creates a symbolic link at linkPath pointing to target.
func (fs *OSFilesystem) Symlink(target, linkPath string) error {
	if err := os.Symlink(target, linkPath); err != nil {
		return fmt.Errorf("symlink %s -> %s: %w", linkPath, target, err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// In-Memory Implementation
// -----------------------------------------------------------------------------

// Op records a single mutating call on a MemFilesystem.
type Op struct {
	Kind string // "move" or "symlink"
	From string // src for move, linkPath for symlink
	To   string // dst for move, target for symlink
}

// MemFilesystem implements Filesystem over an in-memory path set.
//
// # Description
//
// Paths are tracked as a flat set; symlinks are tracked separately so
// Exists can follow them and Lexists can see dangling links. Moves and
// symlinks can be scripted to fail, and every mutating call is logged,
// which is what the transaction atomicity tests assert against.
//
// # Example
//
//	fs := sysfs.NewMemFilesystem("/Users/jdoe")
//	fs.FailMove("/Users/jdoe", "/Users/jsmith", errors.New("EACCES"))
type MemFilesystem struct {
	mu       sync.Mutex
	paths    map[string]bool
	symlinks map[string]string // linkPath -> target
	moveErrs map[string]error  // "src|dst" -> error
	linkErrs map[string]error  // "linkPath|target" -> error
	ops      []Op
}

// NewMemFilesystem creates a MemFilesystem seeded with existing paths.
func NewMemFilesystem(existing ...string) *MemFilesystem {
	fs := &MemFilesystem{
		paths:    make(map[string]bool),
		symlinks: make(map[string]string),
		moveErrs: make(map[string]error),
		linkErrs: make(map[string]error),
	}
	for _, p := range existing {
		fs.paths[p] = true
	}
	return fs
}

// FailMove scripts an error for a specific Move(src, dst) call.
func (fs *MemFilesystem) FailMove(src, dst string, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.moveErrs[src+"|"+dst] = err
}

// FailSymlink scripts an error for a specific Symlink(target, linkPath) call.
func (fs *MemFilesystem) FailSymlink(target, linkPath string, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.linkErrs[linkPath+"|"+target] = err
}

// Exists reports whether path exists, following one symlink hop.
func (fs *MemFilesystem) Exists(path string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.paths[path] {
		return true
	}
	if target, ok := fs.symlinks[path]; ok {
		return fs.paths[target]
	}
	return false
}

// Lexists reports whether path exists without following symlinks.
func (fs *MemFilesystem) Lexists(path string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.paths[path] {
		return true
	}
	_, ok := fs.symlinks[path]
	return ok
}

// Move renames src to dst in the path set.
func (fs *MemFilesystem) Move(src, dst string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.moveErrs[src+"|"+dst]; err != nil {
		return err
	}
	if !fs.paths[src] {
		return fmt.Errorf("move %s -> %s: %w", src, dst, os.ErrNotExist)
	}
	if fs.paths[dst] {
		return fmt.Errorf("move %s -> %s: %w", src, dst, os.ErrExist)
	}

	delete(fs.paths, src)
	fs.paths[dst] = true
	fs.ops = append(fs.ops, Op{Kind: "move", From: src, To: dst})
	return nil
}

// Symlink creates a symlink entry at linkPath pointing to target.
func (fs *MemFilesystem) Symlink(target, linkPath string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.linkErrs[linkPath+"|"+target]; err != nil {
		return err
	}
	if fs.paths[linkPath] {
		return fmt.Errorf("symlink %s -> %s: %w", linkPath, target, os.ErrExist)
	}
	if _, ok := fs.symlinks[linkPath]; ok {
		return fmt.Errorf("symlink %s -> %s: %w", linkPath, target, os.ErrExist)
	}

	fs.symlinks[linkPath] = target
	fs.ops = append(fs.ops, Op{Kind: "symlink", From: linkPath, To: target})
	return nil
}

// ReadSymlink returns the target of a symlink, if one exists at path.
func (fs *MemFilesystem) ReadSymlink(path string) (string, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	target, ok := fs.symlinks[path]
	return target, ok
}

// Ops returns a copy of all mutating operations in order.
func (fs *MemFilesystem) Ops() []Op {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := make([]Op, len(fs.ops))
	copy(out, fs.ops)
	return out
}

// Paths returns the sorted set of existing (non-symlink) paths.
func (fs *MemFilesystem) Paths() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := make([]string, 0, len(fs.paths))
	for p := range fs.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Compile-time interface satisfaction checks
var (
	_ Filesystem = (*OSFilesystem)(nil)
	_ Filesystem = (*MemFilesystem)(nil)
)
