// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianRename/cmd/aleutian-rename/internal/sysexec"
)

// Directory attribute names as dscl reports them. Exported so tests
// can script per-attribute failures on MemStore.
const (
	AttrRecordName    = "RecordName"
	AttrRealName      = "RealName"
	AttrHomeDirectory = "NFSHomeDirectory"
)

// DsclStore implements Store against the local Directory Services node
// using the dscl command line tool.
//
// # Description
//
// Reads use `dscl . -read /Users/<record> <attribute>` per attribute;
// writes use `dscl . -create` (overwrite semantics) except the record
// key itself, which uses `dscl . -change` so dscl verifies the old
// value before rewriting the key. Each call is one dscl invocation,
// attempted exactly once.
//
// # Limitations
//
//   - Requires root (directory writes fail with eDSPermissionError
//     otherwise); the caller surfaces that as a StoreError.
//   - Multi-valued RecordName attributes: only the first value is
//     treated as the record key.
type DsclStore struct {
	runner sysexec.Runner
	record string // current record name; updated by SetRecordName
}

// NewDsclStore creates a DsclStore addressing the given record name on
// the local directory node.
func NewDsclStore(runner sysexec.Runner, recordName string) *DsclStore {
	return &DsclStore{runner: runner, record: recordName}
}

// recordPath returns the dscl path of the account record.
func (s *DsclStore) recordPath() string {
	return "/Users/" + s.record
}

// ReadAccount reads the account's current attributes.
func (s *DsclStore) ReadAccount(ctx context.Context) (Account, error) {
	var acct Account

	record, err := s.readAttribute(ctx, AttrRecordName)
	if err != nil {
		return acct, err
	}
	realName, err := s.readAttribute(ctx, AttrRealName)
	if err != nil {
		return acct, err
	}
	home, err := s.readAttribute(ctx, AttrHomeDirectory)
	if err != nil {
		return acct, err
	}

	acct.RecordName = record
	acct.RealName = realName
	acct.HomeDirectory = home
	return acct, nil
}

// readAttribute reads a single attribute value from the record.
func (s *DsclStore) readAttribute(ctx context.Context, attr string) (string, error) {
	out, err := s.runner.Run(ctx, "dscl", ".", "-read", s.recordPath(), attr)
	if err != nil {
		return "", &StoreError{Attribute: attr, Record: s.record, Wrapped: err}
	}
	return parseDsclValue(string(out), attr)
}

// parseDsclValue extracts the first value of an attribute from dscl
// read output. dscl prints either "Attr: value" on one line or the
// attribute name followed by indented value lines.
func parseDsclValue(output, attr string) (string, error) {
	lines := strings.Split(output, "\n")
	for i, line := range lines {
		if !strings.HasPrefix(line, attr+":") {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(line, attr+":"))
		if rest != "" {
			return rest, nil
		}
		// Value on the following indented line (names with spaces).
		if i+1 < len(lines) {
			if v := strings.TrimSpace(lines[i+1]); v != "" {
				return v, nil
			}
		}
	}
	return "", fmt.Errorf("attribute %s not present in dscl output", attr)
}

// SetRealName writes the display-name attribute.
func (s *DsclStore) SetRealName(ctx context.Context, name string) error {
	if _, err := s.runner.Run(ctx, "dscl", ".", "-create", s.recordPath(), AttrRealName, name); err != nil {
		return &StoreError{Attribute: AttrRealName, Record: s.record, Wrapped: err}
	}
	return nil
}

// SetRecordName rewrites the record's primary key. On success the
// store addresses the record under the new name.
func (s *DsclStore) SetRecordName(ctx context.Context, name string) error {
	if _, err := s.runner.Run(ctx, "dscl", ".", "-change", s.recordPath(), AttrRecordName, s.record, name); err != nil {
		return &StoreError{Attribute: AttrRecordName, Record: s.record, Wrapped: err}
	}
	s.record = name
	return nil
}

// SetHomeDirectory writes the home-directory-pointer attribute.
func (s *DsclStore) SetHomeDirectory(ctx context.Context, path string) error {
	if _, err := s.runner.Run(ctx, "dscl", ".", "-create", s.recordPath(), AttrHomeDirectory, path); err != nil {
		return &StoreError{Attribute: AttrHomeDirectory, Record: s.record, Wrapped: err}
	}
	return nil
}

// Compile-time interface satisfaction check
var _ Store = (*DsclStore)(nil)
