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
	"sync"
)

// Write records one mutating call on a MemStore.
type Write struct {
	Attribute string
	Value     string
}

// MemStore implements Store in memory for tests.
//
// # Description
//
// Holds a single account record. Individual writes can be scripted to
// fail (by attribute name, with a countdown so a first write can
// succeed and its rollback counterpart fail). Every successful write
// is logged for ordering assertions.
type MemStore struct {
	mu      sync.Mutex
	acct    Account
	writes  []Write
	failOn  map[string]error
	failAt  map[string]int // number of successful writes to allow first
	reads   int
}

// NewMemStore creates a MemStore holding the given account.
func NewMemStore(acct Account) *MemStore {
	return &MemStore{
		acct:   acct,
		failOn: make(map[string]error),
		failAt: make(map[string]int),
	}
}

// FailWrite scripts every write of the given attribute to fail.
func (m *MemStore) FailWrite(attribute string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[attribute] = err
	m.failAt[attribute] = 0
}

// FailWriteAfter scripts writes of the attribute to fail after n
// successful writes of it. FailWriteAfter("RealName", 1) lets the
// forward write succeed and makes its compensation fail.
func (m *MemStore) FailWriteAfter(attribute string, n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[attribute] = err
	m.failAt[attribute] = n
}

// ReadAccount returns the current account state.
func (m *MemStore) ReadAccount(ctx context.Context) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	return m.acct, nil
}

// write applies one attribute write, honoring scripted failures.
func (m *MemStore) write(attribute, value string, apply func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failOn[attribute]; ok {
		if m.failAt[attribute] <= 0 {
			return &StoreError{Attribute: attribute, Record: m.acct.RecordName, Wrapped: err}
		}
		m.failAt[attribute]--
	}

	apply()
	m.writes = append(m.writes, Write{Attribute: attribute, Value: value})
	return nil
}

// SetRealName writes the display-name attribute.
func (m *MemStore) SetRealName(ctx context.Context, name string) error {
	return m.write(AttrRealName, name, func() { m.acct.RealName = name })
}

// SetRecordName rewrites the record key.
func (m *MemStore) SetRecordName(ctx context.Context, name string) error {
	return m.write(AttrRecordName, name, func() { m.acct.RecordName = name })
}

// SetHomeDirectory writes the home-directory-pointer attribute.
func (m *MemStore) SetHomeDirectory(ctx context.Context, path string) error {
	return m.write(AttrHomeDirectory, path, func() { m.acct.HomeDirectory = path })
}

// Account returns the current account state without counting as a read.
func (m *MemStore) Account() Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acct
}

// Writes returns a copy of all successful writes in order.
func (m *MemStore) Writes() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Write, len(m.writes))
	copy(out, m.writes)
	return out
}

// Reads returns how many times ReadAccount was called.
func (m *MemStore) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Compile-time interface satisfaction check
var _ Store = (*MemStore)(nil)
