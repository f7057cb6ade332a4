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
	"errors"
	"testing"

	"github.com/AleutianAI/AleutianRename/cmd/aleutian-rename/internal/sysexec"
)

func TestDsclStore_ReadAccount(t *testing.T) {
	mock := sysexec.NewMockRunner()
	mock.Script("dscl . -read /Users/jdoe RecordName", []byte("RecordName: jdoe\n"), nil)
	mock.Script("dscl . -read /Users/jdoe RealName", []byte("RealName:\n J Doe\n"), nil)
	mock.Script("dscl . -read /Users/jdoe NFSHomeDirectory", []byte("NFSHomeDirectory: /Users/jdoe\n"), nil)

	store := NewDsclStore(mock, "jdoe")
	acct, err := store.ReadAccount(context.Background())
	if err != nil {
		t.Fatalf("ReadAccount() unexpected error: %v", err)
	}

	want := Account{RecordName: "jdoe", RealName: "J Doe", HomeDirectory: "/Users/jdoe"}
	if acct != want {
		t.Errorf("ReadAccount() = %+v, want %+v", acct, want)
	}
}

func TestDsclStore_WriteCommandShapes(t *testing.T) {
	mock := sysexec.NewMockRunner()
	store := NewDsclStore(mock, "jdoe")
	ctx := context.Background()

	if err := store.SetRealName(ctx, "Jane Smith"); err != nil {
		t.Fatalf("SetRealName() unexpected error: %v", err)
	}
	if err := store.SetRecordName(ctx, "jsmith"); err != nil {
		t.Fatalf("SetRecordName() unexpected error: %v", err)
	}
	if err := store.SetHomeDirectory(ctx, "/Users/jsmith"); err != nil {
		t.Fatalf("SetHomeDirectory() unexpected error: %v", err)
	}

	calls := mock.Calls()
	if len(calls) != 3 {
		t.Fatalf("Calls() len = %d, want 3", len(calls))
	}
	wantLines := []string{
		"dscl . -create /Users/jdoe RealName Jane Smith",
		"dscl . -change /Users/jdoe RecordName jdoe jsmith",
		// After the record key change, the record is addressed under
		// its new name.
		"dscl . -create /Users/jsmith NFSHomeDirectory /Users/jsmith",
	}
	for i, want := range wantLines {
		if got := calls[i].String(); got != want {
			t.Errorf("call %d = %q, want %q", i, got, want)
		}
	}
}

func TestDsclStore_WriteFailureWrapsStoreError(t *testing.T) {
	mock := sysexec.NewMockRunner()
	underlying := errors.New("eDSPermissionError")
	mock.Script("dscl . -create /Users/jdoe RealName Jane Smith", nil, underlying)

	store := NewDsclStore(mock, "jdoe")
	err := store.SetRealName(context.Background(), "Jane Smith")
	if err == nil {
		t.Fatal("SetRealName() expected error")
	}

	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("error %v is not a *StoreError", err)
	}
	if storeErr.Attribute != "RealName" || storeErr.Record != "jdoe" {
		t.Errorf("StoreError = %+v, want RealName on jdoe", storeErr)
	}
	if !errors.Is(err, underlying) {
		t.Error("StoreError must unwrap to the underlying command error")
	}
}

func TestDsclStore_FailedRecordNameChangeKeepsOldKey(t *testing.T) {
	mock := sysexec.NewMockRunner()
	mock.Script("dscl . -change /Users/jdoe RecordName jdoe jsmith", nil, errors.New("eDSRecordAlreadyExists"))

	store := NewDsclStore(mock, "jdoe")
	ctx := context.Background()

	if err := store.SetRecordName(ctx, "jsmith"); err == nil {
		t.Fatal("SetRecordName() expected error")
	}

	// Subsequent writes must still address the old record name.
	if err := store.SetRealName(ctx, "J Doe"); err != nil {
		t.Fatalf("SetRealName() unexpected error: %v", err)
	}
	calls := mock.Calls()
	last := calls[len(calls)-1].String()
	if want := "dscl . -create /Users/jdoe RealName J Doe"; last != want {
		t.Errorf("last call = %q, want %q", last, want)
	}
}

func TestParseDsclValue(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		attr    string
		want    string
		wantErr bool
	}{
		{"inline value", "RecordName: jdoe\n", "RecordName", "jdoe", false},
		{"indented value", "RealName:\n Jane Smith\n", "RealName", "Jane Smith", false},
		{"missing attribute", "UniqueID: 501\n", "RealName", "", true},
		{"other attributes present", "AppleMetaNodeLocation: /Local/Default\nNFSHomeDirectory: /Users/jdoe\n", "NFSHomeDirectory", "/Users/jdoe", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDsclValue(tt.output, tt.attr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDsclValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseDsclValue() = %q, want %q", got, tt.want)
			}
		})
	}
}
