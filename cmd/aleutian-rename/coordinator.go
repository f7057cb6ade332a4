// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/AleutianAI/AleutianRename/cmd/aleutian-rename/internal/identity"
	"github.com/AleutianAI/AleutianRename/cmd/aleutian-rename/internal/mdm"
	"github.com/AleutianAI/AleutianRename/cmd/aleutian-rename/internal/rename"
	"github.com/AleutianAI/AleutianRename/cmd/aleutian-rename/internal/sysfs"
	"github.com/AleutianAI/AleutianRename/pkg/logging"
	"github.com/AleutianAI/AleutianRename/pkg/ux"
)

// AssignmentProvider is the canonical source of target identities.
type AssignmentProvider interface {
	// Assignment returns the identity assigned to the given hardware
	// serial. Returns an error wrapping mdm.ErrNoAssignment when the
	// host has no record.
	Assignment(ctx context.Context, serial string) (mdm.Assignment, error)

	// Resync asks the server to refresh its inventory for the host.
	Resync(ctx context.Context, serial string) error
}

// CoordinatorConfig carries the run parameters the coordinator needs.
type CoordinatorConfig struct {
	// HomeRoot is the directory holding user homes.
	HomeRoot string

	// JournalDir is where per-run recovery journals are written.
	JournalDir string

	// RestartDelayMinutes is the reboot delay after a committed run.
	RestartDelayMinutes int

	// DryRun prints the step plan and exits without mutating anything.
	DryRun bool

	// SerialOverride bypasses the hardware serial lookup when set.
	SerialOverride string
}

// Coordinator drives one reconciliation run end to end.
//
// # Description
//
// One run: resolve the host serial and console user, fetch the
// canonical identity assignment, snapshot the local account, and
// decide. If the login name already matches the assignment the run is
// a no-op with zero writes. Otherwise the operator is warned (blocking
// acknowledgment, no cancel path), the four-step rename transaction
// runs with a persisted journal, and on full commit the compatibility
// symlink, inventory resync, and scheduled restart follow. A
// rolled-back or rollback-failed transaction is presented to the
// operator and surfaces as exit code 1.
//
// # Thread Safety
//
// Not safe for concurrent use. One coordinator per process invocation.
type Coordinator struct {
	cfg       CoordinatorConfig
	host      HostInfo
	provider  AssignmentProvider
	storeFor  func(login string) identity.Store
	fs        sysfs.Filesystem
	notifier  Notifier
	restarter Restarter
	log       *logging.Logger
	out       io.Writer
}

// NewCoordinator wires a coordinator from its collaborators.
func NewCoordinator(
	cfg CoordinatorConfig,
	host HostInfo,
	provider AssignmentProvider,
	storeFor func(login string) identity.Store,
	fs sysfs.Filesystem,
	notifier Notifier,
	restarter Restarter,
	log *logging.Logger,
	out io.Writer,
) *Coordinator {
	if log == nil {
		log = logging.Default()
	}
	if out == nil {
		out = io.Discard
	}
	return &Coordinator{
		cfg:       cfg,
		host:      host,
		provider:  provider,
		storeFor:  storeFor,
		fs:        fs,
		notifier:  notifier,
		restarter: restarter,
		log:       log,
		out:       out,
	}
}

// Run executes one reconciliation.
//
// Returns nil when no mutation was needed or the rename fully
// committed; returns a RunError with code 1 on every fatal path.
func (c *Coordinator) Run(ctx context.Context) error {
	serial := c.cfg.SerialOverride
	if serial == "" {
		var err error
		serial, err = c.host.Serial(ctx)
		if err != nil {
			return c.fatal(ctx, fmt.Errorf("determine hardware serial: %w", err))
		}
	}
	log := c.log.With("serial", serial)

	login, err := c.host.ConsoleUser(ctx)
	if err != nil {
		return c.fatal(ctx, fmt.Errorf("determine console user: %w", err))
	}

	assignment, err := c.provider.Assignment(ctx, serial)
	if err != nil {
		if errors.Is(err, mdm.ErrNoAssignment) {
			return c.fatal(ctx, fmt.Errorf("this host has no identity assignment: %w", err))
		}
		return c.fatal(ctx, fmt.Errorf("fetch identity assignment: %w", err))
	}

	store := c.storeFor(login)
	acct, err := store.ReadAccount(ctx)
	if err != nil {
		return c.fatal(ctx, fmt.Errorf("read local account %q: %w", login, err))
	}
	snap := identity.SnapshotFrom(login, acct)

	if snap.LoginName == assignment.LoginName {
		log.Info("account already matches assignment, nothing to do",
			"login", snap.LoginName)
		fmt.Fprintln(c.out, ux.IconSuccess.Render()+" account "+snap.LoginName+" already matches its assignment")
		return nil
	}

	target := rename.Target{
		LoginName:   assignment.LoginName,
		DisplayName: assignment.DisplayName,
	}
	newHome := target.HomePath(c.cfg.HomeRoot)
	log.Info("rename required",
		"from", snap.LoginName, "to", target.LoginName,
		"old_home", snap.HomePath, "new_home", newHome)

	if c.cfg.DryRun {
		c.printPlan(snap, target, newHome)
		return nil
	}

	if err := c.notifier.WarnBeforeChange(ctx, snap.LoginName, target.LoginName); err != nil {
		// The warning is a courtesy, not a gate.
		log.Warn("operator warning not delivered", "error", err)
	}

	journal := c.openJournal(serial, snap, target, newHome)
	txConfig := rename.Config{
		Logger:        c.log,
		OnCommitted:   c.journalCommit(journal),
		OnCompensated: c.journalCompensate(journal),
	}

	steps := rename.BuildSteps(snap, target, store, c.fs, c.cfg.HomeRoot)
	res := rename.NewTransaction(txConfig, steps...).Run(ctx)
	if journal != nil {
		if err := journal.Finish(res); err != nil {
			log.Error("journal write failed", "error", err)
		}
	}

	switch res.State {
	case rename.StateCommitted:
		c.afterCommit(ctx, log, serial, snap, newHome)
		fmt.Fprintln(c.out, ux.IconSuccess.Render()+" account renamed, restart scheduled")
		return nil

	case rename.StateRolledBack:
		msg := fmt.Sprintf("The rename of %q could not be completed and every change was undone. The account is unchanged.", snap.LoginName)
		if errors.Is(res.CommitErr, rename.ErrHomeCollision) {
			msg = fmt.Sprintf("The rename of %q was not started: %s already exists. The account is unchanged.", snap.LoginName, newHome)
		}
		c.notifyFailure(ctx, msg)
		return &RunError{Code: 1, Err: res.Err()}

	case rename.StateRollbackFailed:
		msg := fmt.Sprintf(
			"The rename of %q failed AND could not be fully undone. The account is in an inconsistent state and needs manual repair.",
			snap.LoginName)
		if journal != nil {
			msg += " Recovery record: " + journal.Path()
		}
		c.notifyFailure(ctx, msg)
		return &RunError{Code: 1, Err: res.Err()}

	default:
		return &RunError{Code: 1, Err: res.Err()}
	}
}

// afterCommit runs the post-success side effects. None of them can
// fail the run: the account mutation is already durable.
func (c *Coordinator) afterCommit(ctx context.Context, log *logging.Logger, serial string, snap identity.Snapshot, newHome string) {
	linker := rename.NewLinker(c.fs, c.log)
	if err := linker.Link(snap.HomePath, newHome); err != nil {
		log.Warn("compatibility symlink not created", "error", err)
	}

	if err := c.provider.Resync(ctx, serial); err != nil {
		log.Error("inventory resync failed", "error", err)
	}

	if err := c.restarter.Schedule(ctx, c.cfg.RestartDelayMinutes); err != nil {
		log.Error("restart not scheduled", "error", err)
	}
}

// printPlan renders the dry-run step plan without touching anything.
func (c *Coordinator) printPlan(snap identity.Snapshot, target rename.Target, newHome string) {
	fmt.Fprintln(c.out, ux.Styles.Title.Render("Rename plan (dry run)"))
	fmt.Fprintln(c.out, ux.RenameSummary(snap.LoginName, target.LoginName, snap.DisplayName, target.DisplayName))
	fmt.Fprintf(c.out, "%s home directory %s %s %s\n",
		ux.IconBullet.Render(), snap.HomePath, ux.IconArrow.Render(), newHome)
	fmt.Fprintln(c.out, ux.Styles.Muted.Render("steps: "+
		rename.StepMoveHome+", "+rename.StepSetDisplayName+", "+
		rename.StepSetRecordKey+", "+rename.StepSetHomeAttribute))
	fmt.Fprintln(c.out, ux.Styles.Muted.Render("no changes made"))
}

// openJournal creates the run journal, or nil when persistence is
// unavailable. Losing the journal is logged but never blocks a run.
func (c *Coordinator) openJournal(serial string, snap identity.Snapshot, target rename.Target, newHome string) *rename.Journal {
	journal, err := rename.NewJournal(c.cfg.JournalDir, serial,
		rename.JournalIdentity{LoginName: snap.LoginName, HomePath: snap.HomePath},
		rename.JournalIdentity{LoginName: target.LoginName, HomePath: newHome})
	if err != nil {
		c.log.Error("run journal unavailable, continuing without persisted recovery state",
			"dir", c.cfg.JournalDir, "error", err)
		return nil
	}
	return journal
}

func (c *Coordinator) journalCommit(journal *rename.Journal) func(step string) {
	if journal == nil {
		return nil
	}
	return func(step string) {
		if err := journal.StepCommitted(step); err != nil {
			c.log.Error("journal write failed", "step", step, "error", err)
		}
	}
}

func (c *Coordinator) journalCompensate(journal *rename.Journal) func(step string, err error) {
	if journal == nil {
		return nil
	}
	return func(step string, stepErr error) {
		if err := journal.StepCompensated(step, stepErr); err != nil {
			c.log.Error("journal write failed", "step", step, "error", err)
		}
	}
}

// fatal logs and presents a pre-transaction failure. Nothing was
// mutated on these paths.
func (c *Coordinator) fatal(ctx context.Context, err error) error {
	c.log.Error("run aborted before any mutation", "error", err)
	c.notifyFailure(ctx, "Account reconciliation failed: "+err.Error())
	return &RunError{Code: 1, Err: err}
}

func (c *Coordinator) notifyFailure(ctx context.Context, message string) {
	if err := c.notifier.NotifyFailure(ctx, message); err != nil {
		c.log.Error("failure notification not delivered", "error", err)
	}
}
