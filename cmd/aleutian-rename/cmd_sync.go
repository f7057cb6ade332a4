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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianRename/cmd/aleutian-rename/config"
	"github.com/AleutianAI/AleutianRename/cmd/aleutian-rename/internal/identity"
	"github.com/AleutianAI/AleutianRename/cmd/aleutian-rename/internal/mdm"
	"github.com/AleutianAI/AleutianRename/cmd/aleutian-rename/internal/sysexec"
	"github.com/AleutianAI/AleutianRename/cmd/aleutian-rename/internal/sysfs"
	"github.com/AleutianAI/AleutianRename/pkg/logging"
	"github.com/AleutianAI/AleutianRename/pkg/ux"
)

// runSync loads configuration, wires the production collaborators,
// and hands control to the coordinator.
func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return failuref("load configuration: %w", err)
	}

	log, err := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "rename",
	})
	if err != nil {
		// logging.New returns a usable stderr logger alongside the
		// error; only the file sink is missing.
		log.Warn("file logging unavailable", "error", err)
	}
	defer log.Close()

	runner := sysexec.NewDefaultRunner()
	client := mdm.NewClient(mdm.ClientConfig{
		BaseURL:      cfg.Server.BaseURL,
		ClientID:     cfg.Server.ClientID,
		ClientSecret: cfg.Server.ClientSecret,
	})

	coordinator := NewCoordinator(
		CoordinatorConfig{
			HomeRoot:            cfg.Rename.HomeRoot,
			JournalDir:          cfg.Rename.JournalDir,
			RestartDelayMinutes: cfg.Rename.RestartDelayMinutes,
			DryRun:              dryRun,
			SerialOverride:      serialOverride,
		},
		NewHost(runner),
		client,
		func(login string) identity.Store { return identity.NewDsclStore(runner, login) },
		sysfs.NewOSFilesystem(),
		NewNotifier(log, nonInteractive),
		NewShutdownRestarter(runner),
		log,
		cmd.OutOrStdout(),
	)

	return coordinator.Run(cmd.Context())
}

// runInit writes the default configuration file.
func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil {
		return failuref("configuration already exists at %s", configPath)
	}
	if err := config.WriteDefault(configPath); err != nil {
		return failuref("write default configuration: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(),
		ux.IconSuccess.Render()+" wrote "+configPath)
	fmt.Fprintln(cmd.OutOrStdout(),
		ux.Styles.Muted.Render("set server.base_url and the client credentials before running sync"))
	return nil
}
