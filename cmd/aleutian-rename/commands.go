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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianRename/cmd/aleutian-rename/config"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// --- Global Command Variables ---
var (
	configPath     string
	dryRun         bool
	nonInteractive bool
	serialOverride string

	rootCmd = &cobra.Command{
		Use:   "aleutian-rename",
		Short: "Reconcile the local account with its assigned identity",
		Long: `aleutian-rename compares the console user's local account with the
identity assigned to this hardware on the management server and, when
they differ, renames the account in a single all-or-nothing pass:
home directory, display name, record key, and home attribute.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Fetch the assigned identity and rename the account if needed",
		RunE:  runSync, // Defined in cmd_sync.go
	}

	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE:  runInit, // Defined in cmd_sync.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the tool version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("aleutian-rename " + version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath,
		"path to the configuration file")

	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false,
		"print the rename plan without changing anything")
	syncCmd.Flags().BoolVar(&nonInteractive, "non-interactive", false,
		"never prompt; log the operator warning and proceed")
	syncCmd.Flags().StringVar(&serialOverride, "serial", "",
		"hardware serial to use instead of reading the platform registry")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}
