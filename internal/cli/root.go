/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package cli implements the annotate command line: document creation,
// inspection, global transforms and replay of scripted gestures.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"imgannotate/internal/config"
	"imgannotate/internal/crash"
	applog "imgannotate/internal/log"
	"imgannotate/internal/version"
)

// globals holds the persistent flags and the configuration they resolve to.
type globals struct {
	configPath string
	journal    string
	debug      bool

	cfg     config.AppConfig
	session *crash.Session
}

// NewRootCommand creates the annotate root command. session, if not nil,
// is pointed at the open document so that a crash can autosave it.
func NewRootCommand(session *crash.Session) *cobra.Command {
	g := &globals{cfg: config.Defaults(), session: session}
	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Annotate images with shapes, arrows and text",
		Long: `annotate edits annotation documents: objects laid over an image together with
the global rotation, fit and crop of the view. Gestures can be scripted in YAML
and replayed against a document.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Config file (default: per-user config.yaml)")
	cmd.PersistentFlags().StringVar(&g.journal, "journal", "", "SQLite checkpoint journal (overrides storage.journal_path)")
	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newVersionCommand())
	cmd.AddCommand(newNewCommand(g))
	cmd.AddCommand(newInspectCommand(g))
	cmd.AddCommand(newRotateCommand(g))
	cmd.AddCommand(newFitCommand(g))
	cmd.AddCommand(newCropCommand(g))
	cmd.AddCommand(newDeleteCommand(g))
	cmd.AddCommand(newReplayCommand(g))
	cmd.AddCommand(newHistoryCommand(g))
	return cmd
}

// setup loads the configuration and re-initializes logging from it.
func (g *globals) setup(cmd *cobra.Command) error {
	var (
		cfg config.AppConfig
		err error
	)
	if g.configPath != "" {
		cfg, err = config.LoadFile(g.configPath)
	} else {
		cfg, err = config.Load()
	}
	g.cfg = cfg
	if g.journal != "" {
		g.cfg.Storage.JournalPath = g.journal
	}
	opts := g.cfg.LogOptions()
	if g.debug {
		opts.Level = "debug"
	}
	opts.Writer = cmd.ErrOrStderr()
	applog.Init(opts)
	if err != nil {
		// defaults and overrides that did parse are still usable
		applog.WithComponent("cli").Warn("config problem, continuing with defaults", slog.Any("err", err))
	}
	return nil
}

func (g *globals) logger() *slog.Logger { return applog.WithComponent("cli") }

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "annotate %s\n", version.String())
			return err
		},
	}
}
