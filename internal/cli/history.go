/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"imgannotate/internal/storage"
)

var errNoJournal = errors.New("no journal configured (use --journal or storage.journal_path)")

func newHistoryCommand(g *globals) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [session]",
		Short: "List journal sessions, or the checkpoints of one session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := g.cfg.Storage.JournalPath
			if path == "" {
				return errNoJournal
			}
			j, err := storage.OpenJournal(path)
			if err != nil {
				return err
			}
			defer func() { _ = j.Close() }()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				sessions, err := j.Sessions(cmd.Context())
				if err != nil {
					return err
				}
				for _, s := range sessions {
					_, _ = fmt.Fprintln(out, s)
				}
				return nil
			}
			entries, err := j.List(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "SEQ\tTIME\tTYPE\tTARGET")
			for _, e := range entries {
				_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.Seq, e.TS.Local().Format(time.DateTime), e.Checkpoint.Type, e.Checkpoint.Target())
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of checkpoints to list")
	return cmd
}
