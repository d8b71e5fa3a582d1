package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/conclave/internal/logging"
	"github.com/rendis/conclave/internal/tui"
)

func newPlayCmd(a *app) *cobra.Command {
	var (
		task      string
		export    string
		logFile   string
		altScreen bool
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Watch the collaboration in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// The TUI owns the terminal; logs go to --log-file or nowhere.
			logger := logging.Discard()
			if logFile != "" {
				path, err := expandPath(logFile)
				if err != nil {
					return err
				}
				f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer f.Close()
				logger = logging.NewLeveled(a.level, a.cfg.LogFormat, f)
			}

			seq, hub, err := a.newSequencer(logger)
			if err != nil {
				return err
			}
			defer seq.Close()

			state, runErr := tui.Run(cmd.Context(), seq, hub, tui.Options{
				Title:     scriptTitle(seq.Script()),
				Task:      task,
				AltScreen: altScreen,
			})
			if runErr != nil {
				return runErr
			}

			if export == "" {
				return nil
			}
			path, err := expandPath(export)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(state, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal run state: %w", err)
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run state written to %s\n", path)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&task, "task", "", "submit this task immediately instead of prompting")
	f.StringVar(&export, "export", "", "write the final run state as JSON to this file")
	f.StringVar(&logFile, "log-file", "", "append logs to this file")
	f.BoolVar(&altScreen, "alt-screen", false, "use the terminal's alternate screen")
	return cmd
}
