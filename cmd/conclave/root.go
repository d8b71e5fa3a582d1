package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/rendis/conclave/internal/engine"
	"github.com/rendis/conclave/internal/logging"
	"github.com/rendis/conclave/internal/script"
	"github.com/rendis/conclave/internal/streaming"
	"github.com/rendis/conclave/pkg/schema"
)

// app carries the resolved configuration shared by every subcommand.
type app struct {
	cfg    Config
	level  *slog.LevelVar
	logger *slog.Logger
	stderr io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{level: new(slog.LevelVar), stderr: os.Stderr}

	root := &cobra.Command{
		Use:   "conclave",
		Short: "A scripted collaboration between three AI agents and a human referee",
		Long: `conclave plays a fixed dialogue in which claude, gemini and grok analyze a
task, split the work, debate an architecture question and ask you to break
the tie. Nothing calls a real model: the agents' lines come from a script.

Watch it in the browser (serve), the terminal (play) or drive it from an
MCP client (mcp).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.cfg = loadConfig()
			applyFlags(cmd.Flags(), &a.cfg)
			a.level.Set(logging.ParseLevel(a.cfg.LogLevel))
			a.logger = logging.NewLeveled(a.level, a.cfg.LogFormat, a.stderr)
			slog.SetDefault(a.logger)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
	pf.Float64("pace", 1, "delay multiplier for the scripted pauses (0 disables them)")
	pf.String("script", "", "path to a dialogue script (default: the embedded script)")

	root.AddCommand(
		newServeCmd(a),
		newPlayCmd(a),
		newMCPCmd(a),
		newDiagramCmd(a),
		newValidateCmd(a),
		newInstallCmd(a),
		newVersionCmd(),
	)
	return root
}

// loadScript returns the configured script, or the embedded one.
func (a *app) loadScript() (*schema.Script, error) {
	path, err := expandPath(a.cfg.Script)
	if err != nil {
		return nil, fmt.Errorf("expand script path: %w", err)
	}
	return script.Load(path)
}

// newSequencer builds a sequencer for the configured script, publishing to a
// fresh hub. logger overrides the app logger when non-nil.
func (a *app) newSequencer(logger *slog.Logger) (*engine.Sequencer, *streaming.MemoryHub, error) {
	s, err := a.loadScript()
	if err != nil {
		return nil, nil, err
	}
	if logger == nil {
		logger = a.logger
	}

	hub := streaming.NewMemoryHubWithBuffer(256)
	seq, err := engine.NewSequencer(s, engine.Config{
		Pace:   a.cfg.Pace,
		Hub:    hub,
		Logger: logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return seq, hub, nil
}

// scriptTitle returns the display title of a script.
func scriptTitle(s *schema.Script) string {
	if v, ok := s.Metadata["title"].(string); ok && v != "" {
		return v
	}
	return s.Name
}

// expandPath resolves a leading ~ in a user-supplied path.
func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	return homedir.Expand(path)
}
