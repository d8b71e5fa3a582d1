package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/conclave/internal/diagram"
	"github.com/rendis/conclave/pkg/schema"
)

func newDiagramCmd(a *app) *cobra.Command {
	var (
		format    string
		out       string
		bin       string
		statePath string
	)

	cmd := &cobra.Command{
		Use:   "diagram",
		Short: "Draw the dialogue script",
		Long: `Draw the script as a flowchart: one node per step, a gate for the
decision and one node per option. --state overlays the progress recorded in
a run state exported by "conclave play --export".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.loadScript()
			if err != nil {
				return err
			}

			var state *schema.RunState
			if statePath != "" {
				state, err = readRunState(statePath)
				if err != nil {
					return err
				}
			}

			model, err := diagram.Build(s, state)
			if err != nil {
				return err
			}

			var data []byte
			switch format {
			case "mermaid":
				data = []byte(diagram.RenderMermaid(model))
			case "ascii":
				data = []byte(diagram.RenderASCIIAuto(cmd.Context(), model, bin))
			case "png", "svg", "dot":
				if format == "png" && out == "" {
					return fmt.Errorf("png output needs --out")
				}
				data, err = diagram.RenderImage(cmd.Context(), model, diagram.Format(format))
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown format %q: want mermaid, ascii, png, svg or dot", format)
			}

			if out == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			path, err := expandPath(out)
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Diagram written to %s\n", path)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&format, "format", "mermaid", "output format: mermaid, ascii, png, svg, dot")
	f.StringVarP(&out, "out", "o", "", "write to this file instead of stdout")
	f.StringVar(&bin, "bin-dir", binDir(), "directory holding the mermaid-ascii binary")
	f.StringVar(&statePath, "state", "", "run state JSON to overlay")
	return cmd
}

func readRunState(path string) (*schema.RunState, error) {
	expanded, err := expandPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("read run state: %w", err)
	}
	var state schema.RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode run state %s: %w", path, err)
	}
	return &state, nil
}
