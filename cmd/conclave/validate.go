package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rendis/conclave/internal/script"
	"github.com/rendis/conclave/internal/validation"
	"github.com/rendis/conclave/pkg/schema"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [script]",
		Short: "Check a dialogue script",
		Long: `Validate a script against the script JSON Schema and the semantic rules
(one decision with two options, parseable pauses, compilable guards and
placeholders). Without an argument the configured script is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				s   *schema.Script
				err error
			)
			if len(args) == 1 {
				path, expErr := expandPath(args[0])
				if expErr != nil {
					return expErr
				}
				s, err = script.LoadFile(path)
			} else {
				s, err = a.loadScript()
			}
			if err != nil {
				return err
			}

			sv, err := validation.NewScriptValidator()
			if err != nil {
				return err
			}
			result := sv.Validate(s)

			w := cmd.OutOrStdout()
			fmt.Fprint(w, result.Report())
			if !result.Valid() {
				return schema.NewErrorf(schema.ErrCodeValidation, "script %q has %d error(s)", s.Name, len(result.Errors))
			}

			steps := 0
			for _, p := range s.Phases {
				steps += len(p.Steps)
			}
			fmt.Fprintf(w, "ok: %s (%d phases, %d steps)\n", s.Name, len(s.Phases), steps)
			return nil
		},
	}
}
