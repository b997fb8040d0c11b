package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/plusconf/plusconf/pkg/engine"
)

// validationReport is the JSON output of the validate command.
type validationReport struct {
	Valid    bool             `json:"valid"`
	Pages    int              `json:"pages"`
	Warnings []engine.Warning `json:"warnings,omitempty"`
	Error    *engine.Error    `json:"error,omitempty"`
}

func newValidateCommand(flags *globalFlags) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate [dir]",
		Short: "Validate the plus files of a project",
		Long: `Validate the plus files of a project by running one resolution pass.

This command checks:
  - Plus file syntax (Starlark, CUE, YAML, JSON)
  - Unknown configs and meta definitions
  - Extends, imports and config environments
  - Global config placement

Warnings are printed. The command fails on usage and load errors, and
on warnings too with --strict.`,
		Example: `  # Validate the project in the current directory
  plusconf validate

  # Treat warnings as errors
  plusconf validate --strict ./site`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := openProject(afero.NewOsFs(), flags, dirArg(args, 0))
			if err != nil {
				return err
			}
			defer p.close(ctx)

			result, passErr := p.newResolver(false).Resolve(ctx)
			report := validationReport{Valid: passErr == nil}
			if result != nil {
				report.Pages = len(result.Pages)
				report.Warnings = result.Warnings
			}
			if passErr != nil {
				var perr *engine.Error
				if !errors.As(passErr, &perr) {
					return passErr
				}
				report.Error = perr
			}

			out := cmd.OutOrStdout()
			if flags.jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				for _, w := range report.Warnings {
					fmt.Fprintf(out, "warning: %s\n", w.Message)
				}
				if report.Valid {
					fmt.Fprintf(out, "%d page(s), configuration is valid\n", report.Pages)
				}
			}

			if passErr != nil {
				return passErr
			}
			if strict && len(report.Warnings) > 0 {
				return fmt.Errorf("%d warning(s) in strict mode", len(report.Warnings))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "fail on warnings")

	return cmd
}
