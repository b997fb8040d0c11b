package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/plusconf/plusconf/pkg/engine"
)

func newResolveCommand(flags *globalFlags) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "resolve [dir]",
		Short: "Resolve the configuration of every page",
		Long: `Run one resolution pass and print the resolved configuration.

The output lists every page with its route, the ordered value sources of
each config and the final config values, followed by the global configs.
Any usage or load error aborts the pass.`,
		Example: `  # Resolve the project in the current directory
  plusconf resolve

  # Print YAML instead of JSON
  plusconf resolve ./site -o yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.jsonOutput {
				output = "json"
			}
			if output != "json" && output != "yaml" {
				return fmt.Errorf("invalid output format %q (must be 'json' or 'yaml')", output)
			}

			ctx := cmd.Context()
			p, err := openProject(afero.NewOsFs(), flags, dirArg(args, 0))
			if err != nil {
				return err
			}
			defer p.close(ctx)

			result, err := p.newResolver(false).Resolve(ctx)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), result, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format (json, yaml)")

	return cmd
}

func writeResult(w io.Writer, result *engine.Result, format string) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}
