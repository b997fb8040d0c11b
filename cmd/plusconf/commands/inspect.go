package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/plusconf/plusconf/pkg/engine"
)

func newInspectCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <location> [dir]",
		Short: "Show where the configs of a page come from",
		Long: `Show the value sources of every config of one page, in priority order.

The first source of a config wins, unless the config is cumulative. Each
source shows the environment its value lives in and where it is defined.`,
		Example: `  # Inspect the /pages/about page
  plusconf inspect /pages/about

  # Inspect a page of another project as JSON
  plusconf inspect /pages/blog ./site --json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := openProject(afero.NewOsFs(), flags, dirArg(args, 1))
			if err != nil {
				return err
			}
			defer p.close(ctx)

			result, err := p.newResolver(false).Resolve(ctx)
			if err != nil {
				return err
			}

			loc := "/" + strings.Trim(args[0], "/")
			page := result.Page(loc)
			if page == nil {
				return fmt.Errorf("no page is defined at %s", loc)
			}

			if flags.jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(page)
			}
			printPage(cmd.OutOrStdout(), page)
			return nil
		},
	}

	return cmd
}

func printPage(w io.Writer, page *engine.PageConfig) {
	fmt.Fprintf(w, "%s\n", page.LocationID)
	switch {
	case page.IsErrorPage:
		fmt.Fprintf(w, "  error page\n")
	case page.RouteFilesystem != nil:
		fmt.Fprintf(w, "  route %s (%s)\n", page.RouteFilesystem.RouteString, page.RouteFilesystem.DefinedBy)
	}

	names := make([]string, 0, len(page.Sources))
	for name := range page.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(w, "\n%s\n", name)
		if v, ok := page.Values[name]; ok {
			value, err := json.Marshal(v.Value)
			if err != nil {
				value = []byte(fmt.Sprintf("%v", v.Value))
			}
			fmt.Fprintf(w, "  value: %s\n", value)
		}
		for i, src := range page.Sources[name] {
			fmt.Fprintf(w, "  %d. [%s] %s\n", i+1, src.Env, describeSource(name, src))
		}
	}
}

func describeSource(name string, src *engine.ValueSource) string {
	desc := src.DefinedAtString(name, false)
	if src.IsImported {
		desc += " (imported)"
	}
	return desc
}
