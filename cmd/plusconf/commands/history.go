package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/plusconf/plusconf/pkg/stores"
)

func newHistoryCommand(flags *globalFlags) *cobra.Command {
	var (
		limit      int
		failedOnly bool
	)

	cmd := &cobra.Command{
		Use:   "history [dir]",
		Short: "List recorded resolution passes",
		Long:  `List the resolution passes recorded by 'plusconf watch', most recent first.`,
		Example: `  # Show the last 20 passes
  plusconf history

  # Show failed passes only
  plusconf history --failed`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := openProject(afero.NewOsFs(), flags, dirArg(args, 0))
			if err != nil {
				return err
			}
			defer p.close(ctx)

			store, err := p.openStore(ctx)
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("the pass history is disabled (store.path is empty)")
			}
			defer store.Close()

			var status *stores.PassStatus
			if failedOnly {
				failed := stores.PassStatusFailed
				status = &failed
			}
			passes, err := store.ListPasses(ctx, status, limit, 0)
			if err != nil {
				return err
			}

			if flags.jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(passes)
			}
			printPasses(cmd.OutOrStdout(), passes)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of passes to list")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "list failed passes only")

	return cmd
}

func printPasses(w io.Writer, passes []*stores.Pass) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PASS\tSTARTED\tSTATUS\tPAGES\tWARNINGS\tDURATION\tERROR")
	for _, p := range passes {
		errMsg := ""
		if p.Error != nil {
			errMsg = *p.Error
			if p.ErrorCode != nil {
				errMsg = *p.ErrorCode + ": " + errMsg
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			p.ID,
			p.StartedAt.Local().Format(time.DateTime),
			p.Status,
			p.PageCount,
			p.WarningCount,
			(time.Duration(p.DurationMS) * time.Millisecond).String(),
			errMsg,
		)
	}
	_ = tw.Flush()
}
