package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/plusconf/plusconf/pkg/config"
	"github.com/plusconf/plusconf/pkg/engine"
	"github.com/plusconf/plusconf/pkg/resolver"
	"github.com/plusconf/plusconf/pkg/telemetry"
	"github.com/plusconf/plusconf/pkg/watch"
)

func newWatchCommand(flags *globalFlags) *cobra.Command {
	var (
		metricsAddr string
		noStore     bool
	)

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Resolve the configuration and reload it on every change",
		Long: `Resolve the configuration, then watch the project and resolve it again
whenever a plus file, a loaded dependency or the settings file changes.

An invalid configuration is reported but does not stop the watcher. Every
pass is recorded in the pass history database, so that the last valid
configuration stays available (see 'plusconf history').`,
		Example: `  # Watch the project in the current directory
  plusconf watch

  # Expose Prometheus metrics while watching
  plusconf watch ./site --metrics-addr :9464`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := openProject(afero.NewOsFs(), flags, dirArg(args, 0), func(s *config.Settings) {
				if metricsAddr != "" {
					s.Telemetry.Metrics.Enabled = true
					s.Telemetry.Metrics.ListenAddress = metricsAddr
				}
				if noStore {
					s.Store.Path = ""
				}
			})
			if err != nil {
				return err
			}
			defer p.close(context.Background())
			logger := p.tel.Logger.NewComponentLogger("cli")

			if err := p.tel.Metrics.StartMetricsServer(func(err error) {
				logger.WithError(err).Error("metrics server failed")
			}); err != nil {
				return fmt.Errorf("failed to start metrics server: %w", err)
			}

			opts := resolver.ReloaderOptions{
				Interactive: true,
				OnRestart: func() {
					logger.Warn("the configuration was invalid at startup: restart to apply it everywhere")
				},
			}
			store, err := p.openStore(ctx)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
				opts.Recorder = store
				if retention := p.settings.Store.Retention; retention > 0 {
					if n, err := store.DeletePassesBefore(ctx, time.Now().Add(-retention)); err != nil {
						logger.WithError(err).Warn("failed to prune pass history")
					} else if n > 0 {
						logger.Debugf("pruned %d pass(es) from history", n)
					}
				}
			}

			p.tel.Events.Subscribe(func(e telemetry.Event) {
				fmt.Fprintln(cmd.OutOrStdout(), e.Message)
			}, telemetry.FilterByType(
				telemetry.EventTypePassCompleted,
				telemetry.EventTypeConfigRecovered,
				telemetry.EventTypeRestartRequired,
			))

			rl := resolver.NewReloader(p.newResolver(true), opts)
			result, err := rl.Get(ctx)
			if err != nil {
				return err
			}

			var files []string
			if p.settingsFile != "" {
				files = append(files, p.settingsFile)
			}
			w := watch.New(rl, watch.Options{
				Root:     p.root,
				Ignore:   p.settings.Ignore,
				Files:    files,
				Debounce: p.settings.Watch.Debounce,
				Logger:   p.tel.Logger,
				OnReload: func(result *engine.Result, err error) {
					if err != nil {
						logger.WithError(err).Error("reload failed")
					}
				},
			})
			w.Track(result.Dependencies)

			return w.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "do not record passes")

	return cmd
}
