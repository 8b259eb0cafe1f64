package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tableflip.dev/tock/pkg/notify"
	"tableflip.dev/tock/pkg/printers"
	"tableflip.dev/tock/pkg/runner/watch"
)

func addWatch(topLevel *cobra.Command) {
	quiet := false

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the clock and remind you when a window closes",
		Long: `Watch prints every change of the logging state and rings the terminal when a
window closes or its late grace is about to run out. Reminders only fire within
the configured notify.start and notify.end hours. Entries logged from another
terminal are picked up as they are written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			w := watch.Watch{
				App:     e.App,
				Hours:   e.Config.Hours,
				Printer: &printers.PrettyPrint{Out: cmd.OutOrStdout()},
				Logger:  e.Logger,
			}
			if !quiet {
				w.Notifier = notify.NewTimer(notify.Terminal(cmd.OutOrStdout()))
			}
			return w.Do(ctx)
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print state changes without reminders.")

	topLevel.AddCommand(cmd)
}
