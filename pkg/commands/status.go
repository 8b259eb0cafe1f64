package commands

import (
	"time"

	"github.com/spf13/cobra"

	"tableflip.dev/tock/pkg/commands/options"
	"tableflip.dev/tock/pkg/runner/status"
)

func addStatus(topLevel *cobra.Command) {
	so := &options.SinceOptions{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the logging state, the window to log and missed windows",
		Example: `
tock status
tock status --since 8h --json
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			e, err := loadEnv(cmd)
			if err != nil {
				return oo.HandleError(err)
			}
			defer e.Close()

			since, err := so.GetSince(time.Now())
			if err != nil {
				return oo.HandleError(err)
			}
			s := status.Status{
				App:   e.App,
				Since: since,
				JSON:  oo.JSON,
				Out:   cmd.OutOrStdout(),
			}
			return oo.HandleError(s.Do(cmd.Context()))
		},
	}

	options.AddSinceArg(cmd, so, "Only count missed windows since a lookback such as 8h or a date such as 3/2.")
	options.AddOutputArg(cmd, oo)

	topLevel.AddCommand(cmd)
}

func addMissed(topLevel *cobra.Command) {
	so := &options.SinceOptions{}
	last := 0

	cmd := &cobra.Command{
		Use:   "missed",
		Short: "List windows that ended without an entry",
		Example: `
tock missed
tock missed --since 1d
tock missed --last 5
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			e, err := loadEnv(cmd)
			if err != nil {
				return oo.HandleError(err)
			}
			defer e.Close()

			since, err := so.GetSince(time.Now())
			if err != nil {
				return oo.HandleError(err)
			}
			m := status.Missed{
				App:   e.App,
				Since: since,
				Last:  last,
				JSON:  oo.JSON,
				Out:   cmd.OutOrStdout(),
			}
			return oo.HandleError(m.Do(cmd.Context()))
		},
	}

	options.AddSinceArg(cmd, so, "Start from a lookback such as 1d or a date such as 3/2. Defaults to the first entry.")
	cmd.Flags().IntVar(&last, "last", 0, "Show only the newest N windows.")
	options.AddOutputArg(cmd, oo)

	topLevel.AddCommand(cmd)
}
