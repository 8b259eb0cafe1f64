package commands

import (
	"time"

	"github.com/spf13/cobra"

	"tableflip.dev/tock/pkg/commands/options"
	"tableflip.dev/tock/pkg/runner/list"
	"tableflip.dev/tock/pkg/timeutil"
)

func addList(topLevel *cobra.Command) {
	so := &options.SinceOptions{}
	ido := &options.IDOptions{}
	tag := ""

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journal entries",
		Example: `
tock list
tock list --since 1d --show-id
tock list --tag review --json
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
			l := list.List{
				App:    e.App,
				Since:  since,
				Tag:    tag,
				ShowID: ido.ShowID,
				JSON:   oo.JSON,
				Out:    cmd.OutOrStdout(),
			}
			return oo.HandleError(l.Do(cmd.Context()))
		},
	}

	options.AddSinceArg(cmd, so, "Only entries since a lookback such as 1d or a date such as 3/2.")
	options.AddShowIDArgs(cmd, ido)
	cmd.Flags().StringVar(&tag, "tag", "", "Only entries with this tag.")
	options.AddOutputArg(cmd, oo)

	topLevel.AddCommand(cmd)
}

func addSummary(topLevel *cobra.Command) {
	var last string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show logged and missed windows per day",
		Long: `Summary counts logged and missed windows for each day within the look-back.

Examples:
  tock summary
  tock summary --last 3d
  tock summary --last 1w2d`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			duration, _, err := timeutil.ParseLookback(last)
			if err != nil {
				return oo.HandleError(err)
			}
			e, err := loadEnv(cmd)
			if err != nil {
				return oo.HandleError(err)
			}
			defer e.Close()

			until := time.Now()
			s := list.Summary{
				App:   e.App,
				Since: until.Add(-duration),
				Until: until,
				JSON:  oo.JSON,
				Out:   cmd.OutOrStdout(),
			}
			return oo.HandleError(s.Do(cmd.Context()))
		},
	}

	cmd.Flags().StringVar(&last, "last", timeutil.DefaultSpan, "Look-back such as 3d or 1w2d.")
	options.AddOutputArg(cmd, oo)

	topLevel.AddCommand(cmd)
}
