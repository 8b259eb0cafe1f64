package commands

import (
	"time"

	"github.com/spf13/cobra"

	"tableflip.dev/tock/pkg/commands/options"
	"tableflip.dev/tock/pkg/runner/catchup"
)

func addCatchUp(topLevel *cobra.Command) {
	so := &options.SinceOptions{}
	var (
		all  bool
		text string
	)

	cmd := &cobra.Command{
		Use:     "catchup",
		Aliases: []string{"catch-up"},
		Short:   "Fill several missed windows with one entry",
		Long: options.Wrap80(`Lists the missed windows and lets you pick the ones to fill. Nothing is written
until you choose done and enter the text; abandon leaves the journal untouched.
Every selected window gets its own entry with the same text and no tags.`),
		Example: `
tock catchup
tock catchup --since 4h
tock catchup --all --text "offsite"
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			since, err := so.GetSince(time.Now())
			if err != nil {
				return err
			}
			c := catchup.CatchUp{
				App:   e.App,
				Since: since,
				All:   all,
				Text:  text,
				Out:   cmd.OutOrStdout(),
			}
			return c.Do(cmd.Context())
		},
	}

	options.AddSinceArg(cmd, so, "Offer windows since a lookback such as 4h or a date such as 3/2. Defaults to the first entry.")
	cmd.Flags().BoolVar(&all, "all", false, "Select every missed window.")
	cmd.Flags().StringVar(&text, "text", "", "Entry text. Prompted for when empty.")

	topLevel.AddCommand(cmd)
}
