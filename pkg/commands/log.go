package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"tableflip.dev/tock/pkg/commands/options"
	"tableflip.dev/tock/pkg/runner/log"
)

func addLog(topLevel *cobra.Command) {
	lo := &options.LogOptions{}

	cmd := &cobra.Command{
		Use:   "log [text]",
		Short: "Write down what you did in the current window",
		Long: options.Wrap80(`Records an entry for the window that is accepting input now. Right after a
window closes that is the window that just ended, for the length of the late grace.
With no text you are prompted for it.`),
		Example: `
tock log "reviewed pull requests"
tock log --tag review --tag team "pairing with Sam"
tock log
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			l := log.Log{
				App:   e.App,
				Text:  strings.Join(args, " "),
				Tags:  lo.Tags,
				Force: lo.Force,
				Out:   cmd.OutOrStdout(),
			}
			return l.Do(cmd.Context())
		},
	}

	options.AddLogArgs(cmd, lo)

	topLevel.AddCommand(cmd)
}

func addEdit(topLevel *cobra.Command) {
	lo := &options.LogOptions{}

	cmd := &cobra.Command{
		Use:   "edit <id> [text]",
		Short: "Change the text or tags of an entry",
		Example: `
tock edit 7f1c0f7e-1f9b-4f19-9a3e-0c1f8c2d7a10 "sprint planning"
tock edit 7f1c0f7e-1f9b-4f19-9a3e-0c1f8c2d7a10 --tag planning
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			ed := log.Edit{
				App:      e.App,
				ID:       args[0],
				Text:     strings.Join(args[1:], " "),
				Tags:     lo.Tags,
				KeepTags: !cmd.Flags().Changed("tag"),
				Out:      cmd.OutOrStdout(),
			}
			return ed.Do(cmd.Context())
		},
	}

	cmd.Flags().StringSliceVarP(&lo.Tags, "tag", "t", nil,
		options.Wrap80("Replace the tags. Pass --tag= to clear them."))

	topLevel.AddCommand(cmd)
}

func addDelete(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove an entry; its window shows as missed again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			d := log.Delete{App: e.App, ID: args[0], Out: cmd.OutOrStdout()}
			return d.Do(cmd.Context())
		},
	}

	topLevel.AddCommand(cmd)
}
