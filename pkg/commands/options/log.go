package options

import (
	"github.com/spf13/cobra"
)

// LogOptions
type LogOptions struct {
	Tags  []string
	Force bool
}

func AddLogArgs(cmd *cobra.Command, o *LogOptions) {
	cmd.Flags().StringSliceVarP(&o.Tags, "tag", "t", nil,
		Wrap80("Quick tag for the entry. Repeat or separate with commas."))
	cmd.Flags().BoolVarP(&o.Force, "force", "f", false,
		Wrap80("Add the entry even if the window is already logged."))
}
