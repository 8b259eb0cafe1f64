package commands

import (
	"github.com/spf13/cobra"

	"tableflip.dev/tock/pkg/commands/options"
)

var (
	oo = &options.OutputOptions{}
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tock",
		Short: options.Wrap80("An interval journal: write down what you did every half hour."),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	addGlobalFlags(cmd)
	AddCommands(cmd)
	return cmd
}

func AddCommands(topLevel *cobra.Command) {
	addStatus(topLevel)
	addLog(topLevel)
	addMissed(topLevel)
	addCatchUp(topLevel)
	addList(topLevel)
	addEdit(topLevel)
	addDelete(topLevel)
	addWatch(topLevel)
	addSummary(topLevel)
	addMCP(topLevel)
	addCompletions(topLevel)
	addVersion(topLevel)
}
