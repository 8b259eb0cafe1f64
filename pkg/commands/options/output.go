package options

import (
	"encoding/json"
	"fmt"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// OutputOptions selects machine-readable output. With JSON set, command
// errors are printed as {"error": "..."} on stdout instead of failing the
// command.
type OutputOptions struct {
	JSON bool
}

// AddOutputArg registers --json on cmd.
func AddOutputArg(cmd *cobra.Command, po *OutputOptions) {
	cmd.Flags().BoolVar(&po.JSON, "json", false,
		"Output as JSON.")
}

// HandleError reports err as JSON when JSON output is on, otherwise it
// returns err unchanged.
func (o *OutputOptions) HandleError(err error) error {
	if o.JSON && err != nil {
		out := map[string]string{
			"error": err.Error(),
		}
		b, err := json.Marshal(out)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(color.Output, string(b))
		return nil
	}
	return err
}
