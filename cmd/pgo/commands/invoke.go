package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/zerr"
)

func (c *CLI) newInvokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invoke [event-json]",
		Short: "Answer a single event and print the JSON result",
		Long: "Answer a single event and print the JSON result.\n\n" +
			`{"type":"size"} prints the image size; {"start":N,"size":M} prints a base64 range.` +
			"\nThe event is read from standard input when no argument is given.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}

			var payload []byte
			if len(args) == 1 {
				payload = []byte(args[0])
			} else {
				payload, err = io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return zerr.Wrap(err, "failed to read event")
				}
			}

			out, err := c.app.Invoke(cmd.Context(), path, payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
