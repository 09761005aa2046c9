package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.trai.ch/pgo/internal/app"
	"go.trai.ch/pgo/internal/frontend/event"
)

func (c *CLI) newFetchCmd() *cobra.Command {
	var opts app.FetchOptions

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the image from a running server",
		Long: "Download the image from a running server.\n\n" +
			"The size is requested first, then the image is pulled as base64 ranges of\n" +
			"--part-size bytes and reassembled into --output. Without --url the server\n" +
			"is assumed to listen locally on the configured address.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			size, err := c.app.Fetch(cmd.Context(), path, opts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "fetched %d bytes to %s\n", size, opts.Output)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "", "Base URL of the server")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "cds.img", "File to write the image to")
	cmd.Flags().Int64Var(&opts.PartSize, "part-size", event.DefaultPartSize, "Bytes requested per range event")

	return cmd
}
