package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

func (c *CLI) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the record of the last image build",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			record, err := c.app.Status(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if record == nil {
				_, _ = fmt.Fprintln(out, "not built")
				return nil
			}

			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(record); err != nil {
				return zerr.Wrap(err, "failed to encode build record")
			}
			return enc.Close()
		},
	}
}
