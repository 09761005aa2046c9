// Package commands implements the CLI commands for pgo.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.trai.ch/pgo/internal/adapters/config"
	"go.trai.ch/pgo/internal/app"
	"go.trai.ch/pgo/internal/build"
	"go.trai.ch/pgo/internal/core/domain"
)

// Application represents the application logic interface.
type Application interface {
	Serve(ctx context.Context, configPath string) error
	Invoke(ctx context.Context, configPath string, payload []byte) ([]byte, error)
	Build(ctx context.Context, configPath string) (int64, error)
	List(configPath string) (string, error)
	Status(configPath string) (*domain.BuildRecord, error)
	Fetch(ctx context.Context, configPath string, opts app.FetchOptions) (int64, error)
}

// CLI represents the command line interface for pgo.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
}

// New creates a new CLI instance with the given app.
func New(a Application) *CLI {
	rootCmd := &cobra.Command{
		Use:           "pgo",
		Short:         "Build and serve a lazily generated startup image",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultFilename, "Path to the configuration file")

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	rootCmd.AddCommand(c.newServeCmd())
	rootCmd.AddCommand(c.newInvokeCmd())
	rootCmd.AddCommand(c.newBuildCmd())
	rootCmd.AddCommand(c.newListCmd())
	rootCmd.AddCommand(c.newStatusCmd())
	rootCmd.AddCommand(c.newFetchCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// SetInput sets the input stream for the root command. Used for testing.
func (c *CLI) SetInput(in io.Reader) {
	c.rootCmd.SetIn(in)
}

// configPath returns the config file to load. The default file is optional:
// when it does not exist and the flag was not given, configuration comes from
// defaults and the environment only.
func configPath(cmd *cobra.Command) (string, error) {
	flag := cmd.Flags().Lookup("config")
	if flag == nil {
		return "", nil
	}
	path := flag.Value.String()
	if flag.Changed {
		return path, nil
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return path, nil
}
