// Package cli wires the nimbus commands: authentication, application
// management, and the pull/push synchronization workflows.
package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nimbuslabs/nimbus/internal/api"
	"github.com/nimbuslabs/nimbus/internal/config"
	"github.com/nimbuslabs/nimbus/internal/errors"
)

// configFlag holds the --config flag value, an explicit project config path.
var configFlag string

var rootCmd = &cobra.Command{
	Use:   "nimbus",
	Short: "Command-line client for the Nimbus cloud platform",
	Long: `nimbus manages applications on the Nimbus cloud platform and keeps
your local development setup in sync with remote environments:
pull a remote database or media files into your local docker-compose
stack, or push your local data to a remote environment.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Errors are rendered once, here, in their
// structured form.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if stderrors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Interrupted")
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "",
		"Path to the project config file (default: search for "+config.ConfigFileName+")")
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, so an
// interrupted workflow still releases its workspace.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newClient builds an API client from the global config. It fails early when
// no token is stored.
func newClient() (*api.Client, error) {
	global, err := config.LoadGlobal()
	if err != nil {
		return nil, err
	}
	if global.Token == "" {
		return nil, errors.New(errors.ErrConfig,
			"You are not logged in",
			"Run 'nimbus login' to store an access token")
	}
	return api.NewClient(global.Endpoint, global.Token), nil
}

// loadProject loads the project config for commands that need an application
// context.
func loadProject() (*config.Config, string, error) {
	return config.LoadProject(configFlag)
}
