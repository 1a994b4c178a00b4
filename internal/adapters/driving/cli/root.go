// Package cli implements the sspi command. Commands drive the engine's
// services in-process; serve and worker run the long-lived processes.
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driving"
	"github.com/sspi-index/sspi-engine/internal/logger"
)

// version is set at build time with -ldflags.
var version = "dev"

// TokenIssuer signs bearer tokens.
type TokenIssuer interface {
	Issue(username string) (string, error)
}

// Services are the engine entry points the commands use.
type Services struct {
	Runner     driving.Runner
	Dispatcher driving.Dispatcher
	Query      driving.QueryService
	Metadata   driving.MetadataService
	Jobs       driving.JobService
	Tokens     TokenIssuer

	// Serve runs the HTTP API until ctx is cancelled.
	Serve func(ctx context.Context) error
	// Work consumes queued rebuilds until ctx is cancelled.
	Work func(ctx context.Context) error
	// Close releases stores and connections.
	Close func() error
}

// Options carry the global flags to the services factory.
type Options struct {
	ConfigDir string
	Verbose   bool
}

// Factory builds the services on first use.
type Factory func(ctx context.Context, opts Options) (*Services, error)

var (
	factory  Factory
	services *Services

	configDir string
	verbose   bool
	actingAs  string
)

// SetFactory installs the services factory used by every command.
func SetFactory(f Factory) {
	factory = f
}

var rootCmd = &cobra.Command{
	Use:   "sspi",
	Short: "SSPI dataset pipeline engine",
	Long: `Collects, cleans and scores the datasets behind the Sustainable and
Shared Prosperity Policy Index.

Pipeline commands (collect, clean, score, rebuild, delete) run in-process
and print progress as they go. serve starts the HTTP API, worker consumes
queued rebuilds.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.sspi)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&actingAs, "as", os.Getenv("USER"), "username recorded on pipeline operations")
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer closeServices()
	rootCmd.SetOut(os.Stdout)
	return rootCmd.ExecuteContext(ctx)
}

// loadServices builds the services once per process.
func loadServices(cmd *cobra.Command) (*Services, error) {
	if services != nil {
		return services, nil
	}
	if factory == nil {
		return nil, errors.New("engine not configured")
	}
	s, err := factory(cmd.Context(), Options{ConfigDir: configDir, Verbose: verbose})
	if err != nil {
		return nil, err
	}
	services = s
	return s, nil
}

func closeServices() {
	if services == nil || services.Close == nil {
		return
	}
	if err := services.Close(); err != nil {
		logger.Warn("closing engine: %v", err)
	}
	services = nil
}

// principal is the caller of pipeline commands.
func principal() domain.Principal {
	return domain.Principal{Username: actingAs}
}
