package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/errkind"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [collection] [code]",
	Short: "Delete a series from a collection",
	Long: `Deletes every partition named code from a collection:

  clean       dataset, intermediate and indicator observations named code
  incomplete  the incomplete rows of indicator code
  raw         the raw documents collected for dataset code`,
	Args: cobra.ExactArgs(2),
	RunE: runDelete,
}

var tokenCmd = &cobra.Command{
	Use:   "token [username]",
	Short: "Issue a bearer token for the HTTP API",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := loadServices(cmd)
		if err != nil {
			return err
		}
		if s.Serve == nil {
			return errors.New("http server not configured")
		}
		return s.Serve(cmd.Context())
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued rebuilds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := loadServices(cmd)
		if err != nil {
			return err
		}
		if s.Work == nil {
			return errors.New("job queue not configured")
		}
		return s.Work(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd, tokenCmd, serveCmd, workerCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	collection, err := domain.ParseCollection(args[0])
	if err != nil {
		return errkind.Query.Wrap(err)
	}
	s, err := loadServices(cmd)
	if err != nil {
		return err
	}
	report, err := s.Runner.DeleteSeries(cmd.Context(), principal(), collection, args[1])
	if err != nil {
		return err
	}
	return printJSON(cmd, report)
}

func runToken(cmd *cobra.Command, args []string) error {
	s, err := loadServices(cmd)
	if err != nil {
		return err
	}
	if s.Tokens == nil {
		return errors.New("token signing not configured")
	}
	token, err := s.Tokens.Issue(args[0])
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}
	cmd.Println(token)
	return nil
}
