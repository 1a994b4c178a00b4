package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
)

var (
	collectIntermediate string
	rebuildAsync        bool
)

var collectCmd = &cobra.Command{
	Use:   "collect [dataset-code]",
	Short: "Fetch a dataset from its upstream source",
	Long: `Fetches every page of a dataset from its upstream provider and stores the
raw documents. Documents already stored are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, domain.Operation{
			Verb:    domain.VerbCollect,
			Code:    args[0],
			Context: domain.CollectContext{IntermediateCode: collectIntermediate},
		})
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean [dataset-code]",
	Short: "Rebuild a dataset's clean observations from its raw documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, domain.Operation{Verb: domain.VerbClean, Code: args[0]})
	},
}

var scoreCmd = &cobra.Command{
	Use:   "score [indicator-code]",
	Short: "Score an indicator from clean data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, domain.Operation{Verb: domain.VerbScore, Code: args[0]})
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild [indicator-code]",
	Short: "Collect, clean and score everything an indicator needs",
	Long: `Collects every dataset the indicator depends on, cleans them and scores
the indicator. With --async the rebuild is queued for a worker instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runRebuild,
}

var jobCmd = &cobra.Command{
	Use:   "job [job-id]",
	Short: "Show the status of a queued rebuild",
	Args:  cobra.ExactArgs(1),
	RunE:  runJob,
}

func init() {
	collectCmd.Flags().StringVar(&collectIntermediate, "intermediate", "", "intermediate code stamped into provenance")
	rebuildCmd.Flags().BoolVar(&rebuildAsync, "async", false, "queue the rebuild for a worker")
	rootCmd.AddCommand(collectCmd, cleanCmd, scoreCmd, rebuildCmd, jobCmd)
}

// runOperation prints a runner stream line by line. An error line makes
// the command fail once the stream has ended.
func runOperation(cmd *cobra.Command, op domain.Operation) error {
	s, err := loadServices(cmd)
	if err != nil {
		return err
	}
	lines, err := s.Runner.Stream(cmd.Context(), principal(), op)
	if err != nil {
		return fmt.Errorf("%s %s: %w", op.Verb, op.Code, err)
	}

	var failure string
	for line := range lines {
		cmd.Println(line)
		if msg, ok := strings.CutPrefix(line, domain.StreamErrorPrefix); ok {
			failure = msg
		}
	}
	if failure != "" {
		return fmt.Errorf("%s %s failed: %s", op.Verb, op.Code, failure)
	}
	return nil
}

func runRebuild(cmd *cobra.Command, args []string) error {
	if !rebuildAsync {
		return runOperation(cmd, domain.Operation{Verb: domain.VerbRebuild, Code: args[0]})
	}
	s, err := loadServices(cmd)
	if err != nil {
		return err
	}
	if s.Jobs == nil {
		return errors.New("job queue not configured")
	}
	status, err := s.Jobs.EnqueueRebuild(cmd.Context(), principal(), args[0])
	if err != nil {
		return err
	}
	cmd.Printf("Queued rebuild of %s as job %s\n", status.IndicatorCode, status.ID)
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	s, err := loadServices(cmd)
	if err != nil {
		return err
	}
	if s.Jobs == nil {
		return errors.New("job queue not configured")
	}
	status, err := s.Jobs.JobStatus(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, status)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
