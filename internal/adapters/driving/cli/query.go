package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/errkind"
)

var queryCmd = &cobra.Command{
	Use:   "query [collection] [Key=Value...]",
	Short: "Query clean or incomplete observations",
	Long: `Queries a collection with the same filters the HTTP API accepts.

Examples:
  sspi query clean IndicatorCode=FDEPTH CountryCode=USA,FRA
  sspi query clean CountryGroup=SSPI49 YearRangeStart=2010
  sspi query incomplete IndicatorCode=PRISON`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

var countryCmd = &cobra.Command{
	Use:   "country [country-code]",
	Short: "Show every indicator score of a country",
	Args:  cobra.ExactArgs(1),
	RunE:  runCountry,
}

var summaryCmd = &cobra.Command{
	Use:   "summary [indicator-code] [Key=Value...]",
	Short: "Per-year score statistics of an indicator",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSummary,
}

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List registered dataset codes",
	Args:  cobra.NoArgs,
	RunE:  runDatasets,
}

var depsCmd = &cobra.Command{
	Use:   "deps [indicator-code]",
	Short: "List the datasets an indicator reads",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeps,
}

func init() {
	rootCmd.AddCommand(queryCmd, countryCmd, summaryCmd, datasetsCmd, depsCmd)
}

// parseParams turns Key=Value arguments into URL-style parameters.
func parseParams(args []string) (map[string][]string, error) {
	params := map[string][]string{}
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, errkind.Query.New("filter %q is not Key=Value", arg)
		}
		params[k] = append(params[k], v)
	}
	return params, nil
}

func parseFilterArgs(args []string) (domain.QueryFilters, error) {
	params, err := parseParams(args)
	if err != nil {
		return domain.QueryFilters{}, err
	}
	f, err := domain.ParseQueryFilters(params)
	if err != nil {
		return f, errkind.Query.Wrap(err)
	}
	return f, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	collection, err := domain.ParseCollection(args[0])
	if err != nil {
		return errkind.Query.Wrap(err)
	}
	filters, err := parseFilterArgs(args[1:])
	if err != nil {
		return err
	}
	s, err := loadServices(cmd)
	if err != nil {
		return err
	}
	res, err := s.Query.Query(cmd.Context(), collection, filters)
	if err != nil {
		return err
	}
	if collection == domain.CollectionIncomplete {
		return printJSON(cmd, nonNil(res.Incomplete))
	}
	return printJSON(cmd, nonNil(res.Observations))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func runCountry(cmd *cobra.Command, args []string) error {
	s, err := loadServices(cmd)
	if err != nil {
		return err
	}
	obs, err := s.Query.QueryCountry(cmd.Context(), strings.ToUpper(args[0]))
	if err != nil {
		return err
	}
	if len(obs) == 0 {
		cmd.Println("No scores found.")
		return nil
	}
	for _, o := range obs {
		score := "-"
		if o.Score != nil {
			score = fmt.Sprintf("%.3f", *o.Score)
		}
		cmd.Printf("  %-8s %d  score %s  value %g %s\n", o.IndicatorCode, o.Year, score, o.Value, o.Unit)
	}
	return nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	filters, err := parseFilterArgs(args[1:])
	if err != nil {
		return err
	}
	s, err := loadServices(cmd)
	if err != nil {
		return err
	}
	summary, err := s.Query.Summary(cmd.Context(), args[0], filters)
	if err != nil {
		return err
	}
	return printJSON(cmd, nonNil(summary))
}

func runDatasets(cmd *cobra.Command, _ []string) error {
	s, err := loadServices(cmd)
	if err != nil {
		return err
	}
	for _, code := range s.Dispatcher.ListDatasets() {
		cmd.Println(code)
	}
	return nil
}

func runDeps(cmd *cobra.Command, args []string) error {
	s, err := loadServices(cmd)
	if err != nil {
		return err
	}
	deps, err := s.Dispatcher.DependenciesOf(args[0])
	if err != nil {
		return err
	}
	for _, code := range deps {
		cmd.Println(code)
	}
	return nil
}
