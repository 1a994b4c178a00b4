package mcp

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
)

// DefaultLimit caps the rows a tool returns when the caller sets none.
const DefaultLimit = 500

// QueryInput is the input schema for the query tool.
type QueryInput struct {
	Collection        string   `json:"collection,omitempty" jsonschema:"clean (default) or incomplete"`
	CountryCodes      []string `json:"country_codes,omitempty" jsonschema:"ISO alpha-3 country codes"`
	CountryGroup      string   `json:"country_group,omitempty" jsonschema:"named country group such as SSPI49"`
	IndicatorCodes    []string `json:"indicator_codes,omitempty" jsonschema:"indicator codes such as FDEPTH"`
	DatasetCodes      []string `json:"dataset_codes,omitempty" jsonschema:"dataset codes such as WB_CREDIT"`
	IntermediateCodes []string `json:"intermediate_codes,omitempty" jsonschema:"intermediate codes such as CREDIT"`
	Years             []int    `json:"years,omitempty" jsonschema:"exact years"`
	YearStart         int      `json:"year_start,omitempty" jsonschema:"first year, inclusive"`
	YearEnd           int      `json:"year_end,omitempty" jsonschema:"last year, inclusive"`
	Limit             int      `json:"limit,omitempty" jsonschema:"maximum number of rows (default 500)"`
}

// QueryOutput is the output schema for the query tool.
type QueryOutput struct {
	Observations []domain.Observation           `json:"observations,omitempty"`
	Incomplete   []domain.IncompleteObservation `json:"incomplete,omitempty"`
	Count        int                            `json:"count"`
	Truncated    bool                           `json:"truncated,omitempty"`
}

// CountryInput is the input schema for the country tool.
type CountryInput struct {
	CountryCode string `json:"country_code" jsonschema:"ISO alpha-3 country code"`
}

// CountryOutput lists every indicator score of a country.
type CountryOutput struct {
	Observations []domain.Observation `json:"observations"`
	Count        int                  `json:"count"`
}

// SummaryInput is the input schema for the summary tool.
type SummaryInput struct {
	IndicatorCode string `json:"indicator_code" jsonschema:"indicator code such as FDEPTH"`
	CountryGroup  string `json:"country_group,omitempty" jsonschema:"restrict to a named country group"`
	YearStart     int    `json:"year_start,omitempty" jsonschema:"first year, inclusive"`
	YearEnd       int    `json:"year_end,omitempty" jsonschema:"last year, inclusive"`
}

// SummaryOutput holds per-year score statistics.
type SummaryOutput struct {
	Years []domain.ScoreSummary `json:"years"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query_observations",
		Description: "Query clean observations or incomplete indicator rows with filters",
	}, s.handleQuery)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "country_scores",
		Description: "List every indicator score recorded for one country",
	}, s.handleCountry)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "score_summary",
		Description: "Per-year cross-country statistics of an indicator's scores",
	}, s.handleSummary)
}

// handleQuery handles the query tool invocation.
func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, QueryOutput, error) {
	collection := domain.CollectionClean
	if input.Collection != "" {
		c, err := domain.ParseCollection(strings.ToLower(input.Collection))
		if err != nil {
			return nil, QueryOutput{}, err
		}
		collection = c
	}
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	filters := domain.QueryFilters{
		CountryCodes:      upper(input.CountryCodes),
		CountryGroup:      input.CountryGroup,
		IndicatorCodes:    input.IndicatorCodes,
		DatasetCodes:      input.DatasetCodes,
		IntermediateCodes: input.IntermediateCodes,
		Years:             input.Years,
		YearRangeStart:    input.YearStart,
		YearRangeEnd:      input.YearEnd,
	}
	res, err := s.ports.Query.Query(ctx, collection, filters)
	if err != nil {
		return nil, QueryOutput{}, err
	}

	var out QueryOutput
	out.Observations, out.Truncated = truncate(res.Observations, limit)
	var cut bool
	out.Incomplete, cut = truncate(res.Incomplete, limit)
	out.Truncated = out.Truncated || cut
	out.Count = len(out.Observations) + len(out.Incomplete)
	return nil, out, nil
}

func (s *Server) handleCountry(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CountryInput,
) (*mcp.CallToolResult, CountryOutput, error) {
	obs, err := s.ports.Query.QueryCountry(ctx, strings.ToUpper(input.CountryCode))
	if err != nil {
		return nil, CountryOutput{}, err
	}
	if obs == nil {
		obs = []domain.Observation{}
	}
	return nil, CountryOutput{Observations: obs, Count: len(obs)}, nil
}

func (s *Server) handleSummary(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SummaryInput,
) (*mcp.CallToolResult, SummaryOutput, error) {
	filters := domain.QueryFilters{
		CountryGroup:   input.CountryGroup,
		YearRangeStart: input.YearStart,
		YearRangeEnd:   input.YearEnd,
	}
	years, err := s.ports.Query.Summary(ctx, input.IndicatorCode, filters)
	if err != nil {
		return nil, SummaryOutput{}, err
	}
	if years == nil {
		years = []domain.ScoreSummary{}
	}
	return nil, SummaryOutput{Years: years}, nil
}

func truncate[T any](rows []T, limit int) ([]T, bool) {
	if len(rows) > limit {
		return rows[:limit], true
	}
	return rows, false
}

func upper(codes []string) []string {
	if codes == nil {
		return nil
	}
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = strings.ToUpper(c)
	}
	return out
}
