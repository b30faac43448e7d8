package pokedex

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lucasdpassos/pokedex-assistant/internal/fault"
	"github.com/lucasdpassos/pokedex-assistant/internal/log"
	"github.com/lucasdpassos/pokedex-assistant/internal/tools"
)

// TeamToolName is the registered name of the team aggregation tool.
const TeamToolName = "team_analysis"

// maxTeamSize matches the in-game party limit.
const maxTeamSize = 6

// TeamTool fetches up to six pokemon and aggregates their typing and base
// stats into a team summary.
type TeamTool struct {
	client *Client
	logger log.Logger
}

// NewTeamTool creates the aggregation tool.
func NewTeamTool(client *Client, logger log.Logger) (*TeamTool, error) {
	if client == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &TeamTool{
		client: client,
		logger: logger.With("tool", TeamToolName),
	}, nil
}

// Definition describes the tool to the executor.
func (t *TeamTool) Definition() tools.Definition {
	return tools.Definition{
		Name:        TeamToolName,
		Description: "Analyze a team of one to six Pokémon: type coverage, duplicated types and base stat spread.",
		Version:     "1.0.0",
		Category:    tools.CategoryTeam,
		InputSchema: map[string]tools.Field{
			"names": {
				Type:        tools.TypeArray,
				Required:    true,
				Description: "One to six Pokémon names.",
			},
		},
		Timeout:   20 * time.Second,
		Retry:     &tools.RetryPolicy{MaxAttempts: 2, Backoff: 500 * time.Millisecond, Exponential: true},
		RateLimit: &tools.RateLimit{MaxRequests: 12, Window: time.Minute},
	}
}

// ValidateInput enforces the party size and name syntax on top of the
// schema's array check.
func (t *TeamTool) ValidateInput(input map[string]any) error {
	_, err := teamNames(input)
	return err
}

// Execute fetches every member concurrently and aggregates the results.
// Any failed lookup fails the whole analysis.
func (t *TeamTool) Execute(ctx context.Context, ec tools.ExecutionContext) (any, error) {
	names, err := teamNames(ec.Input)
	if err != nil {
		return nil, err
	}

	members := make([]*Pokemon, len(names))
	errs := make([]error, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			members[i], errs[i] = t.client.GetPokemon(ctx, name)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return summarize(members), nil
}

// teamNames extracts and validates the names list. It accepts both []any
// (decoded JSON) and []string (programmatic callers).
func teamNames(input map[string]any) ([]string, error) {
	var names []string
	switch v := input["names"].(type) {
	case []string:
		names = v
	case []any:
		for i, entry := range v {
			s, ok := entry.(string)
			if !ok {
				return nil, fault.InvalidInput("input validation failed",
					[]string{fmt.Sprintf("names[%d] (expected string)", i)})
			}
			names = append(names, s)
		}
	default:
		return nil, fault.InvalidInput("input validation failed", []string{"names (expected array)"})
	}

	if len(names) == 0 {
		return nil, fault.InvalidInput("input validation failed", []string{"names (at least one pokemon required)"})
	}
	if len(names) > maxTeamSize {
		return nil, fault.InvalidInput("input validation failed",
			[]string{fmt.Sprintf("names (at most %d pokemon)", maxTeamSize)})
	}

	var offending []string
	for i, name := range names {
		if Slug(name) == "" {
			offending = append(offending, fmt.Sprintf("names[%d] (must contain letters or digits)", i))
		}
	}
	if len(offending) > 0 {
		return nil, fault.InvalidInput("input validation failed", offending)
	}
	return names, nil
}

func summarize(members []*Pokemon) map[string]any {
	summaries := make([]map[string]any, 0, len(members))
	typeCounts := make(map[string]int)

	var totalSum int
	strongest, weakest := members[0], members[0]
	for _, p := range members {
		summaries = append(summaries, map[string]any{
			"name":            p.Name,
			"types":           p.Types,
			"base_stat_total": p.BaseStatTotal,
		})
		for _, typ := range p.Types {
			typeCounts[typ]++
		}
		totalSum += p.BaseStatTotal
		if p.BaseStatTotal > strongest.BaseStatTotal {
			strongest = p
		}
		if p.BaseStatTotal < weakest.BaseStatTotal {
			weakest = p
		}
	}

	coverage := make([]string, 0, len(typeCounts))
	var duplicates []string
	for typ, count := range typeCounts {
		coverage = append(coverage, typ)
		if count > 1 {
			duplicates = append(duplicates, typ)
		}
	}
	sort.Strings(coverage)
	sort.Strings(duplicates)

	return map[string]any{
		"size":                    len(members),
		"members":                 summaries,
		"type_coverage":           coverage,
		"duplicate_types":         duplicates,
		"average_base_stat_total": totalSum / len(members),
		"strongest":               strongest.Name,
		"weakest":                 weakest.Name,
	}
}
