package pokedex

import (
	"context"
	"fmt"
	"time"

	"github.com/lucasdpassos/pokedex-assistant/internal/fault"
	"github.com/lucasdpassos/pokedex-assistant/internal/log"
	"github.com/lucasdpassos/pokedex-assistant/internal/tools"
)

// InfoToolName is the registered name of the single-pokemon lookup tool.
const InfoToolName = "pokemon_info"

// InfoTool answers single-pokemon lookups with typing, base stats,
// abilities and measurements.
type InfoTool struct {
	client *Client
	logger log.Logger
}

// NewInfoTool creates the lookup tool.
func NewInfoTool(client *Client, logger log.Logger) (*InfoTool, error) {
	if client == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &InfoTool{
		client: client,
		logger: logger.With("tool", InfoToolName),
	}, nil
}

// Definition describes the tool to the executor.
func (t *InfoTool) Definition() tools.Definition {
	return tools.Definition{
		Name:        InfoToolName,
		Description: "Look up a single Pokémon by name and return its typing, base stats, abilities, height and weight.",
		Version:     "1.0.0",
		Category:    tools.CategoryReference,
		InputSchema: map[string]tools.Field{
			"name": {
				Type:        tools.TypeString,
				Required:    true,
				Description: "Pokémon name, e.g. \"pikachu\" or \"Mr. Mime\".",
			},
		},
		Timeout:   15 * time.Second,
		Retry:     &tools.RetryPolicy{MaxAttempts: 3, Backoff: 500 * time.Millisecond, Exponential: true},
		RateLimit: &tools.RateLimit{MaxRequests: 30, Window: time.Minute},
	}
}

// ValidateInput rejects names that slugify to nothing before any network
// round trip happens.
func (t *InfoTool) ValidateInput(input map[string]any) error {
	name, _ := input["name"].(string)
	if Slug(name) == "" {
		return fault.InvalidInput("input validation failed", []string{"name (must contain letters or digits)"})
	}
	return nil
}

// Execute fetches the pokemon and shapes the reply for the model.
func (t *InfoTool) Execute(ctx context.Context, ec tools.ExecutionContext) (any, error) {
	name, _ := ec.Input["name"].(string)

	p, err := t.client.GetPokemon(ctx, name)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"id":              p.ID,
		"name":            p.Name,
		"types":           p.Types,
		"stats":           p.Stats,
		"base_stat_total": p.BaseStatTotal,
		"abilities":       p.Abilities,
		"height_m":        float64(p.Height) / 10,
		"weight_kg":       float64(p.Weight) / 10,
	}, nil
}
