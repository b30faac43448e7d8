// Package pokedex provides the PokéAPI client and the tools built on it:
// pokemon_info for single lookups and team_analysis for lineup aggregation.
package pokedex

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lucasdpassos/pokedex-assistant/internal/fault"
	"github.com/lucasdpassos/pokedex-assistant/internal/log"
)

const (
	// DefaultBaseURL is the public PokéAPI endpoint.
	DefaultBaseURL = "https://pokeapi.co/api/v2"

	defaultTimeout = 10 * time.Second

	// maxResponseBytes bounds how much of a response body is read.
	// PokéAPI pokemon payloads run a few hundred KB.
	maxResponseBytes int64 = 2 << 20

	serviceName = "pokeapi"
)

// Config carries the client settings. Zero values fall back to defaults.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is a minimal PokéAPI client decoding only the fields the tools use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  log.Logger
}

// NewClient creates a Client.
func NewClient(cfg Config, logger log.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger.With("component", "pokedex"),
	}
}

// Pokemon is the decoded subset of a PokéAPI pokemon resource.
type Pokemon struct {
	ID            int            `json:"id"`
	Name          string         `json:"name"`
	Height        int            `json:"height"`
	Weight        int            `json:"weight"`
	Types         []string       `json:"types"`
	Stats         map[string]int `json:"stats"`
	BaseStatTotal int            `json:"base_stat_total"`
	Abilities     []string       `json:"abilities"`
}

type pokemonPayload struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Height int    `json:"height"`
	Weight int    `json:"weight"`
	Types  []struct {
		Slot int `json:"slot"`
		Type struct {
			Name string `json:"name"`
		} `json:"type"`
	} `json:"types"`
	Stats []struct {
		BaseStat int `json:"base_stat"`
		Stat     struct {
			Name string `json:"name"`
		} `json:"stat"`
	} `json:"stats"`
	Abilities []struct {
		Ability struct {
			Name string `json:"name"`
		} `json:"ability"`
	} `json:"abilities"`
}

// GetPokemon fetches one pokemon by name. The name is slugified first, so
// display spellings like "Mr. Mime" resolve to their API identifiers. A 404
// maps to an invalid-input fault, other upstream failures to external-api
// faults.
func (c *Client) GetPokemon(ctx context.Context, name string) (*Pokemon, error) {
	slug := Slug(name)
	if slug == "" {
		return nil, fault.InvalidInput("pokemon name is required", []string{"name"})
	}

	url := c.baseURL + "/pokemon/" + slug
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fault.Wrap(err, fault.CodeInternal, "building pokeapi request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fault.Wrap(err, fault.CodeExternalAPI, "pokeapi request failed").
			WithDetail("service", serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fault.Wrap(err, fault.CodeExternalAPI, "reading pokeapi response").
			WithDetail("service", serviceName)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fault.New(fault.CodeInvalidInput, "unknown pokemon %q", slug).
			WithDetail("fields", []string{"name"})
	case resp.StatusCode != http.StatusOK:
		return nil, fault.ExternalAPI(serviceName, resp.StatusCode, truncate(string(body), 200))
	}

	var payload pokemonPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fault.Wrap(err, fault.CodeExternalAPI, "decoding pokeapi response").
			WithDetail("service", serviceName)
	}

	p := &Pokemon{
		ID:     payload.ID,
		Name:   payload.Name,
		Height: payload.Height,
		Weight: payload.Weight,
		Stats:  make(map[string]int, len(payload.Stats)),
	}
	for _, t := range payload.Types {
		p.Types = append(p.Types, t.Type.Name)
	}
	for _, s := range payload.Stats {
		p.Stats[s.Stat.Name] = s.BaseStat
		p.BaseStatTotal += s.BaseStat
	}
	for _, a := range payload.Abilities {
		p.Abilities = append(p.Abilities, a.Ability.Name)
	}

	c.logger.Debug("fetched pokemon", "name", p.Name, "id", p.ID)
	return p, nil
}

// Slug normalizes a display name into a PokéAPI identifier: lowercased,
// spaces and underscores become hyphens, gender signs become their -f/-m
// suffixes, everything else outside [a-z0-9-] is dropped. "Mr. Mime" becomes
// "mr-mime", "Farfetch'd" becomes "farfetchd".
func Slug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, "♀", "-f")
	s = strings.ReplaceAll(s, "♂", "-m")

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r == ' ' || r == '_':
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
