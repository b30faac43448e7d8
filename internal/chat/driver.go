// Package chat implements the streaming conversation driver: it runs one
// user turn against the model, detects tool invocations inside the response
// stream, executes them through the tool executor, and re-enters the model
// with their results under a bounded number of rounds.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/lucasdpassos/pokedex-assistant/internal/log"
	"github.com/lucasdpassos/pokedex-assistant/internal/model"
	"github.com/lucasdpassos/pokedex-assistant/internal/tools"
)

const (
	// DefaultMaxToolRounds is how many model round-trips one user turn may
	// consume. With 2, the model may use tools once and then gets exactly
	// one further round-trip to read their results.
	DefaultMaxToolRounds = 2

	// DefaultHardStopDepth is the absolute round-trip ceiling. Reaching it
	// means MaxToolRounds was misconfigured; the turn ends with an error
	// event instead of looping further.
	DefaultHardStopDepth = 5

	// DefaultMaxTokens caps each model response.
	DefaultMaxTokens = 4096
)

// DefaultSystemPrompt steers the assistant when the caller provides none.
const DefaultSystemPrompt = `You are a helpful Pokédex assistant. Answer questions about Pokémon using the available tools: look up a single Pokémon with pokemon_info, analyze a lineup with team_analysis. Prefer tool data over memory, cite concrete stats and types, and keep answers concise.`

// Config contains all required parameters for the conversation driver.
type Config struct {
	Model    model.Client
	Executor *tools.Executor
	Logger   log.Logger

	// Optional; zero values fall back to the package defaults.
	SystemPrompt  string
	MaxTokens     int64
	MaxToolRounds int
	HardStopDepth int
}

// validate checks if all required parameters are present.
func (cfg Config) validate() error {
	if cfg.Model == nil {
		return errors.New("model client is required")
	}
	if cfg.Executor == nil {
		return errors.New("executor is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Driver runs conversation turns. It is stateless across turns: each Stream
// call owns its message history and block accumulators, so concurrent turns
// are independent except for the shared Executor.
//
// All configuration is captured immutably at construction time.
type Driver struct {
	model  model.Client
	exec   *tools.Executor
	logger log.Logger

	systemPrompt  string
	maxTokens     int64
	maxToolRounds int
	hardStopDepth int
}

// New creates a Driver with required configuration.
func New(cfg Config) (*Driver, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	maxToolRounds := cfg.MaxToolRounds
	if maxToolRounds <= 0 {
		maxToolRounds = DefaultMaxToolRounds
	}
	hardStopDepth := cfg.HardStopDepth
	if hardStopDepth <= 0 {
		hardStopDepth = DefaultHardStopDepth
	}

	d := &Driver{
		model:         cfg.Model,
		exec:          cfg.Executor,
		logger:        cfg.Logger.With("component", "chat"),
		systemPrompt:  systemPrompt,
		maxTokens:     maxTokens,
		maxToolRounds: maxToolRounds,
		hardStopDepth: hardStopDepth,
	}

	d.logger.Info("chat driver initialized",
		"max_tool_rounds", d.maxToolRounds,
		"hard_stop_depth", d.hardStopDepth)
	return d, nil
}

// Stream runs one user turn and yields the client-visible event sequence.
//
// Text deltas are forwarded in arrival order. After a turn that used tools,
// every tool_result event precedes any further text. The sequence ends with
// exactly one done event; when the caller cancels ctx or stops ranging, the
// sequence just stops without it. A non-nil error accompanies only the error
// event, carrying the cause for the consumer's logs; the event Content stays
// generic.
func (d *Driver) Stream(ctx context.Context, userMessage string) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		logger := d.logger.With("turn_id", uuid.NewString())
		emit := &emitter{ctx: ctx, yield: yield}
		history := []model.Message{model.UserText(userMessage)}

		for depth := 1; ; depth++ {
			if depth > d.hardStopDepth {
				logger.Error("conversation depth exceeded hard stop", "depth", depth)
				emit.fail("conversation depth limit exceeded",
					errors.New("tool round-trips exceeded the hard stop"))
				emit.finish()
				return
			}

			assistant, err := d.streamOnce(ctx, logger, history, emit)
			if emit.stopped {
				return
			}
			if err != nil {
				logger.Error("model stream failed", "depth", depth, "error", err)
				emit.fail("the model request failed", err)
				emit.finish()
				return
			}

			history = append(history, assistant)
			uses := assistant.ToolUses()
			if len(uses) == 0 {
				emit.finish()
				return
			}

			logger.Debug("executing tool calls", "depth", depth, "count", len(uses))
			outcomes := d.executeTools(ctx, logger, uses)
			if ctx.Err() != nil {
				// Abandoned turn: results are discarded, not forwarded.
				return
			}

			results := make([]model.Block, len(uses))
			for i, use := range uses {
				if !emit.toolResult(use.ToolName, outcomes[i].result) {
					return
				}
				results[i] = model.ToolResultBlock(use.ToolID, outcomes[i].content, outcomes[i].isError)
			}
			history = append(history, model.ToolResultsMessage(results...))

			if depth >= d.maxToolRounds {
				emit.finish()
				return
			}
		}
	}
}

// toolAccumulator gathers one tool_use block while it streams. Input JSON
// arrives as verbatim fragments that are only parseable once concatenated.
type toolAccumulator struct {
	id    string
	name  string
	input strings.Builder
}

// streamOnce consumes one model response stream: it forwards text deltas
// through emit and accumulates the assistant message block by block. The
// returned message is valid only when err is nil and emit is not stopped.
func (d *Driver) streamOnce(ctx context.Context, logger log.Logger, history []model.Message, emit *emitter) (model.Message, error) {
	req := model.Request{
		System:    d.systemPrompt,
		Messages:  history,
		Tools:     toolSpecs(d.exec.Definitions()),
		MaxTokens: d.maxTokens,
	}

	var blocks []model.Block
	var text strings.Builder
	textOpen := false
	var tool *toolAccumulator

	for ev, err := range d.model.Stream(ctx, req) {
		if err != nil {
			return model.Message{}, err
		}
		switch ev.Type {
		case model.EventBlockStart:
			switch ev.Kind {
			case model.BlockText:
				textOpen = true
				text.Reset()
			case model.BlockToolUse:
				tool = &toolAccumulator{id: ev.ID, name: ev.Name}
			}
		case model.EventTextDelta:
			if !textOpen && tool == nil {
				textOpen = true
				text.Reset()
			}
			text.WriteString(ev.Text)
			if !emit.text(ev.Text) {
				return model.Message{}, nil
			}
		case model.EventInputDelta:
			if tool != nil {
				tool.input.WriteString(ev.Partial)
			}
		case model.EventBlockStop:
			switch {
			case tool != nil:
				input := parseToolInput(logger, tool.name, tool.input.String())
				blocks = append(blocks, model.ToolUseBlock(tool.id, tool.name, input))
				tool = nil
			case textOpen:
				blocks = append(blocks, model.TextBlock(text.String()))
				textOpen = false
			}
		case model.EventMessageStop:
		}
	}

	// Close any block left open by a stream that ended without a stop event.
	switch {
	case tool != nil:
		input := parseToolInput(logger, tool.name, tool.input.String())
		blocks = append(blocks, model.ToolUseBlock(tool.id, tool.name, input))
	case textOpen:
		blocks = append(blocks, model.TextBlock(text.String()))
	}

	return model.AssistantMessage(blocks...), nil
}

// parseToolInput parses the accumulated input buffer of a tool_use block.
// A buffer that is empty or not a single JSON object defaults to an empty
// object; the tool still runs, parse failures never propagate up the stream.
func parseToolInput(logger log.Logger, tool, raw string) map[string]any {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}
	}
	var input map[string]any
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		logger.Warn("tool input is not a valid JSON object, defaulting to empty",
			"tool", tool, "error", err)
		return map[string]any{}
	}
	if input == nil {
		return map[string]any{}
	}
	return input
}

// toolOutcome carries one tool call's results in both directions: the full
// Result for the client event and the serialized content for the model's
// tool_result block.
type toolOutcome struct {
	result  tools.Result
	content string
	isError bool
}

// executeTools dispatches all tool_use blocks of one assistant turn
// concurrently and assembles outcomes in block order. Indexed slots keep
// each result associated with its originating call regardless of completion
// order.
func (d *Driver) executeTools(ctx context.Context, logger log.Logger, uses []model.Block) []toolOutcome {
	outcomes := make([]toolOutcome, len(uses))

	var wg sync.WaitGroup
	for i, use := range uses {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := d.exec.Execute(ctx, use.ToolName, use.Input, tools.WithRequestID(use.ToolID))
			outcomes[i] = newToolOutcome(res)
			logger.Debug("tool call finished",
				"tool", use.ToolName,
				"call_id", use.ToolID,
				"success", res.Success)
		}()
	}
	wg.Wait()

	return outcomes
}

func newToolOutcome(res tools.Result) toolOutcome {
	if res.Success {
		return toolOutcome{result: res, content: marshalContent(res.Data)}
	}
	return toolOutcome{result: res, content: marshalContent(res.Error), isError: true}
}

func marshalContent(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{"error":"unserializable tool output"}`
	}
	return string(b)
}

// toolSpecs converts executor definitions into model tool advertisements.
func toolSpecs(defs []tools.Definition) []model.ToolSpec {
	specs := make([]model.ToolSpec, 0, len(defs))
	for _, def := range defs {
		props := make(map[string]any, len(def.InputSchema))
		var required []string
		for name, field := range def.InputSchema {
			prop := map[string]any{"type": field.Type}
			if field.Description != "" {
				prop["description"] = field.Description
			}
			props[name] = prop
			if field.Required {
				required = append(required, name)
			}
		}
		sort.Strings(required)
		specs = append(specs, model.ToolSpec{
			Name:        def.Name,
			Description: def.Description,
			Properties:  props,
			Required:    required,
		})
	}
	return specs
}
