// Package anthropic adapts the Anthropic Messages streaming API to the
// model.Client contract.
package anthropic

import (
	"context"
	"errors"
	"iter"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lucasdpassos/pokedex-assistant/internal/fault"
	"github.com/lucasdpassos/pokedex-assistant/internal/log"
	"github.com/lucasdpassos/pokedex-assistant/internal/model"
)

// Config carries the provider settings.
type Config struct {
	APIKey string
	Model  string
}

// Client is a model.Client backed by the Anthropic Messages API.
type Client struct {
	api    sdk.Client
	model  sdk.Model
	logger log.Logger
}

// New creates a Client. APIKey and Model are required.
func New(cfg Config, logger log.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("model name is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{
		api:    sdk.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  sdk.Model(cfg.Model),
		logger: logger.With("component", "anthropic"),
	}, nil
}

// Stream implements model.Client. Provider events are translated one-to-one
// into model events; event shapes this driver does not consume (message
// metadata, thinking blocks) are dropped. A transport or API failure is
// yielded last as an external_api_error fault.
func (c *Client) Stream(ctx context.Context, req model.Request) iter.Seq2[model.Event, error] {
	return func(yield func(model.Event, error) bool) {
		stream := c.api.Messages.NewStreaming(ctx, c.params(req))
		defer stream.Close()

		for stream.Next() {
			ev, ok := translate(stream.Current())
			if !ok {
				continue
			}
			if !yield(ev, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			c.logger.Warn("model stream failed", "error", err)
			ferr := fault.Wrap(err, fault.CodeExternalAPI, "anthropic stream failed").
				WithDetail("service", "anthropic")
			yield(model.Event{}, ferr)
		}
	}
}

func (c *Client) params(req model.Request) sdk.MessageNewParams {
	params := sdk.MessageNewParams{
		Model:     c.model,
		MaxTokens: req.MaxTokens,
		Messages:  buildMessages(req.Messages),
		Tools:     buildTools(req.Tools),
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	return params
}

func buildMessages(history []model.Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, 0, len(history))
	for _, msg := range history {
		blocks := make([]sdk.ContentBlockParamUnion, 0, len(msg.Blocks))
		for _, b := range msg.Blocks {
			switch b.Kind {
			case model.BlockText:
				blocks = append(blocks, sdk.NewTextBlock(b.Text))
			case model.BlockToolUse:
				blocks = append(blocks, sdk.ContentBlockParamUnion{
					OfToolUse: &sdk.ToolUseBlockParam{
						ID:    b.ToolID,
						Name:  b.ToolName,
						Input: b.Input,
					},
				})
			case model.BlockToolResult:
				blocks = append(blocks, sdk.ContentBlockParamUnion{
					OfToolResult: &sdk.ToolResultBlockParam{
						ToolUseID: b.ToolID,
						IsError:   sdk.Bool(b.IsError),
						Content: []sdk.ToolResultBlockParamContentUnion{
							{OfText: &sdk.TextBlockParam{Text: b.Content}},
						},
					},
				})
			}
		}
		if msg.Role == model.RoleAssistant {
			out = append(out, sdk.NewAssistantMessage(blocks...))
		} else {
			out = append(out, sdk.NewUserMessage(blocks...))
		}
	}
	return out
}

func buildTools(specs []model.ToolSpec) []sdk.ToolUnionParam {
	if len(specs) == 0 {
		return nil
	}
	out := make([]sdk.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		out = append(out, sdk.ToolUnionParam{
			OfTool: &sdk.ToolParam{
				Name:        spec.Name,
				Description: sdk.String(spec.Description),
				InputSchema: sdk.ToolInputSchemaParam{
					Properties: spec.Properties,
					Required:   spec.Required,
				},
			},
		})
	}
	return out
}

// translate maps one provider stream event to a model event. The second
// return is false for events the driver has no use for.
func translate(event sdk.MessageStreamEventUnion) (model.Event, bool) {
	switch ev := event.AsAny().(type) {
	case sdk.ContentBlockStartEvent:
		switch block := ev.ContentBlock.AsAny().(type) {
		case sdk.TextBlock:
			return model.Event{Type: model.EventBlockStart, Kind: model.BlockText}, true
		case sdk.ToolUseBlock:
			return model.Event{
				Type: model.EventBlockStart,
				Kind: model.BlockToolUse,
				ID:   block.ID,
				Name: block.Name,
			}, true
		}
		return model.Event{}, false
	case sdk.ContentBlockDeltaEvent:
		switch delta := ev.Delta.AsAny().(type) {
		case sdk.TextDelta:
			return model.Event{Type: model.EventTextDelta, Text: delta.Text}, true
		case sdk.InputJSONDelta:
			return model.Event{Type: model.EventInputDelta, Partial: delta.PartialJSON}, true
		}
		return model.Event{}, false
	case sdk.ContentBlockStopEvent:
		return model.Event{Type: model.EventBlockStop}, true
	case sdk.MessageStopEvent:
		return model.Event{Type: model.EventMessageStop}, true
	}
	return model.Event{}, false
}
