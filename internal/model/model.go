// Package model defines the provider-neutral conversation contract: message
// history as ordered content blocks, incremental response-stream events, and
// the Client interface a provider adapter implements.
//
// The chat driver depends only on this package; provider specifics live in
// adapters such as model/anthropic.
package model

import (
	"context"
	"iter"
)

// EventType enumerates the increments of a model response stream.
type EventType string

const (
	// EventBlockStart opens a content block. Kind says whether it is a
	// text block or a tool_use block; tool_use starts carry ID and Name.
	EventBlockStart EventType = "block_start"

	// EventTextDelta appends Text to the open text block.
	EventTextDelta EventType = "text_delta"

	// EventInputDelta appends Partial, a verbatim fragment of the tool
	// input JSON, to the open tool_use block. Fragments split at
	// arbitrary byte boundaries; only the concatenation of all fragments
	// is parseable.
	EventInputDelta EventType = "input_delta"

	// EventBlockStop closes the open block.
	EventBlockStop EventType = "block_stop"

	// EventMessageStop ends the assistant message.
	EventMessageStop EventType = "message_stop"
)

// BlockKind enumerates content block kinds.
type BlockKind string

const (
	BlockText       BlockKind = "text"
	BlockToolUse    BlockKind = "tool_use"
	BlockToolResult BlockKind = "tool_result"
)

// Event is one increment of a model response stream.
type Event struct {
	Type EventType

	// Kind, ID, and Name describe the block opened by EventBlockStart.
	Kind BlockKind
	ID   string
	Name string

	// Text carries an EventTextDelta payload.
	Text string

	// Partial carries an EventInputDelta fragment.
	Partial string
}

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Block is one content block of a conversation message.
type Block struct {
	Kind BlockKind

	// Text is the content of a text block.
	Text string

	// ToolID associates a tool_use block with its tool_result block.
	ToolID string

	// ToolName and Input belong to tool_use blocks.
	ToolName string
	Input    map[string]any

	// Content and IsError belong to tool_result blocks. Content is the
	// serialized tool output; IsError marks a failed execution whose
	// failure is carried as data.
	Content string
	IsError bool
}

// Message is one conversation turn: an ordered list of content blocks.
type Message struct {
	Role   Role
	Blocks []Block
}

// TextBlock builds a text content block.
func TextBlock(text string) Block {
	return Block{Kind: BlockText, Text: text}
}

// ToolUseBlock builds a tool invocation block.
func ToolUseBlock(id, name string, input map[string]any) Block {
	return Block{Kind: BlockToolUse, ToolID: id, ToolName: name, Input: input}
}

// ToolResultBlock builds a tool outcome block tied to the tool_use block
// with the same id.
func ToolResultBlock(id, content string, isError bool) Block {
	return Block{Kind: BlockToolResult, ToolID: id, Content: content, IsError: isError}
}

// UserText builds a user message holding a single text block.
func UserText(text string) Message {
	return Message{Role: RoleUser, Blocks: []Block{TextBlock(text)}}
}

// AssistantMessage builds an assistant message from blocks.
func AssistantMessage(blocks ...Block) Message {
	return Message{Role: RoleAssistant, Blocks: blocks}
}

// ToolResultsMessage builds the synthetic turn carrying tool results back to
// the model. It is authored as a user message per the messages wire format.
func ToolResultsMessage(blocks ...Block) Message {
	return Message{Role: RoleUser, Blocks: blocks}
}

// Text concatenates the message's text blocks.
func (m Message) Text() string {
	var out string
	for _, b := range m.Blocks {
		if b.Kind == BlockText {
			out += b.Text
		}
	}
	return out
}

// ToolUses returns the message's tool_use blocks in order.
func (m Message) ToolUses() []Block {
	var uses []Block
	for _, b := range m.Blocks {
		if b.Kind == BlockToolUse {
			uses = append(uses, b)
		}
	}
	return uses
}

// ToolSpec advertises one callable tool to the model.
type ToolSpec struct {
	Name        string
	Description string

	// Properties maps input field names to their JSON Schema fragments.
	Properties map[string]any

	// Required lists the mandatory field names, sorted.
	Required []string
}

// Request is one model invocation: full history plus tool advertisements.
type Request struct {
	System    string
	Messages  []Message
	Tools     []ToolSpec
	MaxTokens int64
}

// Client streams model responses as incremental events.
//
// Stream yields events in arrival order. A transport or provider failure is
// yielded as the final pair with a non-nil error; a clean stream ends after
// EventMessageStop without an error pair. Implementations stop promptly when
// ctx is cancelled or the consumer breaks out of the range.
type Client interface {
	Stream(ctx context.Context, req Request) iter.Seq2[Event, error]
}
