package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mattwalker75/llf-control-plane/pkg/models"
)

// EventType classifies a single frame surfaced from StreamChat, matching
// base spec §4.8 step 5's "identify one of: token delta, partial
// tool-call delta, tool-call completion, end-of-message, error".
type EventType string

const (
	EventContentDelta  EventType = "content_delta"
	EventToolCallDelta EventType = "tool_call_delta"
	EventToolCallDone  EventType = "tool_call_done"
	EventMessageDone   EventType = "message_done"
	EventError         EventType = "error"
)

// StreamEvent is one frame of a chat completion stream.
type StreamEvent struct {
	Type         EventType
	ContentDelta string
	ToolCall     models.ToolCall // set on EventToolCallDone
	FinishReason string          // set on EventMessageDone
	Err          error           // set on EventError
}

// StreamChat opens an upstream streaming chat completion and returns a
// channel of StreamEvents in upstream order. The channel is closed after
// an EventMessageDone or EventError frame. Closing ctx aborts the
// upstream read: one EventError carrying ctx.Err() is sent and the channel
// is then closed.
func (c *Client) StreamChat(ctx context.Context, req models.ChatRequest) (<-chan StreamEvent, error) {
	chatReq := toOpenAIRequest(req)
	chatReq.Stream = true

	stream, err := c.oai.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, err
	}

	events := make(chan StreamEvent)
	go pumpStream(ctx, stream, events)
	return events, nil
}

// Chat reduces StreamChat to a single buffered response, per base spec
// §4.8 step 7 ("non-streaming form reduces to the same loop with a
// buffered final response").
func (c *Client) Chat(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error) {
	events, err := c.StreamChat(ctx, req)
	if err != nil {
		return models.ChatResponse{}, err
	}

	var resp models.ChatResponse
	var content []byte
	for ev := range events {
		switch ev.Type {
		case EventContentDelta:
			content = append(content, ev.ContentDelta...)
		case EventToolCallDone:
			resp.ToolCalls = append(resp.ToolCalls, ev.ToolCall)
		case EventMessageDone:
			resp.FinishReason = ev.FinishReason
		case EventError:
			return models.ChatResponse{}, ev.Err
		}
	}
	resp.Message = models.Message{
		Role:      models.RoleAssistant,
		Content:   string(content),
		ToolCalls: resp.ToolCalls,
	}
	return resp, nil
}

// pumpStream reads frames off the upstream SSE stream, coalesces
// tool-call deltas by index, and republishes them as StreamEvents. This
// is the teacher's processStream shape (internal/agent/providers/openai.go
// in the pre-transform tree), trimmed of the multi-provider retry layer
// since a single Client only ever talks to one resolved backend.
func pumpStream(ctx context.Context, stream *openai.ChatCompletionStream, events chan<- StreamEvent) {
	defer close(events)
	defer stream.Close()

	toolCalls := map[int]*models.ToolCall{}
	order := []int{}

	emitCompletedToolCalls := func() {
		for _, idx := range order {
			tc := toolCalls[idx]
			if tc != nil && tc.ID != "" && tc.Name != "" {
				events <- StreamEvent{Type: EventToolCallDone, ToolCall: *tc}
			}
		}
		toolCalls = map[int]*models.ToolCall{}
		order = order[:0]
	}

	for {
		select {
		case <-ctx.Done():
			events <- StreamEvent{Type: EventError, Err: ctx.Err()}
			return
		default:
		}

		chunk, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				emitCompletedToolCalls()
				events <- StreamEvent{Type: EventMessageDone, FinishReason: "stop"}
				return
			}
			events <- StreamEvent{Type: EventError, Err: err}
			return
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		delta := choice.Delta

		if delta.Content != "" {
			events <- StreamEvent{Type: EventContentDelta, ContentDelta: delta.Content}
		}

		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			if toolCalls[idx] == nil {
				toolCalls[idx] = &models.ToolCall{}
				order = append(order, idx)
			}
			if tc.ID != "" {
				toolCalls[idx].ID = tc.ID
			}
			if tc.Function.Name != "" {
				toolCalls[idx].Name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				toolCalls[idx].Arguments = append(toolCalls[idx].Arguments, []byte(tc.Function.Arguments)...)
			}
			events <- StreamEvent{Type: EventToolCallDelta, ToolCall: *toolCalls[idx]}
		}

		if choice.FinishReason == openai.FinishReasonToolCalls {
			emitCompletedToolCalls()
		}
	}
}

// toOpenAIRequest converts the control plane's wire-shaped ChatRequest
// into go-openai's request type.
func toOpenAIRequest(req models.ChatRequest) openai.ChatCompletionRequest {
	out := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(req.Messages)),
	}
	if req.MaxTokens > 0 {
		out.MaxTokens = req.MaxTokens
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, toOpenAIMessage(m))
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, toOpenAITool(t))
	}
	return out
}

func toOpenAIMessage(m models.Message) openai.ChatCompletionMessage {
	out := openai.ChatCompletionMessage{
		Role:       string(m.Role),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	for _, tc := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
			ID:   tc.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      tc.Name,
				Arguments: string(tc.Arguments),
			},
		})
	}
	return out
}

func toOpenAITool(t models.ToolSpec) openai.Tool {
	var schema map[string]any
	if len(t.Schema) > 0 {
		if err := json.Unmarshal(t.Schema, &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
	} else {
		schema = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schema,
		},
	}
}
