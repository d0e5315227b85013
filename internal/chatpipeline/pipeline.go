// Package chatpipeline implements the streaming chat pipeline (base spec
// §4.8): the component that ties the router, process supervisor, tool
// registry, dispatcher, upstream client, and XML tool adapter together into
// one bounded multi-turn loop per chat request.
package chatpipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mattwalker75/llf-control-plane/internal/agent"
	"github.com/mattwalker75/llf-control-plane/internal/config"
	"github.com/mattwalker75/llf-control-plane/internal/dispatch"
	"github.com/mattwalker75/llf-control-plane/internal/router"
	"github.com/mattwalker75/llf-control-plane/internal/supervisor"
	"github.com/mattwalker75/llf-control-plane/internal/toolregistry"
	"github.com/mattwalker75/llf-control-plane/internal/xmlcall"
	"github.com/mattwalker75/llf-control-plane/pkg/models"
)

const (
	defaultMaxToolRounds = 8
	defaultToolTimeout   = 30 * time.Second
)

// EventType classifies one frame a Pipeline turn emits to its caller.
type EventType string

const (
	EventContentDelta  EventType = "content_delta"
	EventToolCallStart EventType = "tool_call_start"
	EventToolCallDone  EventType = "tool_call_done"
	EventDone          EventType = "done"
	EventError         EventType = "error"
)

// Event is one frame of a chat turn surfaced by Pipeline.Run.
type Event struct {
	Type         EventType
	Content      string
	ToolCall     models.ToolCall
	ToolResult   models.ToolResult
	FinishReason string
	Err          error
}

// Pipeline wires the components a chat turn needs: an endpoint resolver, the
// process supervisor (to ensure a Local backend is Ready before the first
// token), the tool registry and dispatcher, and the upstream client.
type Pipeline struct {
	cfg        *config.Config
	supervisor *supervisor.Manager
	registry   *toolregistry.Registry
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger

	// MaxToolRounds bounds how many model/tool round-trips one turn may take
	// before failing with ErrToolLoopExceeded. Zero uses the default of 8.
	MaxToolRounds int
	// ToolTimeout bounds a single tool invocation. Zero uses a 30s default;
	// the dispatcher clamps this further to [1s, 300s] regardless.
	ToolTimeout time.Duration
}

// New builds a Pipeline over its dependent components.
func New(cfg *config.Config, sup *supervisor.Manager, registry *toolregistry.Registry, dispatcher *dispatch.Dispatcher, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:        cfg,
		supervisor: sup,
		registry:   registry,
		dispatcher: dispatcher,
		logger:     logger.With("component", "chatpipeline"),
	}
}

// Run resolves an endpoint, ensures a Local backend is Ready, and starts a
// bounded tool-calling turn over messages. mode overrides the configured
// tool_execution_mode when non-empty. The returned channel is closed after a
// terminal EventDone or EventError frame; an error returned directly (rather
// than as an EventError) means the turn never started.
func (p *Pipeline) Run(ctx context.Context, messages []models.Message, mode models.ToolExecutionMode) (<-chan Event, error) {
	endpoint, err := router.Resolve(p.cfg)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseResolve, Err: fmt.Errorf("%w: %v", ErrNoActiveBackend, err)}
	}

	if endpoint.Kind == models.BackendLocal && p.supervisor != nil && !p.supervisor.IsRunning(endpoint.BackendName) {
		if _, err := p.supervisor.Start(ctx, endpoint.BackendName, false); err != nil {
			return nil, &PipelineError{Phase: PhaseSupervise, Err: err}
		}
	}

	if mode == "" {
		mode = p.cfg.Endpoint().ToolExecutionMode
	}
	if mode == "" {
		mode = models.SinglePass
	}

	maxRounds := p.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxToolRounds
	}
	toolTimeout := p.ToolTimeout
	if toolTimeout <= 0 {
		toolTimeout = defaultToolTimeout
	}

	client := agent.NewClient(endpoint.BaseURL, endpoint.APIKey)
	toolSpecs := p.loadToolSpecs()

	history := make([]models.Message, len(messages))
	copy(history, messages)

	events := make(chan Event)
	go p.runLoop(ctx, events, client, endpoint, history, toolSpecs, mode, maxRounds, toolTimeout)
	return events, nil
}

// loadToolSpecs builds the LLM-facing function declarations for every
// enabled LLMInvokable tool in the registry.
func (p *Pipeline) loadToolSpecs() []models.ToolSpec {
	if p.registry == nil {
		return nil
	}
	var specs []models.ToolSpec
	for _, t := range p.registry.ListByKind(models.LLMInvokable) {
		if !p.registry.IsEnabled(t.Name) {
			continue
		}
		specs = append(specs, models.ToolSpec{
			Name:        t.Name,
			Description: t.Description,
			Schema:      t.Schema,
		})
	}
	return specs
}

// runLoop drives the bounded model/tool round-trip loop, emitting Events as
// it goes. It owns the events channel and always closes it before returning.
func (p *Pipeline) runLoop(ctx context.Context, events chan<- Event, client *agent.Client, endpoint router.Endpoint, messages []models.Message, toolSpecs []models.ToolSpec, mode models.ToolExecutionMode, maxRounds int, toolTimeout time.Duration) {
	defer close(events)

	for round := 1; ; round++ {
		if round > maxRounds {
			events <- Event{Type: EventError, Err: fmt.Errorf("%w: after %d rounds", ErrToolLoopExceeded, maxRounds)}
			return
		}

		req := models.ChatRequest{Model: endpoint.ModelName, Messages: messages, Tools: toolSpecs}
		content, calls, finishReason, err := p.streamOneRound(ctx, events, client, req)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				events <- Event{Type: EventError, Err: ErrCanceled}
			} else {
				events <- Event{Type: EventError, Err: &PipelineError{Phase: PhaseUpstream, Err: err}}
			}
			return
		}

		if len(calls) == 0 {
			events <- Event{Type: EventDone, FinishReason: finishReason}
			return
		}

		messages = append(messages, models.Message{Role: models.RoleAssistant, Content: content, ToolCalls: calls})

		anyMutating, ok := p.runToolCalls(ctx, events, calls, toolTimeout, &messages)
		if !ok {
			events <- Event{Type: EventError, Err: ErrCanceled}
			return
		}

		if mode == models.DualPassWriteOnly && !anyMutating {
			events <- Event{Type: EventDone, FinishReason: "tool_calls"}
			return
		}
		// SinglePass and DualPassAll (and any unrecognized mode, treated as
		// SinglePass) both re-invoke the model after every tool round.
	}
}

// streamOneRound opens one upstream streaming call and forwards each content
// delta to events as it arrives (base spec §4.8 step 5's streaming
// passthrough), while also accumulating the full text for the round's
// history entry and for XML tool-call detection, which needs the complete
// response before it can run. Returns the accumulated content, any completed
// tool calls (native channel, falling back to the XML adapter when the model
// embeds calls in its content instead), and the stream's finish reason.
func (p *Pipeline) streamOneRound(ctx context.Context, events chan<- Event, client *agent.Client, req models.ChatRequest) (string, []models.ToolCall, string, error) {
	streamEvents, err := client.StreamChat(ctx, req)
	if err != nil {
		return "", nil, "", err
	}

	var content strings.Builder
	var nativeCalls []models.ToolCall
	var finishReason string
	var streamErr error

	for ev := range streamEvents {
		switch ev.Type {
		case agent.EventContentDelta:
			if ev.ContentDelta != "" {
				events <- Event{Type: EventContentDelta, Content: ev.ContentDelta}
			}
			content.WriteString(ev.ContentDelta)
		case agent.EventToolCallDone:
			nativeCalls = append(nativeCalls, ev.ToolCall)
		case agent.EventMessageDone:
			finishReason = ev.FinishReason
		case agent.EventError:
			streamErr = ev.Err
		}
	}
	if streamErr != nil {
		return "", nil, "", streamErr
	}

	text := content.String()
	calls := nativeCalls
	if len(calls) == 0 && xmlcall.ContainsCall(text) {
		calls = xmlcall.Parse(text)
	}
	return text, calls, finishReason, nil
}

// runToolCalls serially dispatches each completed tool call (base spec §4.8
// step 6's "never parallel" rule), appending a tool-role message per result
// and reporting whether any dispatched tool is classified as mutating. The
// second return value is false if ctx was canceled before every call ran.
func (p *Pipeline) runToolCalls(ctx context.Context, events chan<- Event, calls []models.ToolCall, toolTimeout time.Duration, messages *[]models.Message) (bool, bool) {
	anyMutating := false
	for _, call := range calls {
		select {
		case <-ctx.Done():
			return anyMutating, false
		default:
		}

		events <- Event{Type: EventToolCallStart, ToolCall: call}
		result := p.dispatcher.Invoke(ctx, call, toolTimeout)
		events <- Event{Type: EventToolCallDone, ToolCall: call, ToolResult: result}

		if tool, ok := p.registry.Get(call.Name); ok && isMutating(tool) {
			anyMutating = true
		}

		*messages = append(*messages, models.Message{
			Role:       models.RoleTool,
			ToolCallID: call.ID,
			Content:    toolResultContent(result),
		})
	}
	return anyMutating, true
}

// toolResultContent renders a ToolResult as the JSON text fed back to the
// model in a tool-role message.
func toolResultContent(result models.ToolResult) string {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf(`{"tool_call_id":%q,"success":false,"error":"encode tool result"}`, result.ToolCallID)
	}
	return string(raw)
}

// isMutating classifies a tool as having an external side effect, the
// coarse signal DualPassWriteOnly uses to decide whether a follow-up model
// pass is warranted: command execution and the write/edit/patch family of
// file tools mutate; everything else (read, list, search) does not.
func isMutating(t models.Tool) bool {
	if t.Category == "command-execution" {
		return true
	}
	switch t.Name {
	case "write", "edit", "apply_patch", "exec", "process":
		return true
	default:
		return false
	}
}

// Chat reduces Run to a single buffered ChatResponse, the non-streaming form
// base spec §4.8 step 7 describes: the same bounded loop, with every tool
// round resolved before the caller sees anything.
func (p *Pipeline) Chat(ctx context.Context, messages []models.Message, mode models.ToolExecutionMode) (models.ChatResponse, error) {
	events, err := p.Run(ctx, messages, mode)
	if err != nil {
		return models.ChatResponse{}, err
	}

	var resp models.ChatResponse
	var content strings.Builder
	for ev := range events {
		switch ev.Type {
		case EventContentDelta:
			content.WriteString(ev.Content)
		case EventDone:
			resp.FinishReason = ev.FinishReason
		case EventError:
			return models.ChatResponse{}, ev.Err
		}
	}
	resp.Message = models.Message{Role: models.RoleAssistant, Content: content.String()}
	return resp, nil
}
