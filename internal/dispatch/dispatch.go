package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	execsafety "github.com/mattwalker75/llf-control-plane/internal/exec"
	"github.com/mattwalker75/llf-control-plane/internal/metrics"
	"github.com/mattwalker75/llf-control-plane/internal/tools/security"
	"github.com/mattwalker75/llf-control-plane/internal/toolregistry"
	"github.com/mattwalker75/llf-control-plane/pkg/models"
)

const (
	minToolTimeout = 1 * time.Second
	maxToolTimeout = 300 * time.Second
)

// Executor performs the actual side effect of a single tool call. It is the
// only piece of a tool's behavior that varies per tool; everything else
// (lookup, validation, whitelist, approval, timeout) is handled uniformly
// by the Dispatcher.
type Executor interface {
	Execute(ctx context.Context, args json.RawMessage) (json.RawMessage, error)
}

// ApprovalChecker reports whether an explicit, call-specific approval has
// been granted for a tool invocation whose target falls outside an
// otherwise-whitelisted pattern, or inside a dangerous-path blocklist.
type ApprovalChecker interface {
	IsApproved(ctx context.Context, toolName string, args json.RawMessage) bool
}

// alwaysDenyApproval is used when no ApprovalChecker is configured: every
// call that needs explicit approval is denied, never silently allowed.
type alwaysDenyApproval struct{}

func (alwaysDenyApproval) IsApproved(context.Context, string, json.RawMessage) bool { return false }

// dangerousPathPrefixes are blocked for file-access tools even when a
// whitelist pattern would otherwise match, per the resolved "block even
// when whitelisted" design decision.
var dangerousPathPrefixes = []string{
	"/etc/shadow",
	"/etc/passwd",
	"/etc/sudoers",
	"/root/.ssh",
	"/home/*/.ssh",
}

// Dispatcher validates and executes tool calls one at a time within a turn.
type Dispatcher struct {
	registry  *toolregistry.Registry
	executors map[string]Executor
	schemas   map[string]*jsonschema.Schema
	approval  ApprovalChecker
}

// New builds a Dispatcher over a tool registry and a set of per-tool
// executors. Tools present in the registry but absent from executors can
// still be listed, but Invoke on them fails with ErrToolNotFound.
func New(registry *toolregistry.Registry, executors map[string]Executor, approval ApprovalChecker) (*Dispatcher, error) {
	if approval == nil {
		approval = alwaysDenyApproval{}
	}
	d := &Dispatcher{
		registry:  registry,
		executors: executors,
		schemas:   make(map[string]*jsonschema.Schema),
		approval:  approval,
	}
	for _, t := range registry.List() {
		if len(t.Schema) == 0 {
			continue
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(t.Name+".json", strings.NewReader(string(t.Schema))); err != nil {
			return nil, fmt.Errorf("dispatch: add schema resource %s: %w", t.Name, err)
		}
		schema, err := compiler.Compile(t.Name + ".json")
		if err != nil {
			return nil, fmt.Errorf("dispatch: compile schema %s: %w", t.Name, err)
		}
		d.schemas[t.Name] = schema
	}
	return d, nil
}

// Invoke runs a single tool call through the full validation sequence
// (lookup, schema, whitelist/approval, execution) and normalizes the
// outcome into a ToolResult. Invoke has no error return: every failure,
// including an unknown tool, is reported through the ToolResult itself.
func (d *Dispatcher) Invoke(ctx context.Context, tc models.ToolCall, timeout time.Duration) (result models.ToolResult) {
	defer func() {
		outcome := "success"
		switch {
		case result.TimedOut:
			outcome = "timeout"
		case !result.Success:
			outcome = "failure"
		}
		metrics.IncDispatch(tc.Name, outcome)
	}()

	tool, ok := d.registry.Get(tc.Name)
	if !ok {
		return errorResult(tc.ID, ErrToolNotFound)
	}
	if !d.registry.IsEnabled(tc.Name) {
		return errorResult(tc.ID, fmt.Errorf("%w: %s is disabled", ErrToolNotFound, tc.Name))
	}

	if schema, ok := d.schemas[tc.Name]; ok {
		var decoded any
		if err := json.Unmarshal(tc.Arguments, &decoded); err != nil {
			return errorResult(tc.ID, fmt.Errorf("%w: %v", ErrArgsInvalid, err))
		}
		if err := schema.Validate(decoded); err != nil {
			return errorResult(tc.ID, fmt.Errorf("%w: %v", ErrArgsInvalid, err))
		}
	}

	if denied, reason := d.checkWhitelist(ctx, tool, tc); denied {
		return errorResult(tc.ID, fmt.Errorf("%w: %s", ErrApprovalRequired, reason))
	}

	executor, ok := d.executors[tc.Name]
	if !ok {
		return errorResult(tc.ID, ErrToolNotFound)
	}

	clamped := clampTimeout(timeout)
	execCtx, cancel := context.WithTimeout(ctx, clamped)
	defer cancel()

	data, err := executor.Execute(execCtx, tc.Arguments)
	if err != nil {
		if execCtx.Err() != nil {
			return models.ToolResult{ToolCallID: tc.ID, Success: false, Error: ErrToolTimeout.Error(), TimedOut: true}
		}
		return errorResult(tc.ID, fmt.Errorf("%w: %v", ErrToolFailed, err))
	}

	return models.ToolResult{ToolCallID: tc.ID, Success: true, Data: data}
}

func clampTimeout(d time.Duration) time.Duration {
	if d < minToolTimeout {
		return minToolTimeout
	}
	if d > maxToolTimeout {
		return maxToolTimeout
	}
	return d
}

func errorResult(toolCallID string, err error) models.ToolResult {
	return models.ToolResult{ToolCallID: toolCallID, Success: false, Error: err.Error()}
}

// checkWhitelist applies the category-specific gating rule for a tool:
// file-access tools are checked against a whitelist pattern and a
// dangerous-path blocklist; command-execution tools are checked against a
// whitelist of allowed program names plus a shell-metacharacter screen.
// Returns (true, reason) when the call must be denied absent explicit
// approval.
func (d *Dispatcher) checkWhitelist(ctx context.Context, tool models.Tool, tc models.ToolCall) (bool, string) {
	switch tool.Category {
	case "file-access":
		target := extractStringArg(tc.Arguments, "path")
		if target == "" {
			return false, ""
		}
		if matchesAny(dangerousPathPrefixes, target) && !(tool.RequiresApproval && d.approval.IsApproved(ctx, tc.Name, tc.Arguments)) {
			return true, "target matches a protected path and has not been explicitly approved"
		}
		if len(tool.Whitelist) == 0 {
			return false, ""
		}
		allowed := false
		for _, pattern := range tool.Whitelist {
			if toolregistry.MatchesPattern(pattern, target) {
				allowed = true
				break
			}
		}
		if !allowed && !(tool.RequiresApproval && d.approval.IsApproved(ctx, tc.Name, tc.Arguments)) {
			return true, "target is not covered by any whitelist pattern"
		}
		return false, ""

	case "command-execution":
		command := extractStringArg(tc.Arguments, "command")
		if command == "" {
			return false, ""
		}
		if len(tool.Whitelist) > 0 {
			program := firstToken(command)
			allowed := false
			for _, pattern := range tool.Whitelist {
				if toolregistry.MatchesPattern(pattern, program) {
					allowed = true
					break
				}
			}
			if !allowed {
				return true, "command program is not on the whitelist"
			}
		}
		if !execsafety.IsSafeExecutableValue(firstToken(command)) {
			return true, "command program fails executable safety screening"
		}
		analysis := security.AnalyzeCommand(command)
		if !analysis.IsSafe && !d.approval.IsApproved(ctx, tc.Name, tc.Arguments) {
			return true, "command contains dangerous shell tokens: " + analysis.Reason
		}
		return false, ""

	default:
		return false, ""
	}
}

func extractStringArg(args json.RawMessage, key string) string {
	var m map[string]any
	if err := json.Unmarshal(args, &m); err != nil {
		return ""
	}
	v, ok := m[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func matchesAny(patterns []string, target string) bool {
	targetSegs := strings.Split(target, "/")
	for _, p := range patterns {
		if toolregistry.MatchesPattern(p, target) {
			return true
		}
		// Also match anything under p, segment by segment ("*" is one segment).
		patSegs := strings.Split(p, "/")
		under := len(patSegs) <= len(targetSegs)
		for i := 0; under && i < len(patSegs); i++ {
			under = patSegs[i] == "*" || patSegs[i] == targetSegs[i]
		}
		if under {
			return true
		}
	}
	return false
}
