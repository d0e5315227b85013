package dispatch

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattwalker75/llf-control-plane/internal/toolregistry"
	"github.com/mattwalker75/llf-control-plane/pkg/models"
)

type echoExecutor struct{}

func (echoExecutor) Execute(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
	return args, nil
}

type hangingExecutor struct{}

func (hangingExecutor) Execute(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func newRegistryWithTool(t *testing.T, tool models.Tool) *toolregistry.Registry {
	t.Helper()
	r, err := toolregistry.Load(filepath.Join(t.TempDir(), "tools.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := r.Import(tool); err != nil {
		t.Fatalf("Import: %v", err)
	}
	return r
}

func TestInvokeUnknownTool(t *testing.T) {
	r := newRegistryWithTool(t, models.Tool{Name: "echo_tool", Kind: models.LLMInvokable, Enabled: models.EnabledOn})
	d, err := New(r, map[string]Executor{"echo_tool": echoExecutor{}}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res := d.Invoke(context.Background(), models.ToolCall{ID: "1", Name: "missing_tool"}, time.Second)
	if res.Success {
		t.Fatal("expected failure for unknown tool")
	}
}

func TestInvokeSuccess(t *testing.T) {
	r := newRegistryWithTool(t, models.Tool{Name: "echo_tool", Kind: models.LLMInvokable, Enabled: models.EnabledOn})
	d, err := New(r, map[string]Executor{"echo_tool": echoExecutor{}}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res := d.Invoke(context.Background(), models.ToolCall{ID: "1", Name: "echo_tool", Arguments: json.RawMessage(`{"x":1}`)}, time.Second)
	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Error)
	}
}

func TestInvokeSchemaValidation(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","required":["path"],"properties":{"path":{"type":"string"}}}`)
	r := newRegistryWithTool(t, models.Tool{Name: "read_file", Kind: models.LLMInvokable, Enabled: models.EnabledOn, Schema: schema})
	d, err := New(r, map[string]Executor{"read_file": echoExecutor{}}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res := d.Invoke(context.Background(), models.ToolCall{ID: "1", Name: "read_file", Arguments: json.RawMessage(`{}`)}, time.Second)
	if res.Success {
		t.Fatal("expected schema validation failure for missing required field")
	}
}

func TestInvokeDeniesNonWhitelistedPath(t *testing.T) {
	tool := models.Tool{
		Name: "read_file", Kind: models.LLMInvokable, Enabled: models.EnabledOn,
		Category: "file-access", Whitelist: []string{"/tmp/work/*"},
	}
	r := newRegistryWithTool(t, tool)
	d, err := New(r, map[string]Executor{"read_file": echoExecutor{}}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res := d.Invoke(context.Background(), models.ToolCall{ID: "1", Name: "read_file", Arguments: json.RawMessage(`{"path":"/etc/shadow"}`)}, time.Second)
	if res.Success {
		t.Fatal("expected denial for /etc/shadow against /tmp/work/* whitelist")
	}
}

func TestInvokeAllowsWhitelistedPath(t *testing.T) {
	tool := models.Tool{
		Name: "read_file", Kind: models.LLMInvokable, Enabled: models.EnabledOn,
		Category: "file-access", Whitelist: []string{"/tmp/work/*"},
	}
	r := newRegistryWithTool(t, tool)
	d, err := New(r, map[string]Executor{"read_file": echoExecutor{}}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res := d.Invoke(context.Background(), models.ToolCall{ID: "1", Name: "read_file", Arguments: json.RawMessage(`{"path":"/tmp/work/file.txt"}`)}, time.Second)
	if !res.Success {
		t.Fatalf("expected success for whitelisted path, got %q", res.Error)
	}
}

func TestInvokeTimeoutClamped(t *testing.T) {
	r := newRegistryWithTool(t, models.Tool{Name: "slow_tool", Kind: models.LLMInvokable, Enabled: models.EnabledOn})
	d, err := New(r, map[string]Executor{"slow_tool": hangingExecutor{}}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	start := time.Now()
	res := d.Invoke(context.Background(), models.ToolCall{ID: "1", Name: "slow_tool"}, 0)
	elapsed := time.Since(start)
	if !res.TimedOut {
		t.Fatal("expected timeout result")
	}
	if elapsed < minToolTimeout {
		t.Fatalf("expected timeout to be clamped to at least %s, took %s", minToolTimeout, elapsed)
	}
}

func TestInvokeRejectsDangerousCommand(t *testing.T) {
	tool := models.Tool{
		Name: "run_command", Kind: models.LLMInvokable, Enabled: models.EnabledOn,
		Category: "command-execution",
	}
	r := newRegistryWithTool(t, tool)
	d, err := New(r, map[string]Executor{"run_command": echoExecutor{}}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res := d.Invoke(context.Background(), models.ToolCall{ID: "1", Name: "run_command", Arguments: json.RawMessage(`{"command":"ls; rm -rf /"}`)}, time.Second)
	if res.Success {
		t.Fatal("expected denial for command containing shell metacharacters")
	}
}
