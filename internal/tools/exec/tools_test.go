package exec

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestExecToolRunsForegroundCommand(t *testing.T) {
	mgr := NewManager(t.TempDir())
	tool := NewExecTool("exec", mgr)

	params, _ := json.Marshal(map[string]interface{}{"command": "echo hello"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %s", result.Content)
	}
	if !strings.Contains(result.Content, "hello") {
		t.Fatalf("expected stdout to contain command output: %s", result.Content)
	}
}

func TestExecToolDefaultsNameWhenBlank(t *testing.T) {
	tool := NewExecTool("", NewManager(t.TempDir()))
	if tool.Name() != "exec" {
		t.Fatalf("expected default name exec, got %q", tool.Name())
	}
}

func TestProcessToolTracksBackgroundJob(t *testing.T) {
	mgr := NewManager(t.TempDir())
	execTool := NewExecTool("exec", mgr)
	procTool := NewProcessTool(mgr)

	startParams, _ := json.Marshal(map[string]interface{}{
		"command":    "echo background",
		"background": true,
	})
	startResult, err := execTool.Execute(context.Background(), startParams)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if startResult.IsError {
		t.Fatalf("expected start success: %s", startResult.Content)
	}

	var started struct {
		ProcessID string `json:"process_id"`
	}
	if err := json.Unmarshal([]byte(startResult.Content), &started); err != nil {
		t.Fatalf("parse start result: %v", err)
	}
	if started.ProcessID == "" {
		t.Fatalf("expected a non-empty process_id")
	}

	time.Sleep(50 * time.Millisecond)

	statusParams, _ := json.Marshal(map[string]interface{}{
		"action":     "status",
		"process_id": started.ProcessID,
	})
	statusResult, err := procTool.Execute(context.Background(), statusParams)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if statusResult.IsError {
		t.Fatalf("expected status success: %s", statusResult.Content)
	}

	removeParams, _ := json.Marshal(map[string]interface{}{
		"action":     "remove",
		"process_id": started.ProcessID,
	})
	removeResult, err := procTool.Execute(context.Background(), removeParams)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removeResult.IsError {
		t.Fatalf("expected remove success: %s", removeResult.Content)
	}
}

func TestProcessToolRejectsUnknownProcessID(t *testing.T) {
	mgr := NewManager(t.TempDir())
	procTool := NewProcessTool(mgr)

	params, _ := json.Marshal(map[string]interface{}{
		"action":     "status",
		"process_id": "does-not-exist",
	})
	result, err := procTool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected error for unknown process id")
	}
}
