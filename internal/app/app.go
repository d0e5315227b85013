// Package app wires the control plane's components into a single runnable
// unit: config store, tool registry, process supervisor, health prober,
// dispatcher, and chat pipeline. It is the bootstrap the CLI calls into,
// kept separate from cmd/ so it can also be exercised directly by tests.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattwalker75/llf-control-plane/internal/agent"
	"github.com/mattwalker75/llf-control-plane/internal/chatpipeline"
	"github.com/mattwalker75/llf-control-plane/internal/config"
	"github.com/mattwalker75/llf-control-plane/internal/dispatch"
	"github.com/mattwalker75/llf-control-plane/internal/health"
	"github.com/mattwalker75/llf-control-plane/internal/memorygate"
	"github.com/mattwalker75/llf-control-plane/internal/supervisor"
	"github.com/mattwalker75/llf-control-plane/internal/toolexec"
	"github.com/mattwalker75/llf-control-plane/internal/toolregistry"
	"github.com/mattwalker75/llf-control-plane/internal/tools/exec"
	"github.com/mattwalker75/llf-control-plane/internal/tools/files"
	"github.com/mattwalker75/llf-control-plane/pkg/models"
)

// App bundles every component the CLI drives, already wired together.
type App struct {
	Config     *config.Config
	Registry   *toolregistry.Registry
	Supervisor *supervisor.Manager
	Prober     *health.Prober
	Dispatcher *dispatch.Dispatcher
	Pipeline   *chatpipeline.Pipeline
	Logger     *slog.Logger
}

// registryFileName lives alongside the config file so a single --config
// directory fully describes one control-plane instance.
const registryFileName = "tools.json"

// Open loads the config and tool registry at configPath, registers every
// built-in tool the registry does not already hold, and wires
// the supervisor, dispatcher, and chat pipeline on top.
func Open(configPath string) (*App, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	registryPath := filepath.Join(filepath.Dir(configPath), registryFileName)
	registry, err := toolregistry.Load(registryPath)
	if err != nil {
		return nil, err
	}

	workspace, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("app: determine workspace: %w", err)
	}

	builtins, executors := builtinTools(workspace)
	if err := registerMissing(registry, builtins); err != nil {
		return nil, err
	}

	prober := health.New()
	sup := supervisor.New(cfg, prober, logger, cfg.CacheDir())

	dispatcher, err := dispatch.New(registry, executors, nil)
	if err != nil {
		return nil, err
	}

	pipeline := chatpipeline.New(cfg, sup, registry, dispatcher, logger)

	return &App{
		Config:     cfg,
		Registry:   registry,
		Supervisor: sup,
		Prober:     prober,
		Dispatcher: dispatcher,
		Pipeline:   pipeline,
		Logger:     logger,
	}, nil
}

// builtinTools constructs the in-process file and process tools, scoped to
// workspace, and their dispatch.Executor adapters keyed by tool name.
func builtinTools(workspace string) ([]agentToolDescriptor, map[string]dispatch.Executor) {
	fileCfg := files.Config{Workspace: workspace}
	execManager := exec.NewManager(workspace)

	tools := []agent.Tool{
		files.NewReadTool(fileCfg),
		files.NewWriteTool(fileCfg),
		files.NewEditTool(fileCfg),
		files.NewApplyPatchTool(fileCfg),
		exec.NewExecTool("exec", execManager),
		exec.NewProcessTool(execManager),
	}
	categories := map[string]string{
		"read":        "file-access",
		"write":       "file-access",
		"edit":        "file-access",
		"apply_patch": "file-access",
		"exec":        "command-execution",
		"process":     "command-execution",
	}

	descriptors := make([]agentToolDescriptor, 0, len(tools))
	executors := make(map[string]dispatch.Executor, len(tools))
	for _, t := range tools {
		name, description, schema := toolexec.Metadata(t)
		descriptors = append(descriptors, agentToolDescriptor{
			name:        name,
			description: description,
			schema:      schema,
			category:    categories[name],
		})
		executors[name] = toolexec.Adapter{Tool: t}
	}
	return descriptors, executors
}

type agentToolDescriptor struct {
	name        string
	description string
	schema      []byte
	category    string
}

// registerMissing adds any built-in tool not already present in registry,
// defaulting new tools to EnabledAuto so the model may call them without a
// separate "tool enable" step, matching the registry's tri-state default.
func registerMissing(registry *toolregistry.Registry, builtins []agentToolDescriptor) error {
	for _, b := range builtins {
		if _, ok := registry.Get(b.name); ok {
			continue
		}
		t := models.Tool{
			Name:        b.name,
			Kind:        models.LLMInvokable,
			Description: b.description,
			Schema:      b.schema,
			Enabled:     models.EnabledAuto,
			Category:    b.category,
		}
		if err := registry.Import(t); err != nil {
			return fmt.Errorf("app: register builtin tool %s: %w", b.name, err)
		}
	}
	return nil
}

// EnsureBackendRunning starts name's backend if it is not already running,
// the shared precondition for both "server start" and issuing a chat turn
// against a Local backend.
func (a *App) EnsureBackendRunning(ctx context.Context, name string, force bool) (models.ServerProcess, error) {
	return a.Supervisor.Start(ctx, name, force)
}

// MemoryProbeAvailable reports whether the default system memory probe can
// read free memory on this platform. When it cannot, the memory safety gate
// has no free-memory figure to compare against.
func MemoryProbeAvailable() bool {
	_, err := memorygate.SystemMemoryProbe()
	return err == nil
}
