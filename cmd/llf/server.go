package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/mattwalker75/llf-control-plane/internal/app"
	"github.com/mattwalker75/llf-control-plane/pkg/models"
)

const wildcardHost = "0.0.0.0"
const loopbackHost = "127.0.0.1"

// buildServerCmd creates the "server" command group: start|stop|status|
// list|switch, exercising C4 (supervisor), C7 (router), and C1 (config).
func buildServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Manage supervised local LLM backends",
	}
	cmd.AddCommand(
		buildServerStartCmd(),
		buildServerStopCmd(),
		buildServerStatusCmd(),
		buildServerListCmd(),
		buildServerSwitchCmd(),
	)
	return cmd
}

func buildServerStartCmd() *cobra.Command {
	var force, share bool
	cmd := &cobra.Command{
		Use:   "start <name>",
		Short: "Start (or adopt) a local backend's server process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			a, err := app.Open(configPath)
			if err != nil {
				return err
			}

			if share {
				if err := a.Config.SetBackendHost(name, wildcardHost); err != nil {
					return err
				}
			}

			proc, err := a.EnsureBackendRunning(ensureContext(cmd), name, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (pid %d, port %d)\n", name, proc.State, proc.PID, proc.Port)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "bypass the memory safety gate")
	cmd.Flags().BoolVar(&share, "share", false, "bind to the wildcard address instead of loopback")
	return cmd
}

func buildServerStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <name>",
		Short: "Stop a supervised backend's server process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			a, err := app.Open(configPath)
			if err != nil {
				return err
			}
			if err := a.Supervisor.Stop(ensureContext(cmd), name); err != nil {
				return err
			}
			// --share persists the bind address; restore loopback on stop so
			// the next plain "server start" doesn't inherit a wildcard bind.
			_ = a.Config.SetBackendHost(name, loopbackHost)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: stopped\n", name)
			return nil
		},
	}
}

func buildServerStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <name>",
		Short: "Show a backend's current lifecycle state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			a, err := app.Open(configPath)
			if err != nil {
				return err
			}
			proc, ok := a.Supervisor.Snapshot(name)
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, models.StateStopped)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (pid %d, port %d, started %s)\n",
				name, proc.State, proc.PID, proc.Port, proc.StartedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func buildServerListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every configured backend, marking the active endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(configPath)
			if err != nil {
				return err
			}
			backends := a.Config.Backends()
			sort.Slice(backends, func(i, j int) bool { return backends[i].Name < backends[j].Name })
			active, _ := a.Config.GetActiveBackend()

			out := cmd.OutOrStdout()
			for _, b := range backends {
				marker := "  "
				if b.Name == active.Name {
					marker = "* "
				}
				state := models.StateStopped
				if proc, ok := a.Supervisor.Snapshot(b.Name); ok {
					state = proc.State
				}
				fmt.Fprintf(out, "%s%-20s %-8s %s:%d %s\n", marker, b.Name, b.Kind, b.Host, b.Port, state)
			}
			return nil
		},
	}
}

func buildServerSwitchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch <name>",
		Short: "Change the active local backend for future chat requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			a, err := app.Open(configPath)
			if err != nil {
				return err
			}
			if err := a.Config.SwitchDefault(name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "active backend: %s\n", name)
			return nil
		},
	}
}

// ensureContext returns cmd's context, or a background context if none was
// set (cobra always sets one via ExecuteContext, but tests building a
// command directly may not).
func ensureContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
