package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mattwalker75/llf-control-plane/internal/app"
)

// buildToolCmd creates the "tool" command group, exercising C2 (tool
// registry): enable|disable|auto|info|list|import|export, plus the
// whitelist subgroup.
func buildToolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tool",
		Short: "Manage the tool registry",
	}
	cmd.AddCommand(
		buildToolEnableCmd(),
		buildToolDisableCmd(),
		buildToolAutoCmd(),
		buildToolInfoCmd(),
		buildToolListCmd(),
		buildToolImportCmd(),
		buildToolExportCmd(),
		buildToolWhitelistCmd(),
	)
	return cmd
}

func buildToolEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <name>",
		Short: "Persistently enable a tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(configPath)
			if err != nil {
				return err
			}
			if err := a.Registry.Enable(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: enabled\n", args[0])
			return nil
		},
	}
}

func buildToolDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <name>",
		Short: "Persistently disable a tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(configPath)
			if err != nil {
				return err
			}
			if err := a.Registry.Disable(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: disabled\n", args[0])
			return nil
		},
	}
}

func buildToolAutoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auto <name>",
		Short: "Set a tool to auto (model-decided) enablement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(configPath)
			if err != nil {
				return err
			}
			if err := a.Registry.SetAuto(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: auto\n", args[0])
			return nil
		},
	}
}

func buildToolInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <name>",
		Short: "Show a tool's full registry entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(configPath)
			if err != nil {
				return err
			}
			t, ok := a.Registry.Get(args[0])
			if !ok {
				return fmt.Errorf("tool not found: %s", args[0])
			}
			payload, err := json.MarshalIndent(t, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return nil
		},
	}
}

func buildToolListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every registered tool",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, t := range a.Registry.List() {
				fmt.Fprintf(out, "%-20s %-12s %-8s %s\n", t.Name, t.Kind, t.Enabled, t.Category)
			}
			return nil
		},
	}
}

func buildToolImportCmd() *cobra.Command {
	var toolsDir string
	cmd := &cobra.Command{
		Use:   "import <name>",
		Short: "Import a scaffolded tool from <tools-dir>/<name>/config.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(configPath)
			if err != nil {
				return err
			}
			if err := a.Registry.ImportFromDirectory(toolsDir, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: imported\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&toolsDir, "tools-dir", "tools", "directory containing scaffolded tool subdirectories")
	return cmd
}

func buildToolExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <name>",
		Short: "Remove a tool from the registry and print its entry as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(configPath)
			if err != nil {
				return err
			}
			t, err := a.Registry.Export(args[0])
			if err != nil {
				return err
			}
			payload, err := json.MarshalIndent(t, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return nil
		},
	}
}

// buildToolWhitelistCmd creates the "tool whitelist" subgroup:
// add|remove|list <tool> <pattern>.
func buildToolWhitelistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whitelist",
		Short: "Manage a tool's whitelist patterns",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <tool> <pattern>",
			Short: "Add a whitelist pattern to a tool",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := app.Open(configPath)
				if err != nil {
					return err
				}
				if err := a.Registry.WhitelistAdd(args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: whitelisted %s\n", args[0], args[1])
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove <tool> <pattern>",
			Short: "Remove a whitelist pattern from a tool",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := app.Open(configPath)
				if err != nil {
					return err
				}
				if err := a.Registry.WhitelistRemove(args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: removed %s\n", args[0], args[1])
				return nil
			},
		},
		&cobra.Command{
			Use:   "list <tool>",
			Short: "List a tool's whitelist patterns",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := app.Open(configPath)
				if err != nil {
					return err
				}
				patterns, err := a.Registry.WhitelistList(args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, p := range patterns {
					fmt.Fprintln(out, p)
				}
				return nil
			},
		},
	)
	return cmd
}
