package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mattwalker75/llf-control-plane/internal/app"
	"github.com/mattwalker75/llf-control-plane/internal/chatpipeline"
	"github.com/mattwalker75/llf-control-plane/pkg/models"
)

// buildAskCmd issues a single non-streaming chat turn (base spec §4.8 step
// 7's buffered reduction), the "ask one question" mode from §6.
func buildAskCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Ask a single question and print the final answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(configPath)
			if err != nil {
				return err
			}
			messages := []models.Message{{Role: models.RoleUser, Content: args[0]}}
			resp, err := a.Pipeline.Chat(ensureContext(cmd), messages, parseToolExecutionMode(mode))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message.Content)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "tool-mode", "", "override the configured tool execution mode (single_pass|dual_pass_all|dual_pass_write_only)")
	return cmd
}

// buildChatCmd runs an interactive, streaming REPL over the chat pipeline:
// tokens print as they arrive, tool calls print a one-line start/done
// marker, and the transcript accumulates across turns within the session.
func buildChatCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive streaming chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(configPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			scanner := bufio.NewScanner(os.Stdin)
			var history []models.Message

			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if line == "/exit" || line == "/quit" {
					return nil
				}

				history = append(history, models.Message{Role: models.RoleUser, Content: line})

				events, err := a.Pipeline.Run(ensureContext(cmd), history, parseToolExecutionMode(mode))
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
					continue
				}

				var reply strings.Builder
				for ev := range events {
					switch ev.Type {
					case chatpipeline.EventContentDelta:
						fmt.Fprint(out, ev.Content)
						reply.WriteString(ev.Content)
					case chatpipeline.EventToolCallStart:
						fmt.Fprintf(out, "\n[calling %s]\n", ev.ToolCall.Name)
					case chatpipeline.EventToolCallDone:
						fmt.Fprintf(out, "[%s done: %s]\n", ev.ToolCall.Name, toolResultSummary(ev.ToolResult))
					case chatpipeline.EventDone:
						fmt.Fprintln(out)
					case chatpipeline.EventError:
						fmt.Fprintln(cmd.ErrOrStderr(), "error:", ev.Err)
					}
				}
				if reply.Len() > 0 {
					history = append(history, models.Message{Role: models.RoleAssistant, Content: reply.String()})
				}
			}
		},
	}
	cmd.Flags().StringVar(&mode, "tool-mode", "", "override the configured tool execution mode (single_pass|dual_pass_all|dual_pass_write_only)")
	return cmd
}

func toolResultSummary(r models.ToolResult) string {
	if r.TimedOut {
		return "timed out"
	}
	if !r.Success {
		return "failed: " + r.Error
	}
	return "ok"
}

func parseToolExecutionMode(mode string) models.ToolExecutionMode {
	switch strings.TrimSpace(mode) {
	case string(models.SinglePass), string(models.DualPassAll), string(models.DualPassWriteOnly):
		return models.ToolExecutionMode(mode)
	default:
		return ""
	}
}
