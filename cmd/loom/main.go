// Package main provides the loom CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mkallio/loom/cli"
)

var (
	// Global flags
	provider    string
	stepBudget  int
	tokenBudget int
	verbose     bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "loom",
		Short: "LLM agents with bounded memory and multi-role orchestration",
		Long: `A CLI tool for running LLM agents with policy-bounded conversation memory.

Three patterns available:
- run: Single agent reasoning loop over a registered tool set
- orchestrate: Planner/worker/reviewer pipeline with a bounded revision cycle
- chat: Interactive session with persistent conversation memory`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "Model provider (openai, anthropic, gemini)")
	rootCmd.PersistentFlags().IntVarP(&stepBudget, "step-budget", "s", 5, "Maximum reasoning steps per run")
	rootCmd.PersistentFlags().IntVar(&tokenBudget, "token-budget", 0, "Conversation token budget (0 = unbounded)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	// Add commands
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(orchestrateCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(toolsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func options() cli.Options {
	return cli.Options{
		Provider:    provider,
		StepBudget:  stepBudget,
		TokenBudget: tokenBudget,
		Verbose:     verbose,
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [goal]",
		Short: "Execute a goal with a single reasoning loop",
		Long: `Execute a goal using a Thought/Action/Observation reasoning loop.

The agent alternates between asking the model for a decision and
executing the chosen tool, until it produces a final answer or the
step budget runs out.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunTask(context.Background(), args[0], options())
		},
	}
}

func orchestrateCmd() *cobra.Command {
	var workers []string
	var maxRevisions int

	cmd := &cobra.Command{
		Use:   "orchestrate [goal]",
		Short: "Run a goal through the planner/worker/reviewer pipeline",
		Long: `Run a goal through a multi-role pipeline.

A planner decomposes the goal into independent subtasks, workers
execute them concurrently, and a reviewer judges the combined result.
Rejected work is revised up to --max-revisions times before being
accepted with reservations.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Orchestrate(context.Background(), args[0], workers, maxRevisions, options())
		},
	}

	cmd.Flags().StringSliceVarP(&workers, "worker", "w", nil, "Worker spec, name or name:tag1,tag2 (repeatable)")
	cmd.Flags().IntVar(&maxRevisions, "max-revisions", 2, "Maximum review/revise cycles")

	return cmd
}

func chatCmd() *cobra.Command {
	var sessionID string
	var dbPath string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session with persistent memory",
		Long: `Start an interactive session.

With --session the conversation is saved to the database after every
turn and restored on the next invocation with the same ID.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Chat(context.Background(), sessionID, dbPath, options())
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID for conversation persistence")
	cmd.Flags().StringVar(&dbPath, "db", ".loom/loom.db", "Database path for session storage")

	return cmd
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the registered tools",
		Run: func(cmd *cobra.Command, args []string) {
			cli.ListTools()
		},
	}
}
