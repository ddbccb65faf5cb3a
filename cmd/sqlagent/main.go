// Package main provides the sqlagent CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/richinex/sqlagent/cli"
	"github.com/richinex/sqlagent/storage"
)

var version = "dev"

// Global flags
var opts = cli.DefaultOptions()

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "sqlagent",
		Short: "Ask questions about a SQL database in plain language",
		Long: `sqlagent answers natural-language questions about a SQLite or DuckDB
database. A language model explores the schema and runs read-only queries
through a fixed set of tools until it can answer.

Configuration comes from the environment and an optional .env file:
LLM_PROVIDER, <PROVIDER>_API_KEY, <PROVIDER>_MODEL, DATABASE_URI and friends.`,
		SilenceUsage: true,
		Version:      version,
	}

	rootCmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", opts.EnvFile, "Path to a .env file")
	rootCmd.PersistentFlags().StringVar(&opts.DB, "db", "", "Database URI, e.g. sqlite:///chinook.db (overrides DATABASE_URI)")
	rootCmd.PersistentFlags().StringVarP(&opts.Provider, "provider", "p", "", "LLM provider (anthropic, openai, deepseek, gemini)")
	rootCmd.PersistentFlags().StringVar(&opts.Model, "model", "", "Model id (overrides <PROVIDER>_MODEL)")
	rootCmd.PersistentFlags().IntVarP(&opts.MaxIter, "max-iter", "m", 0, "Maximum model calls per question (overrides AGENT_MAX_ITERATIONS)")
	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show debug logs and agent steps")

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(tablesCmd())
	rootCmd.AddCommand(schemaCmd())
	rootCmd.AddCommand(queryCmd())
	rootCmd.AddCommand(promptCmd())
	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(mcpCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := cli.NewLogger(cmd.ErrOrStderr(), opts.Verbose)
			a, err := cli.OpenAgent(cmd.Context(), opts, log)
			if err != nil {
				return err
			}
			defer a.Close()
			return cli.Ask(cmd.Context(), a, strings.Join(args, " "), cmd.OutOrStdout(), opts.Verbose)
		},
	}
}

func chatCmd() *cobra.Command {
	var sessionID string
	var storePath string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		Long: `Start an interactive session. With --session the conversation is
saved to the session store and resumed on the next run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := cli.NewLogger(cmd.ErrOrStderr(), opts.Verbose)
			a, err := cli.OpenAgent(cmd.Context(), opts, log)
			if err != nil {
				return err
			}
			defer a.Close()

			var store storage.ConversationStorage
			if sessionID != "" {
				s, err := storage.OpenSqlite(storePath)
				if err != nil {
					return fmt.Errorf("failed to open session store: %w", err)
				}
				defer s.Close()
				store = s
			}
			return cli.Chat(cmd.Context(), a, store, sessionID, cmd.InOrStdin(), cmd.OutOrStdout(), opts.Verbose)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID for conversation persistence (use 'new' for a fresh one)")
	cmd.Flags().StringVar(&storePath, "store", storage.DefaultPath, "Session store path")
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		if sessionID == "new" {
			sessionID = storage.NewSessionID()
			fmt.Fprintf(cmd.OutOrStdout(), "Session: %s\n", sessionID)
		}
	}

	return cmd
}

func sessionsCmd() *cobra.Command {
	var storePath string

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List saved chat sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := storage.OpenSqlite(storePath)
			if err != nil {
				return fmt.Errorf("failed to open session store: %w", err)
			}
			defer s.Close()
			return cli.Sessions(cmd.Context(), s, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&storePath, "store", storage.DefaultPath, "Session store path")
	return cmd
}

func tablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := cli.NewLogger(cmd.ErrOrStderr(), opts.Verbose)
			db, err := cli.OpenDatabase(cmd.Context(), opts, log)
			if err != nil {
				return err
			}
			defer db.Close()
			return cli.Tables(cmd.Context(), db, cmd.OutOrStdout())
		},
	}
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [table...]",
		Short: "Show table definitions with sample rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := cli.NewLogger(cmd.ErrOrStderr(), opts.Verbose)
			db, err := cli.OpenDatabase(cmd.Context(), opts, log)
			if err != nil {
				return err
			}
			defer db.Close()
			return cli.Schema(cmd.Context(), db, args, cmd.OutOrStdout())
		},
	}
}

func queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query [sql]",
		Short: "Run a read-only query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := cli.NewLogger(cmd.ErrOrStderr(), opts.Verbose)
			db, err := cli.OpenDatabase(cmd.Context(), opts, log)
			if err != nil {
				return err
			}
			defer db.Close()
			return cli.Query(cmd.Context(), db, strings.Join(args, " "), cmd.OutOrStdout())
		},
	}
}

func promptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prompt",
		Short: "Print the system prompt for the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := opts.Settings()
			if err != nil {
				return err
			}
			log := cli.NewLogger(cmd.ErrOrStderr(), opts.Verbose)
			db, err := cli.OpenDatabase(cmd.Context(), opts, log)
			if err != nil {
				return err
			}
			defer db.Close()
			return cli.Prompt(db, settings.Agent.TopK, cmd.OutOrStdout())
		},
	}
}

func toolsCmd() *cobra.Command {
	var verboseTools bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := cli.NewLogger(cmd.ErrOrStderr(), opts.Verbose)
			db, err := cli.OpenDatabase(cmd.Context(), opts, log)
			if err != nil {
				return err
			}
			defer db.Close()
			return cli.ListTools(db, cmd.OutOrStdout(), verboseTools)
		},
	}

	cmd.Flags().BoolVarP(&verboseTools, "params", "V", false, "Show tool parameters")

	return cmd
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the SQL tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := opts.Settings()
			if err != nil {
				return err
			}
			// stdout carries the protocol; logs go to stderr.
			log := cli.NewLogger(os.Stderr, opts.Verbose)
			db, err := cli.OpenDatabase(cmd.Context(), opts, log)
			if err != nil {
				return err
			}
			defer db.Close()
			return cli.ServeMCP(cmd.Context(), db, settings, version, log)
		},
	}
}
