// Command execution for CLI commands.
//
// Information Hiding:
// - Response rendering hidden
// - Chat session persistence hidden
// - MCP server wiring hidden

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/richinex/sqlagent"
	"github.com/richinex/sqlagent/agent"
	"github.com/richinex/sqlagent/config"
	"github.com/richinex/sqlagent/llm"
	"github.com/richinex/sqlagent/mcpserver"
	"github.com/richinex/sqlagent/prompt"
	"github.com/richinex/sqlagent/sqldb"
	"github.com/richinex/sqlagent/storage"
	"github.com/richinex/sqlagent/tools"
)

const maxObservationLen = 400

// Ask answers a single question and prints the result.
func Ask(ctx context.Context, a *sqlagent.Agent, question string, w io.Writer, showSteps bool) error {
	resp := a.Ask(ctx, question)
	if showSteps {
		printSteps(w, resp.Steps)
	}
	return printResponse(w, resp)
}

func printResponse(w io.Writer, resp agent.Response) error {
	switch resp.Type {
	case agent.ResponseSuccess:
		fmt.Fprintf(w, "%s\n", resp.Result)
		return nil
	case agent.ResponseFailure:
		return fmt.Errorf("question failed: %w", resp.Err)
	case agent.ResponseTimeout:
		fmt.Fprintf(w, "%s\n", resp.PartialResult)
		return fmt.Errorf("question timed out")
	default:
		return fmt.Errorf("unknown response type: %v", resp.Type)
	}
}

// Chat runs an interactive session reading questions from in. When store is
// non-nil the session is resumed from and saved to it.
func Chat(ctx context.Context, a *sqlagent.Agent, store storage.ConversationStorage, sessionID string, in io.Reader, w io.Writer, showSteps bool) error {
	var history []llm.ChatMessage
	if store != nil {
		var err error
		history, err = store.Load(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		if len(history) > 0 {
			fmt.Fprintf(w, "Resuming session '%s' (%d messages)\n\n", sessionID, len(history))
		}
	}

	fmt.Fprintf(w, "Ask about the %s database. Type 'exit' to quit.\n\n", a.Database().Dialect())

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(w, "> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		resp := a.AskWithHistory(ctx, input, history)
		if showSteps {
			printSteps(w, resp.Steps)
		}

		switch resp.Type {
		case agent.ResponseSuccess:
			fmt.Fprintf(w, "\n%s\n\n", resp.Result)
			history = append(history, resp.Messages...)
			if store != nil {
				if err := store.Append(ctx, sessionID, resp.Messages...); err != nil {
					return fmt.Errorf("failed to save history: %w", err)
				}
			}
		case agent.ResponseFailure:
			fmt.Fprintf(w, "\nError: %s\n\n", resp.Error)
			if ctx.Err() != nil {
				return ctx.Err()
			}
		case agent.ResponseTimeout:
			fmt.Fprintf(w, "\n%s\n\n", resp.PartialResult)
		}
	}

	return scanner.Err()
}

// Sessions prints the stored chat sessions.
func Sessions(ctx context.Context, store storage.ConversationStorage, w io.Writer) error {
	sessions, err := store.ListSessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions.")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Session", "Messages", "Updated", "Title"})
	for _, s := range sessions {
		updated := ""
		if !s.UpdatedAt.IsZero() {
			updated = s.UpdatedAt.Local().Format(time.DateTime)
		}
		table.Append([]string{s.ID, fmt.Sprint(s.Messages), updated, s.Title})
	}
	table.Render()
	return nil
}

// Tables prints the database's table names, one per line.
func Tables(ctx context.Context, db *sqldb.Database, w io.Writer) error {
	names, err := db.TableNames(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(w, name)
	}
	return nil
}

// Schema prints table definitions with sample rows. No tables means all.
func Schema(ctx context.Context, db *sqldb.Database, tables []string, w io.Writer) error {
	info, err := db.TableInfo(ctx, tables)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, info)
	return nil
}

// Query runs a read-only query and prints the rendered result.
func Query(ctx context.Context, db *sqldb.Database, query string, w io.Writer) error {
	res, err := db.Run(ctx, query)
	if err != nil {
		return err
	}
	fmt.Fprint(w, res.String())
	return nil
}

// Prompt prints the system prompt rendered for db.
func Prompt(db *sqldb.Database, topK int, w io.Writer) error {
	text, err := prompt.Render(db.Dialect(), topK)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, text)
	return nil
}

// ListTools prints the toolkit. Verbose adds each tool's parameters.
func ListTools(db *sqldb.Database, w io.Writer, verbose bool) error {
	toolkit, err := tools.NewSQLToolkit(db, nil)
	if err != nil {
		return err
	}
	registry, err := toolkit.Registry()
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintln(w, registry.Description())
		return nil
	}
	for _, meta := range registry.List() {
		fmt.Fprintf(w, "  %s\n    %s\n\n", meta.Name, meta.Description)
	}
	return nil
}

// ServeMCP serves the toolkit over stdio until ctx ends. The query checker
// only validates the statement; no model provider is needed.
func ServeMCP(ctx context.Context, db *sqldb.Database, settings config.Settings, version string, log *slog.Logger) error {
	toolkit, err := tools.NewSQLToolkit(db, nil, tools.WithToolkitLogger(log))
	if err != nil {
		return err
	}
	executor := tools.NewExecutor(tools.ToolConfig{
		Timeout:    settings.Agent.ToolTimeout,
		MaxRetries: settings.Agent.ToolRetries,
		NoRetry:    settings.Agent.ToolRetries == 0,
	}, tools.WithExecutorLogger(log))

	srv, err := mcpserver.New(mcpserver.Config{
		Logger:   log,
		Toolkit:  toolkit,
		Executor: executor,
		Version:  version,
	})
	if err != nil {
		return err
	}
	log.Info("mcp: serving over stdio", "dialect", db.Dialect(), "uri", db.URI())
	return srv.Run(ctx)
}

func printSteps(w io.Writer, steps []agent.Step) {
	fmt.Fprintln(w, "--- Steps ---")
	for _, step := range steps {
		if step.IsFinal() {
			continue
		}
		fmt.Fprintf(w, "[%d] %s %s\n", step.Iteration, step.Action, string(step.Input))
		prefix := "Observation"
		if step.IsError {
			prefix = "Error"
		}
		fmt.Fprintf(w, "    %s: %s\n", prefix, truncateString(step.Observation, maxObservationLen))
	}
	fmt.Fprintln(w, "-------------")
	fmt.Fprintln(w)
}

// truncateString truncates a string to maxLen runes, preserving UTF-8 boundaries.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
