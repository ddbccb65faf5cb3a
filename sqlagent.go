// Package sqlagent builds a ready-to-use agent that answers natural-language
// questions about a SQL database.
//
// Information Hiding:
// - Construction order (database, provider, prompt, tools, loop) hidden
// - Provider selection from settings hidden
// - Resource ownership hidden behind Close
//
// Quick start:
//
//	a, err := sqlagent.New(ctx)
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//	resp := a.Ask(ctx, "How many tracks are in the database?")
package sqlagent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/richinex/sqlagent/agent"
	"github.com/richinex/sqlagent/config"
	"github.com/richinex/sqlagent/llm"
	"github.com/richinex/sqlagent/prompt"
	"github.com/richinex/sqlagent/sqldb"
	"github.com/richinex/sqlagent/tools"
)

const agentName = "sql-agent"

// Option customizes construction.
type Option func(*options)

type options struct {
	provider      llm.Provider
	log           *slog.Logger
	checkerReview bool
	envFiles      []string
}

func defaultOptions() options {
	return options{
		log:           slog.New(slog.DiscardHandler),
		checkerReview: true,
		envFiles:      []string{".env"},
	}
}

// WithProvider uses p instead of building a provider from settings. No
// credential is looked up.
func WithProvider(p llm.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithLogger sets the logger handed to every component.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithCheckerReview controls whether the query-checker tool also asks the
// model to review the query. Enabled by default.
func WithCheckerReview(enabled bool) Option {
	return func(o *options) { o.checkerReview = enabled }
}

// WithEnvFiles sets the .env files New reads. The default is ".env".
func WithEnvFiles(paths ...string) Option {
	return func(o *options) { o.envFiles = paths }
}

// Agent is a SQL question-answering agent bound to one database.
type Agent struct {
	settings     config.Settings
	db           *sqldb.Database
	provider     llm.Provider
	toolkit      *tools.SQLToolkit
	executor     *tools.Executor
	loop         *agent.Agent
	systemPrompt string
	log          *slog.Logger
}

// New builds an agent from the process environment and .env files.
func New(ctx context.Context, opts ...Option) (*Agent, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	settings, err := config.Load(o.envFiles...)
	if err != nil {
		return nil, err
	}
	return NewWithSettings(ctx, settings, opts...)
}

// NewWithSettings builds an agent from explicit settings. The database is
// opened before anything else, so a bad URI fails with *sqldb.ConnectionError
// without touching the provider. A missing credential fails with
// *config.ConfigurationError.
func NewWithSettings(ctx context.Context, settings config.Settings, opts ...Option) (*Agent, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	db, err := sqldb.Open(ctx, settings.Database.URI, sqldb.Options{
		SampleRows:   settings.Database.SampleRows,
		MaxRows:      settings.Database.MaxRows,
		QueryTimeout: settings.Database.QueryTimeout,
		Logger:       o.log,
	})
	if err != nil {
		return nil, err
	}

	a, err := build(settings, db, o)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func build(settings config.Settings, db *sqldb.Database, o options) (*Agent, error) {
	provider := o.provider
	if provider == nil {
		var err error
		provider, err = newProvider(settings.LLM)
		if err != nil {
			return nil, err
		}
	}

	systemPrompt, err := prompt.Render(db.Dialect(), settings.Agent.TopK)
	if err != nil {
		return nil, err
	}

	var checker llm.Provider
	if o.checkerReview {
		checker = provider
	}
	toolkit, err := tools.NewSQLToolkit(db, checker, tools.WithToolkitLogger(o.log))
	if err != nil {
		return nil, err
	}

	executor := tools.NewExecutor(tools.ToolConfig{
		Timeout:    settings.Agent.ToolTimeout,
		MaxRetries: settings.Agent.ToolRetries,
		NoRetry:    settings.Agent.ToolRetries == 0,
	}, tools.WithExecutorLogger(o.log))

	cfg := agent.NewBuilder(agentName).
		Description(fmt.Sprintf("Answers questions about the %s database at %s", db.Dialect(), db.URI())).
		SystemPrompt(systemPrompt).
		Tools(toolkit.Tools()).
		MaxIterations(settings.Agent.MaxIterations).
		Timeout(settings.Agent.Timeout).
		Build()

	loop, err := agent.New(cfg, provider)
	if err != nil {
		return nil, err
	}
	loop.WithLogger(o.log).WithExecutor(executor)

	o.log.Info("sqlagent: ready",
		"dialect", db.Dialect(),
		"provider", provider.Name(),
		"model", provider.Model(),
		"tools", len(toolkit.Tools()),
	)

	return &Agent{
		settings:     settings,
		db:           db,
		provider:     provider,
		toolkit:      toolkit,
		executor:     executor,
		loop:         loop,
		systemPrompt: systemPrompt,
		log:          o.log,
	}, nil
}

func newProvider(cfg config.LLMConfig) (llm.Provider, error) {
	key, err := cfg.Credential()
	if err != nil {
		return nil, err
	}
	providerType, err := llm.ParseProviderType(cfg.Provider)
	if err != nil {
		return nil, &config.ConfigurationError{Key: "LLM_PROVIDER", Err: err}
	}
	return llm.NewProviderBuilder(providerType).
		Model(cfg.Model).
		MaxTokens(cfg.MaxTokens).
		Temperature(float32(cfg.Temperature)).
		APIKey(key)
}

// Ask answers a single question.
func (a *Agent) Ask(ctx context.Context, question string) agent.Response {
	return a.loop.Execute(ctx, question)
}

// AskWithHistory answers a question following earlier turns. Use
// Response.Messages to extend the history for the next call.
func (a *Agent) AskWithHistory(ctx context.Context, question string, history []llm.ChatMessage) agent.Response {
	return a.loop.ExecuteWithHistory(ctx, question, history)
}

// SystemPrompt returns the prompt rendered at construction.
func (a *Agent) SystemPrompt() string { return a.systemPrompt }

// Database returns the read-only database handle.
func (a *Agent) Database() *sqldb.Database { return a.db }

// Tools returns the toolkit's tools in the order the model sees them.
func (a *Agent) Tools() []tools.Tool { return a.toolkit.Tools() }

// Toolkit returns the SQL toolkit.
func (a *Agent) Toolkit() *tools.SQLToolkit { return a.toolkit }

// Executor returns the executor configured from settings.
func (a *Agent) Executor() *tools.Executor { return a.executor }

// Provider returns the model provider.
func (a *Agent) Provider() llm.Provider { return a.provider }

// Settings returns the settings the agent was built from.
func (a *Agent) Settings() config.Settings { return a.settings }

// Close releases the database handle.
func (a *Agent) Close() error {
	return a.db.Close()
}
