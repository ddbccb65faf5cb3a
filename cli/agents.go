// Agent and database construction for CLI commands.
//
// Information Hiding:
// - Flag-to-settings overrides hidden
// - Logger setup hidden
// - Provider lookup through env and .env files hidden

package cli

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"

	"github.com/richinex/sqlagent"
	"github.com/richinex/sqlagent/config"
	"github.com/richinex/sqlagent/sqldb"
)

// Options holds the persistent CLI flags.
type Options struct {
	EnvFile  string
	DB       string
	Provider string
	Model    string
	MaxIter  int
	Verbose  bool
}

// DefaultOptions returns default CLI options.
func DefaultOptions() Options {
	return Options{EnvFile: ".env"}
}

// Settings resolves settings from the environment and the env file, then
// applies any flag overrides.
func (o Options) Settings() (config.Settings, error) {
	var files []string
	if o.EnvFile != "" {
		files = append(files, o.EnvFile)
	}
	lookup, err := config.EnvLookup(files...)
	if err != nil {
		return config.Settings{}, err
	}
	s, err := config.FromLookup(lookup)
	if err != nil {
		return config.Settings{}, err
	}

	if o.Provider != "" {
		if s, err = s.WithProvider(o.Provider, lookup); err != nil {
			return config.Settings{}, err
		}
	}
	if o.Model != "" {
		s.LLM.Model = o.Model
	}
	if o.DB != "" {
		s.Database.URI = o.DB
	}
	if o.MaxIter > 0 {
		s.Agent.MaxIterations = o.MaxIter
	}
	return s, s.Validate()
}

// NewLogger returns a tint logger on w. Verbose enables debug output,
// otherwise only warnings and errors are shown.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))
}

// OpenAgent builds the SQL agent for ask and chat.
func OpenAgent(ctx context.Context, o Options, log *slog.Logger, extra ...sqlagent.Option) (*sqlagent.Agent, error) {
	settings, err := o.Settings()
	if err != nil {
		return nil, err
	}
	opts := append([]sqlagent.Option{sqlagent.WithLogger(log)}, extra...)
	return sqlagent.NewWithSettings(ctx, settings, opts...)
}

// OpenDatabase opens the configured database without a model provider, for
// the commands that only inspect it.
func OpenDatabase(ctx context.Context, o Options, log *slog.Logger) (*sqldb.Database, error) {
	settings, err := o.Settings()
	if err != nil {
		return nil, err
	}
	return sqldb.Open(ctx, settings.Database.URI, sqldb.Options{
		SampleRows:   settings.Database.SampleRows,
		MaxRows:      settings.Database.MaxRows,
		QueryTimeout: settings.Database.QueryTimeout,
		Logger:       log,
	})
}
