// Agent configuration types.
//
// Information Hiding:
// - Default values hidden behind accessor methods

package agent

import (
	"time"

	"github.com/richinex/sqlagent/tools"
)

// DefaultMaxIterations bounds the number of model calls per question.
const DefaultMaxIterations = 15

// Config holds agent configuration.
type Config struct {
	// Name is a unique identifier for the agent.
	Name string

	// Description explains what this agent does.
	Description string

	// SystemPrompt guides the agent's behavior. It is sent first unless the
	// history already starts with a system message.
	SystemPrompt string

	// Tools available to this agent.
	Tools []tools.Tool

	// MaxIterations caps model calls per question. Zero means DefaultMaxIterations.
	MaxIterations int

	// Timeout bounds a whole question. Zero means no limit.
	Timeout time.Duration
}

// DefaultConfig returns a basic agent configuration.
func DefaultConfig() Config {
	return Config{
		Name:          "agent",
		Description:   "A general-purpose agent",
		SystemPrompt:  "You are a helpful assistant.",
		MaxIterations: DefaultMaxIterations,
	}
}

// HasTools returns true if the agent has tools configured.
func (c *Config) HasTools() bool {
	return len(c.Tools) > 0
}

func (c *Config) maxIterations() int {
	if c.MaxIterations <= 0 {
		return DefaultMaxIterations
	}
	return c.MaxIterations
}
