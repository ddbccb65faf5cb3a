// Package prompt renders the instruction text given to the model.
//
// Templates use text/template with missingkey=error, so a slot left
// unfilled fails the render instead of leaking into the prompt.
package prompt

import (
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// DefaultTopK is the row limit the agent is told to apply when the user
// does not ask for a specific number of results.
const DefaultTopK = 5

const sqlAgentText = `You are an agent designed to interact with a SQL database.
Given an input question, create a syntactically correct {{.Dialect}} query to run,
then look at the results of the query and return the answer. Unless the user
specifies a specific number of examples they wish to obtain, always limit your
query to at most {{.TopK}} results.

You can order the results by a relevant column to return the most interesting
examples in the database. Never query for all the columns from a specific table,
only ask for the relevant columns given the question.

You MUST double check your query before executing it. If you get an error while
executing a query, rewrite the query and try again.

DO NOT make any DML statements (INSERT, UPDATE, DELETE, DROP etc.) to the
database.

To start you should ALWAYS look at the tables in the database to see what you
can query. Do NOT skip this step.

Then you should query the schema of the most relevant tables.`

const queryCheckerText = `{{.Query}}

Double check the {{.Dialect}} query above for common mistakes, including:
- NOT IN against a subquery that can return NULL
- UNION where UNION ALL was intended
- BETWEEN used for a range that should exclude its end points
- predicates comparing mismatched data types
- identifiers that need quoting
- functions called with the wrong number of arguments
- casts to the wrong data type
- joins on the wrong columns

If you find any of these mistakes, rewrite the query. If there are none,
reproduce the original query exactly.

Output the final SQL query only.`

var (
	sqlAgentTemplate     = template.Must(template.New("sql_agent").Option("missingkey=error").Parse(sqlAgentText))
	queryCheckerTemplate = template.Must(template.New("query_checker").Option("missingkey=error").Parse(queryCheckerText))
)

// ErrUnresolved is returned when a rendered prompt still contains a placeholder.
var ErrUnresolved = errors.New("unresolved template placeholder")

// SQLAgentData fills the system prompt slots.
type SQLAgentData struct {
	Dialect string
	TopK    int
}

// Render produces the system prompt for dialect and topK.
func Render(dialect string, topK int) (string, error) {
	if strings.TrimSpace(dialect) == "" {
		return "", fmt.Errorf("render system prompt: empty dialect")
	}
	if topK <= 0 {
		return "", fmt.Errorf("render system prompt: top-k must be positive, got %d", topK)
	}
	out, err := execute(sqlAgentTemplate, SQLAgentData{Dialect: dialect, TopK: topK})
	if err != nil {
		return "", err
	}
	if strings.Contains(out, "{{") || strings.Contains(out, "}}") {
		return "", fmt.Errorf("render system prompt: %w", ErrUnresolved)
	}
	return out, nil
}

// QueryChecker produces the request sent to the model when double checking a query.
func QueryChecker(dialect, query string) (string, error) {
	return execute(queryCheckerTemplate, struct {
		Dialect string
		Query   string
	}{Dialect: dialect, Query: query})
}

func execute(t *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return sb.String(), nil
}

// StripCodeFence removes a surrounding ``` block (with optional language
// tag) from a model reply.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		if isFenceTag(strings.TrimSpace(s[:nl])) {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// maxFenceTagLen bounds a language tag such as "sql" or "postgresql".
const maxFenceTagLen = 16

// sqlLeadWords can open the query itself, so they are never a tag.
var sqlLeadWords = map[string]bool{
	"SELECT": true, "WITH": true, "VALUES": true, "EXPLAIN": true,
	"FROM": true, "WHERE": true, "ORDER": true, "GROUP": true,
}

// isFenceTag reports whether the first line after ``` is a language tag:
// empty, or a short word of letters and digits that is not a SQL keyword.
func isFenceTag(line string) bool {
	if line == "" {
		return true
	}
	if len(line) > maxFenceTagLen || sqlLeadWords[strings.ToUpper(line)] {
		return false
	}
	for i, r := range line {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		if !isLetter && (i == 0 || !isDigit) {
			return false
		}
	}
	return true
}
