// Read-only statement guard.
//
// Information Hiding:
// - Lexing rules for comments, literals and quoted identifiers
// - Statement splitting
// - Root statement classification, including WITH and EXPLAIN wrappers

package sqldb

import (
	"fmt"
	"strings"
)

// queryRoots are the statement kinds that only read.
var queryRoots = map[string]bool{
	"SELECT": true,
	"VALUES": true,
}

// CheckReadOnly returns nil if query is a single read-only statement.
// Rejections wrap ErrNotReadOnly, ErrMultipleStatements or ErrEmptyQuery.
func CheckReadOnly(query string) error {
	toks, err := lex(query)
	if err != nil {
		return err
	}

	var statements [][]lexeme
	var current []lexeme
	for _, t := range toks {
		if t.punct == ';' {
			if len(current) > 0 {
				statements = append(statements, current)
			}
			current = nil
			continue
		}
		current = append(current, t)
	}
	if len(current) > 0 {
		statements = append(statements, current)
	}

	switch len(statements) {
	case 0:
		return ErrEmptyQuery
	case 1:
		return checkStatement(statements[0])
	default:
		return fmt.Errorf("%w: found %d", ErrMultipleStatements, len(statements))
	}
}

// nestedStatementWords are reserved in both SQLite and DuckDB, so right
// after '(' they can only open a statement, never name a column.
var nestedStatementWords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true,
	"DROP": true, "ALTER": true, "CREATE": true,
}

func checkStatement(toks []lexeme) error {
	for i, t := range toks {
		if i > 0 && toks[i-1].punct == '(' && nestedStatementWords[t.word] {
			return fmt.Errorf("%w: nested %s", ErrNotReadOnly, t.word)
		}
	}

	i := 0
	for i < len(toks) && toks[i].punct == '(' {
		i++
	}
	if i == len(toks) || toks[i].word == "" {
		return fmt.Errorf("%w: statement does not start with a keyword", ErrNotReadOnly)
	}

	root := toks[i].word
	switch {
	case queryRoots[root]:
		return nil
	case root == "WITH":
		return checkWith(toks[i:])
	case root == "EXPLAIN":
		rest := toks[i+1:]
		for len(rest) > 0 && explainModifiers[rest[0].word] {
			rest = rest[1:]
		}
		if len(rest) == 0 {
			return fmt.Errorf("%w: EXPLAIN without a statement", ErrNotReadOnly)
		}
		return checkStatement(rest)
	default:
		return fmt.Errorf("%w: %s statements are not allowed", ErrNotReadOnly, root)
	}
}

var explainModifiers = map[string]bool{
	"QUERY": true, "PLAN": true, "ANALYZE": true, "ANALYSE": true, "VERBOSE": true,
}

// checkWith classifies the statement after the common table expressions.
// Each expression ends with a ')' at the depth of WITH; the token after it
// is a ',' (another expression), AS (the ')' closed a column list) or the
// start of the main statement.
func checkWith(toks []lexeme) error {
	base := toks[0].depth
	for i := 1; i < len(toks)-1; i++ {
		t := toks[i]
		if t.punct != ')' || t.depth != base {
			continue
		}
		next := toks[i+1]
		if next.punct == ',' || next.word == "AS" {
			continue
		}
		return checkStatement(toks[i+1:])
	}
	return fmt.Errorf("%w: WITH without a query", ErrNotReadOnly)
}

// lexeme is a word (upper-cased keyword or bare identifier) or a single
// punctuation byte. Literals and quoted identifiers collapse to punct 'L'.
type lexeme struct {
	word  string
	punct byte
	depth int
}

func lex(query string) ([]lexeme, error) {
	var out []lexeme
	depth := 0
	n := len(query)

	for i := 0; i < n; {
		c := query[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			i++
		case c == '-' && i+1 < n && query[i+1] == '-':
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				i = n
			} else {
				i += end + 1
			}
		case c == '/' && i+1 < n && query[i+1] == '*':
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated comment", ErrNotReadOnly)
			}
			i += end + 4
		case c == '\'' || c == '"' || c == '`':
			end, ok := closeQuote(query, i, c)
			if !ok {
				return nil, fmt.Errorf("%w: unterminated quoted text", ErrNotReadOnly)
			}
			out = append(out, lexeme{punct: 'L', depth: depth})
			i = end
		case c == '[':
			end := strings.IndexByte(query[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated bracket", ErrNotReadOnly)
			}
			out = append(out, lexeme{punct: 'L', depth: depth})
			i += end + 1
		case isWordStart(c):
			start := i
			for i < n && isWordPart(query[i]) {
				i++
			}
			out = append(out, lexeme{word: strings.ToUpper(query[start:i]), depth: depth})
		case c >= '0' && c <= '9':
			for i < n && (isWordPart(query[i]) || query[i] == '.') {
				i++
			}
			out = append(out, lexeme{punct: 'L', depth: depth})
		case c == '(':
			out = append(out, lexeme{punct: c, depth: depth})
			depth++
			i++
		case c == ')':
			depth--
			out = append(out, lexeme{punct: c, depth: depth})
			i++
		default:
			out = append(out, lexeme{punct: c, depth: depth})
			i++
		}
	}
	return out, nil
}

// closeQuote returns the index just past the quote opened at start.
// A doubled quote character is an escaped quote.
func closeQuote(s string, start int, q byte) (int, bool) {
	for i := start + 1; i < len(s); i++ {
		if s[i] != q {
			continue
		}
		if i+1 < len(s) && s[i+1] == q {
			i++
			continue
		}
		return i + 1, true
	}
	return 0, false
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isWordPart(c byte) bool {
	return isWordStart(c) || c == '$' || (c >= '0' && c <= '9')
}
