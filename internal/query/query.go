package query

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/tucoflyer/botclient/internal/model"
)

// Query is a compiled JSONPath expression.
type Query struct {
	text string
	expr jp.Expr
}

// Compile parses a JSONPath expression.
func Compile(path string) (*Query, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}
	expr, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("parsing path %q: %w", path, err)
	}
	return &Query{text: path, expr: expr}, nil
}

// String returns the expression as given.
func (q *Query) String() string {
	return q.text
}

// Eval returns every value matching q in snap. No match is an empty
// result, not an error.
func (q *Query) Eval(snap *model.Model) ([]any, error) {
	if snap == nil {
		return nil, fmt.Errorf("nil snapshot")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	doc, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	return q.expr.Get(doc), nil
}

// Eval compiles path and evaluates it against snap.
func Eval(snap *model.Model, path string) ([]any, error) {
	q, err := Compile(path)
	if err != nil {
		return nil, err
	}
	return q.Eval(snap)
}

// Format renders results one compact JSON value per line with sorted keys.
func Format(results []any) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(oj.JSON(r, &oj.Options{Sort: true}))
	}
	return b.String()
}
