// Package predicate implements the boolean match language used to pair job
// requests with machine slots. Expressions compare slot attributes (addressed
// as TARGET.<attr>) and job attributes (bare identifiers or MY.<attr>), e.g.
//
//	(TARGET.Arch == "X86_64") && (TARGET.Cpus >= RequestCpus)
package predicate

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

type Expression struct {
	First *AndTerm   `parser:"@@"`
	Rest  []*AndTerm `parser:"( OrOp @@ )*"`
}

type AndTerm struct {
	First *Factor   `parser:"@@"`
	Rest  []*Factor `parser:"( AndOp @@ )*"`
}

type Factor struct {
	Not *Factor     `parser:"NotOp @@"`
	Sub *Expression `parser:"| '(' @@ ')'"`
	Cmp *Comparison `parser:"| @@"`
}

type Comparison struct {
	Left  *Operand `parser:"@@"`
	Op    string   `parser:"( @CmpOp"`
	Right *Operand `parser:"@@ )?"`
}

type Operand struct {
	Number *float64 `parser:"@Number"`
	Str    *string  `parser:"| @String"`
	Ref    *string  `parser:"| @Ident"`
}

var matchLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "whitespace", Pattern: `\s+`},
	{Name: "String", Pattern: `"[^"]*"|'[^']*'`},
	{Name: "Number", Pattern: `[-+]?\d+(\.\d+)?`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?`},
	{Name: "OrOp", Pattern: `\|\|`},
	{Name: "AndOp", Pattern: `&&`},
	{Name: "CmpOp", Pattern: `==|!=|>=|<=|>|<`},
	{Name: "NotOp", Pattern: `!`},
	{Name: "Paren", Pattern: `[()]`},
})

var matchParser = participle.MustBuild[Expression](
	participle.Lexer(matchLexer),
	participle.Elide("whitespace"),
)

// Predicate is a parsed, reusable match expression.
type Predicate struct {
	src  string
	expr *Expression
}

// Parse compiles a match expression. An empty source yields a predicate that
// matches everything, mirroring a job without a Requirements attribute.
func Parse(src string) (*Predicate, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return &Predicate{src: ""}, nil
	}

	expr, err := matchParser.ParseString("", src)
	if err != nil {
		return nil, fmt.Errorf("invalid match expression %q: %v", src, err)
	}
	return &Predicate{src: src, expr: expr}, nil
}

func (p *Predicate) String() string {
	return p.src
}

// Matches evaluates the predicate against a slot attribute set (TARGET scope)
// and a job attribute set (default scope). Unresolvable references make the
// enclosing comparison false rather than failing the evaluation.
func (p *Predicate) Matches(target, job map[string]any) bool {
	if p.expr == nil {
		return true
	}
	return p.expr.eval(target, job)
}

func (e *Expression) eval(target, job map[string]any) bool {
	result := e.First.eval(target, job)
	for _, term := range e.Rest {
		result = result || term.eval(target, job)
	}
	return result
}

func (t *AndTerm) eval(target, job map[string]any) bool {
	result := t.First.eval(target, job)
	for _, factor := range t.Rest {
		result = result && factor.eval(target, job)
	}
	return result
}

func (f *Factor) eval(target, job map[string]any) bool {
	switch {
	case f.Not != nil:
		return !f.Not.eval(target, job)
	case f.Sub != nil:
		return f.Sub.eval(target, job)
	default:
		return f.Cmp.eval(target, job)
	}
}

func (c *Comparison) eval(target, job map[string]any) bool {
	left, ok := c.Left.resolve(target, job)
	if !ok {
		return false
	}

	if c.Op == "" {
		b, ok := left.(bool)
		return ok && b
	}

	right, ok := c.Right.resolve(target, job)
	if !ok {
		return false
	}
	return compare(left, c.Op, right)
}

func (o *Operand) resolve(target, job map[string]any) (any, bool) {
	switch {
	case o.Number != nil:
		return *o.Number, true
	case o.Str != nil:
		return strings.Trim(*o.Str, `"'`), true
	}

	ref := *o.Ref
	switch strings.ToLower(ref) {
	case "true":
		return true, true
	case "false":
		return false, true
	}

	if name, found := strings.CutPrefix(ref, "TARGET."); found {
		return lookup(target, name)
	}
	if name, found := strings.CutPrefix(ref, "MY."); found {
		return lookup(job, name)
	}

	// Bare identifiers resolve against the job ad first, then the slot. This
	// matches how a machine evaluates a job's requirements during matchmaking.
	if v, ok := lookup(job, ref); ok {
		return v, true
	}
	return lookup(target, ref)
}

func lookup(attrs map[string]any, name string) (any, bool) {
	if attrs == nil {
		return nil, false
	}
	if v, ok := attrs[name]; ok {
		return v, true
	}
	// Attribute names are case-insensitive on lookup.
	for k, v := range attrs {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

func compare(left any, op string, right any) bool {
	lnum, lok := asNumber(left)
	rnum, rok := asNumber(right)
	if lok && rok {
		switch op {
		case "==":
			return lnum == rnum
		case "!=":
			return lnum != rnum
		case ">":
			return lnum > rnum
		case ">=":
			return lnum >= rnum
		case "<":
			return lnum < rnum
		case "<=":
			return lnum <= rnum
		}
		return false
	}

	lstr, lok := asString(left)
	rstr, rok := asString(right)
	if !lok || !rok {
		return false
	}
	switch op {
	case "==":
		return strings.EqualFold(lstr, rstr)
	case "!=":
		return !strings.EqualFold(lstr, rstr)
	case ">":
		return lstr > rstr
	case ">=":
		return lstr >= rstr
	case "<":
		return lstr < rstr
	case "<=":
		return lstr <= rstr
	}
	return false
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case bool:
		if s {
			return "true", true
		}
		return "false", true
	}
	return "", false
}
