// Package facts keeps per-user logic clauses in flat files and answers
// queries over them by unification. Files hold one clause per line in
// classic functor(arg, ...) syntax, with optional :- rules; the dialogue
// layer asserts new facts as the user states them.
package facts

import (
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// ErrNoMatch is returned when a query has no solution. Callers map it to an
// "unknown"/"No" answer, never to a failure.
var ErrNoMatch = errors.New("no matching fact")

// Term is an atom, a variable, or a compound term.
type Term struct {
	Functor string
	Args    []Term
	IsVar   bool
}

// Atom builds a constant term.
func Atom(name string) Term {
	return Term{Functor: name}
}

// Var builds a variable term.
func Var(name string) Term {
	return Term{Functor: name, IsVar: true}
}

// Compound builds functor(args...).
func Compound(functor string, args ...Term) Term {
	return Term{Functor: functor, Args: args}
}

// Clause is a fact (empty body) or a rule.
type Clause struct {
	Head Term
	Body []Term
}

// String renders a term back to source syntax, quoting atoms that need it.
func (t Term) String() string {
	if len(t.Args) == 0 {
		if t.IsVar {
			return t.Functor
		}
		return quoteAtom(t.Functor)
	}
	parts := make([]string, len(t.Args))
	for i, arg := range t.Args {
		parts[i] = arg.String()
	}
	return t.Functor + "(" + strings.Join(parts, ", ") + ")"
}

// String renders a clause back to source syntax, terminator included.
func (c Clause) String() string {
	if len(c.Body) == 0 {
		return c.Head.String() + "."
	}
	parts := make([]string, len(c.Body))
	for i, goal := range c.Body {
		parts[i] = goal.String()
	}
	return c.Head.String() + " :- " + strings.Join(parts, ", ") + "."
}

func quoteAtom(s string) string {
	if s == "" {
		return "''"
	}
	plain := true
	for i, r := range s {
		if i == 0 && !unicode.IsLower(r) && !unicode.IsDigit(r) {
			plain = false
			break
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			plain = false
			break
		}
	}
	if plain {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", "\\'") + "'"
}

type parser struct {
	input string
	pos   int
}

// ParseClause parses one clause, terminator optional.
func ParseClause(line string) (Clause, error) {
	p := &parser{input: strings.TrimSpace(line)}
	head, err := p.parseTerm()
	if err != nil {
		return Clause{}, err
	}
	clause := Clause{Head: head}

	p.skipSpace()
	if p.consume(":-") {
		for {
			goal, err := p.parseTerm()
			if err != nil {
				return Clause{}, err
			}
			clause.Body = append(clause.Body, goal)
			p.skipSpace()
			if !p.consume(",") {
				break
			}
		}
	}

	p.skipSpace()
	p.consume(".")
	p.skipSpace()
	if p.pos != len(p.input) {
		return Clause{}, errors.Errorf("trailing input at %d: %q", p.pos, p.input[p.pos:])
	}
	return clause, nil
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) consume(token string) bool {
	if strings.HasPrefix(p.input[p.pos:], token) {
		p.pos += len(token)
		return true
	}
	return false
}

func (p *parser) parseTerm() (Term, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return Term{}, errors.New("unexpected end of clause")
	}

	if p.input[p.pos] == '\'' {
		atom, err := p.parseQuoted()
		if err != nil {
			return Term{}, err
		}
		return Atom(atom), nil
	}

	name := p.parseName()
	if name == "" {
		return Term{}, errors.Errorf("expected term at %d in %q", p.pos, p.input)
	}

	first := rune(name[0])
	if unicode.IsUpper(first) || first == '_' {
		return Var(name), nil
	}

	p.skipSpace()
	if !p.consume("(") {
		return Atom(name), nil
	}

	term := Term{Functor: name}
	for {
		arg, err := p.parseTerm()
		if err != nil {
			return Term{}, err
		}
		term.Args = append(term.Args, arg)
		p.skipSpace()
		if p.consume(",") {
			continue
		}
		if p.consume(")") {
			return term, nil
		}
		return Term{}, errors.Errorf("expected , or ) at %d in %q", p.pos, p.input)
	}
}

func (p *parser) parseName() string {
	start := p.pos
	for p.pos < len(p.input) {
		r := rune(p.input[p.pos])
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			p.pos++
			continue
		}
		break
	}
	return p.input[start:p.pos]
}

func (p *parser) parseQuoted() (string, error) {
	p.pos++ // opening quote
	var sb strings.Builder
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		switch c {
		case '\\':
			if p.pos+1 < len(p.input) {
				sb.WriteByte(p.input[p.pos+1])
				p.pos += 2
				continue
			}
			return "", errors.New("dangling escape in quoted atom")
		case '\'':
			p.pos++
			return sb.String(), nil
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
	return "", errors.New("unterminated quoted atom")
}
