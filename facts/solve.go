package facts

import "strconv"

// bindings maps variable names to terms. Lookups chase chains so a variable
// bound to another variable resolves through it.
type bindings map[string]Term

func (b bindings) resolve(t Term) Term {
	for t.IsVar {
		bound, ok := b[t.Functor]
		if !ok {
			return t
		}
		t = bound
	}
	if len(t.Args) == 0 {
		return t
	}
	resolved := Term{Functor: t.Functor, Args: make([]Term, len(t.Args))}
	for i, arg := range t.Args {
		resolved.Args[i] = b.resolve(arg)
	}
	return resolved
}

func (b bindings) clone() bindings {
	out := make(bindings, len(b))
	for name, t := range b {
		out[name] = t
	}
	return out
}

// unify extends the bindings so a and b are equal, or reports failure.
func unify(a, b Term, env bindings) (bindings, bool) {
	a = env.resolve(a)
	b = env.resolve(b)

	switch {
	case a.IsVar:
		next := env.clone()
		next[a.Functor] = b
		return next, true
	case b.IsVar:
		next := env.clone()
		next[b.Functor] = a
		return next, true
	case a.Functor != b.Functor || len(a.Args) != len(b.Args):
		return nil, false
	}

	for i := range a.Args {
		next, ok := unify(a.Args[i], b.Args[i], env)
		if !ok {
			return nil, false
		}
		env = next
	}
	return env, true
}

// maxDepth bounds rule recursion so a cyclic rule set cannot spin forever.
const maxDepth = 512

// solve finds the first solution for the goals over the clause list.
func solve(clauses []Clause, goals []Term, env bindings, depth int) (bindings, bool) {
	if depth > maxDepth {
		return nil, false
	}
	if len(goals) == 0 {
		return env, true
	}

	goal, rest := goals[0], goals[1:]
	for i, clause := range clauses {
		renamed := renameClause(clause, depth*len(clauses)+i)
		next, ok := unify(goal, renamed.Head, env)
		if !ok {
			continue
		}
		if result, ok := solve(clauses, append(renamed.Body, rest...), next, depth+1); ok {
			return result, true
		}
	}
	return nil, false
}

// renameClause gives clause variables a fresh suffix so distinct
// applications of the same rule never share bindings.
func renameClause(c Clause, serial int) Clause {
	suffix := "#" + strconv.Itoa(serial)
	out := Clause{Head: renameTerm(c.Head, suffix)}
	for _, goal := range c.Body {
		out.Body = append(out.Body, renameTerm(goal, suffix))
	}
	return out
}

func renameTerm(t Term, suffix string) Term {
	if t.IsVar {
		return Var(t.Functor + suffix)
	}
	if len(t.Args) == 0 {
		return t
	}
	out := Term{Functor: t.Functor, Args: make([]Term, len(t.Args))}
	for i, arg := range t.Args {
		out.Args[i] = renameTerm(arg, suffix)
	}
	return out
}
