package facts

import (
	"bufio"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// KB is one user's fact base, backed by a clause file. All methods are safe
// for concurrent use; asserts append to the file immediately so a crash
// never loses stated facts.
type KB struct {
	path string

	mu      sync.Mutex
	clauses []Clause
}

// Open loads the clause file at path, creating an empty base when the file
// does not exist. Malformed lines are skipped with a warning so one bad
// clause never takes out the whole base.
func Open(path string) (*KB, error) {
	kb := &KB{path: path}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return kb, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open fact file %s", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		clause, err := ParseClause(line)
		if err != nil {
			slog.Warn("skipping malformed clause",
				slog.String("file", path), slog.Int("line", lineNo), slog.String("error", err.Error()))
			continue
		}
		kb.clauses = append(kb.clauses, clause)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read fact file %s", path)
	}
	return kb, nil
}

// Path returns the backing file path.
func (kb *KB) Path() string {
	return kb.path
}

// Len returns the number of loaded clauses.
func (kb *KB) Len() int {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	return len(kb.clauses)
}

// Assert records functor(args...) and appends it to the backing file.
// Arguments fold to lower case so queries are case insensitive. Restating
// a fact appends another copy; queries resolve against the first.
func (kb *KB) Assert(functor string, args ...string) error {
	terms := make([]Term, len(args))
	for i, arg := range args {
		terms[i] = Atom(strings.ToLower(strings.TrimSpace(arg)))
	}
	return kb.assertClause(Clause{Head: Compound(functor, terms...)})
}

func (kb *KB) assertClause(clause Clause) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	rendered := clause.String()
	f, err := os.OpenFile(kb.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return errors.Wrapf(err, "failed to open fact file %s", kb.path)
	}
	defer f.Close()
	if _, err := f.WriteString(rendered + "\n"); err != nil {
		return errors.Wrapf(err, "failed to append fact to %s", kb.path)
	}

	kb.clauses = append(kb.clauses, clause)
	return nil
}

// Query finds the first solution for the goal and returns the resolved
// binding for each variable in it. ErrNoMatch when nothing unifies.
func (kb *KB) Query(goal Term) (map[string]string, error) {
	kb.mu.Lock()
	clauses := make([]Clause, len(kb.clauses))
	copy(clauses, kb.clauses)
	kb.mu.Unlock()

	env, ok := solve(clauses, []Term{lowerGoal(goal)}, bindings{}, 0)
	if !ok {
		return nil, errors.Wrapf(ErrNoMatch, "query %s", goal)
	}

	result := map[string]string{}
	collectVars(goal, env, result)
	return result, nil
}

// lowerGoal folds constant arguments so queries match case-folded asserts.
func lowerGoal(t Term) Term {
	if t.IsVar {
		return t
	}
	if len(t.Args) == 0 {
		return Atom(strings.ToLower(t.Functor))
	}
	out := Term{Functor: t.Functor, Args: make([]Term, len(t.Args))}
	for i, arg := range t.Args {
		out.Args[i] = lowerGoal(arg)
	}
	return out
}

func collectVars(t Term, env bindings, out map[string]string) {
	if t.IsVar {
		resolved := env.resolve(t)
		if !resolved.IsVar {
			out[t.Functor] = resolved.Functor
		}
		return
	}
	for _, arg := range t.Args {
		collectVars(arg, env, out)
	}
}

// AssertDOB records dob(name, date(Y, M, D)).
func (kb *KB) AssertDOB(name string, born time.Time) error {
	head := Compound("dob",
		Atom(strings.ToLower(strings.TrimSpace(name))),
		Compound("date",
			Atom(strconv.Itoa(born.Year())),
			Atom(strconv.Itoa(int(born.Month()))),
			Atom(strconv.Itoa(born.Day()))))
	return kb.assertClause(Clause{Head: head})
}

// dob returns the recorded date of birth for the person.
func (kb *KB) dob(name string) (time.Time, error) {
	result, err := kb.Query(Compound("dob", Atom(name),
		Compound("date", Var("Y"), Var("M"), Var("D"))))
	if err != nil {
		return time.Time{}, err
	}
	year, errY := strconv.Atoi(result["Y"])
	month, errM := strconv.Atoi(result["M"])
	day, errD := strconv.Atoi(result["D"])
	if errY != nil || errM != nil || errD != nil {
		return time.Time{}, errors.Errorf("malformed date of birth for %s", name)
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

// FindDOB returns the date of birth spelled out, e.g. "15 March 2000".
func (kb *KB) FindDOB(name string) (string, error) {
	born, err := kb.dob(name)
	if err != nil {
		return "", err
	}
	return born.Format("2 January 2006"), nil
}

// Age derives the person's age in whole years at the given time, counting
// a year only once the birthday has passed.
func (kb *KB) Age(name string, now time.Time) (int, error) {
	born, err := kb.dob(name)
	if err != nil {
		return 0, err
	}
	age := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}
	if age < 0 {
		return 0, errors.Errorf("date of birth for %s is in the future", name)
	}
	return age, nil
}

// dateLayouts are the spoken and written forms users state dates in.
// Day-first, matching how the dialogue prompts for them.
var dateLayouts = []string{
	"2 January 2006",
	"2 Jan 2006",
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"January 2 2006",
	"2006-01-02",
}

// ParseDate reads a user-stated date in any accepted form.
func ParseDate(s string) (time.Time, error) {
	normalized := titleCaseWords(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, normalized); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unparseable date %q", s)
}

// titleCaseWords uppercases word initials so case-folded month names parse.
func titleCaseWords(s string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, ",", " "))))
	for i, field := range fields {
		if len(field) > 0 && field[0] >= 'a' && field[0] <= 'z' {
			fields[i] = strings.ToUpper(field[:1]) + field[1:]
		}
	}
	return strings.Join(fields, " ")
}

// FindGender returns "male", "female" or "unknown" for the person.
func (kb *KB) FindGender(name string) string {
	if _, err := kb.Query(Compound("male", Atom(name))); err == nil {
		return "male"
	}
	if _, err := kb.Query(Compound("female", Atom(name))); err == nil {
		return "female"
	}
	return "unknown"
}

// FindRelation returns who stands in the given relation to the person, e.g.
// sister(X, name). "unknown" when no fact matches.
func (kb *KB) FindRelation(relation, name string) string {
	result, err := kb.Query(Compound(relation, Var("X"), Atom(name)))
	if err != nil {
		return "unknown"
	}
	return result["X"]
}

// Holds reports whether functor(args...) is derivable.
func (kb *KB) Holds(functor string, args ...string) bool {
	terms := make([]Term, len(args))
	for i, arg := range args {
		terms[i] = Atom(arg)
	}
	_, err := kb.Query(Compound(functor, terms...))
	return err == nil
}
