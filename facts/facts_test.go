package facts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKB(t *testing.T) *KB {
	t.Helper()
	kb, err := Open(filepath.Join(t.TempDir(), "ada_at_example.com.pl"))
	require.NoError(t, err)
	return kb
}

func TestParseClause(t *testing.T) {
	t.Run("Fact", func(t *testing.T) {
		clause, err := ParseClause("dob(ada, '15 march 2000').")
		require.NoError(t, err)
		assert.Equal(t, "dob", clause.Head.Functor)
		require.Len(t, clause.Head.Args, 2)
		assert.Equal(t, "ada", clause.Head.Args[0].Functor)
		assert.Equal(t, "15 march 2000", clause.Head.Args[1].Functor)
		assert.Empty(t, clause.Body)
	})

	t.Run("Rule", func(t *testing.T) {
		clause, err := ParseClause("parent(X, Y) :- father(X, Y).")
		require.NoError(t, err)
		assert.True(t, clause.Head.Args[0].IsVar)
		require.Len(t, clause.Body, 1)
		assert.Equal(t, "father", clause.Body[0].Functor)
	})

	t.Run("Malformed", func(t *testing.T) {
		for _, line := range []string{"dob(ada", "dob(ada))", "", "likes(a,)junk"} {
			_, err := ParseClause(line)
			assert.Error(t, err, "line %q", line)
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		clause, err := ParseClause("dob(ada, '15 march 2000').")
		require.NoError(t, err)
		again, err := ParseClause(clause.String())
		require.NoError(t, err)
		assert.Equal(t, clause, again)
	})
}

func TestOpenSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.pl")
	content := "% stated facts\nmale(bob).\nbroken(\ndob(bob, '1 april 1990').\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o640))

	kb, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 2, kb.Len())
	assert.Equal(t, "male", kb.FindGender("bob"))
}

func TestAssertPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.pl")
	kb, err := Open(path)
	require.NoError(t, err)

	born := time.Date(2000, 3, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, kb.AssertDOB("Ada", born))
	require.NoError(t, kb.AssertDOB("ada", born)) // restated, appended again
	require.NoError(t, kb.Assert("male", "Bob"))
	require.NoError(t, kb.Assert("male", "bob"))
	assert.Equal(t, 4, kb.Len())

	reloaded, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 4, reloaded.Len())

	// Restated facts do not change what the first solution resolves to.
	dob, err := reloaded.FindDOB("ada")
	require.NoError(t, err)
	assert.Equal(t, "15 March 2000", dob)
	assert.Equal(t, "male", reloaded.FindGender("bob"))
}

func TestQueryCaseInsensitive(t *testing.T) {
	kb := newTestKB(t)
	require.NoError(t, kb.Assert("female", "Grace"))

	assert.Equal(t, "female", kb.FindGender("GRACE"))
	assert.Equal(t, "unknown", kb.FindGender("nobody"))
}

func TestAge(t *testing.T) {
	kb := newTestKB(t)
	require.NoError(t, kb.AssertDOB("ada", time.Date(2000, 3, 15, 0, 0, 0, 0, time.UTC)))

	t.Run("BeforeBirthday", func(t *testing.T) {
		age, err := kb.Age("ada", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, 24, age)
	})

	t.Run("OnBirthday", func(t *testing.T) {
		age, err := kb.Age("ada", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, 25, age)
	})

	t.Run("AfterBirthday", func(t *testing.T) {
		age, err := kb.Age("ada", time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, 25, age)
	})

	t.Run("NoFact", func(t *testing.T) {
		_, err := kb.Age("bob", time.Now())
		assert.ErrorIs(t, err, ErrNoMatch)
	})

	t.Run("MalformedDateFact", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "facts.pl")
		require.NoError(t, os.WriteFile(path, []byte("dob(bob, date(two, three, four)).\n"), 0o640))
		broken, err := Open(path)
		require.NoError(t, err)
		_, err = broken.Age("bob", time.Now())
		assert.Error(t, err)
	})
}

func TestParseDate(t *testing.T) {
	want := time.Date(2000, 3, 15, 0, 0, 0, 0, time.UTC)
	for _, input := range []string{
		"15 March 2000",
		"15 march 2000",
		"15 Mar 2000",
		"March 15, 2000",
		"15/3/2000",
		"15-3-2000",
		"2000-03-15",
	} {
		got, err := ParseDate(input)
		require.NoError(t, err, "input %q", input)
		assert.True(t, got.Equal(want), "input %q parsed as %s", input, got)
	}

	_, err := ParseDate("sometime in spring")
	assert.Error(t, err)
}

func TestFindRelation(t *testing.T) {
	kb := newTestKB(t)
	require.NoError(t, kb.Assert("sister", "grace", "ada"))

	assert.Equal(t, "grace", kb.FindRelation("sister", "ada"))
	assert.Equal(t, "unknown", kb.FindRelation("brother", "ada"))
}

func TestRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.pl")
	content := "father(alan, ada).\nparent(X, Y) :- father(X, Y).\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o640))

	kb, err := Open(path)
	require.NoError(t, err)

	result, err := kb.Query(Compound("parent", Var("Who"), Atom("ada")))
	require.NoError(t, err)
	assert.Equal(t, "alan", result["Who"])
}

func TestRecursionBounded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.pl")
	require.NoError(t, os.WriteFile(path, []byte("loop(X) :- loop(X).\n"), 0o640))

	kb, err := Open(path)
	require.NoError(t, err)

	_, err = kb.Query(Compound("loop", Atom("ada")))
	assert.ErrorIs(t, err, ErrNoMatch)
}
