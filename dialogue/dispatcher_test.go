package dialogue

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemora/mnemora/internal/profile"
	"github.com/mnemora/mnemora/memory"
	"github.com/mnemora/mnemora/nlp"
	"github.com/mnemora/mnemora/store"
	"github.com/mnemora/mnemora/store/db/sqlite"
)

type fakeDefiner struct {
	defs map[string][]string
}

func (f *fakeDefiner) Definitions(word string) []string {
	return f.defs[word]
}

func newTestDispatcher(t *testing.T) (*Dispatcher, memory.SessionSnapshot) {
	t.Helper()
	p := &profile.Profile{
		Mode:   "demo",
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	}
	db, err := sqlite.NewDB(p)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { _ = db.Close() })
	s := store.New(db)

	require.NoError(t, s.UpsertUser(context.Background(),
		&store.User{Email: "ada@example.com", Name: "Ada Lovelace"}))

	definer := &fakeDefiner{defs: map[string][]string{
		"river": {"a large natural stream of water", "a large flow"},
	}}
	d := NewDispatcher(s, nlp.NewAnalyzer(), nlp.NewSentimentAnalyzer(), definer, nil)
	snap := memory.SessionSnapshot{
		Email:    "ada@example.com",
		Username: "Ada Lovelace",
		FactFile: filepath.Join(t.TempDir(), "ada_at_example.com.pl"),
	}
	return d, snap
}

// turn runs the full engine, dispatcher, engine cycle for one utterance.
func turn(t *testing.T, d *Dispatcher, snap memory.SessionSnapshot, utterance string) (string, *Context) {
	t.Helper()
	e := NewPatternEngine(DefaultRules(), "")
	turnCtx := NewContext()
	e.Respond(utterance, turnCtx)
	d.Dispatch(context.Background(), turnCtx, snap)
	reply := e.Respond(utterance, turnCtx)
	turnCtx.ResetInputs()
	return reply, turnCtx
}

func TestBirthdayRoundTrip(t *testing.T) {
	d, snap := newTestDispatcher(t)

	reply, _ := turn(t, d, snap, "I was born on 15 March 2000")
	assert.Equal(t, "I will remember your birthday.", reply)

	reply, _ = turn(t, d, snap, "When was I born?")
	assert.Equal(t, "You were born on 15 March 2000.", reply)

	reply, _ = turn(t, d, snap, "How old am I?")
	assert.NotContains(t, reply, "unknown")
}

func TestThirdPartyFacts(t *testing.T) {
	d, snap := newTestDispatcher(t)

	turn(t, d, snap, "Grace was born on 9 December 1906")
	turn(t, d, snap, "Grace is female")

	reply, _ := turn(t, d, snap, "When was Grace born?")
	assert.Equal(t, "Grace was born on 9 December 1906.", reply)

	reply, _ = turn(t, d, snap, "Is Grace male or female?")
	assert.Equal(t, "Grace is female.", reply)
}

func TestUnknownLookups(t *testing.T) {
	d, snap := newTestDispatcher(t)

	reply, _ := turn(t, d, snap, "When was Nobody born?")
	assert.Equal(t, "Nobody was born on unknown.", reply)

	reply, _ = turn(t, d, snap, "Is Nobody male or female?")
	assert.Equal(t, "Nobody is unknown.", reply)

	reply, _ = turn(t, d, snap, "Who is the sister of Nobody?")
	assert.Equal(t, "The sister of Nobody is unknown.", reply)
}

func TestRelationRoundTrip(t *testing.T) {
	d, snap := newTestDispatcher(t)

	turn(t, d, snap, "sister of Ada is Grace")
	reply, _ := turn(t, d, snap, "Who is the sister of Ada?")
	assert.Equal(t, "The sister of Ada is Grace.", reply)
}

func TestMarriedResolvesHusbandAndWife(t *testing.T) {
	d, snap := newTestDispatcher(t)

	turn(t, d, snap, "My wife is Grace")

	// Husband and wife both fold to the married fact.
	reply, _ := turn(t, d, snap, "Who is the wife of Ada Lovelace?")
	assert.Equal(t, "The wife of Ada Lovelace is Grace.", reply)
	reply, _ = turn(t, d, snap, "Who is the husband of Ada Lovelace?")
	assert.Equal(t, "The husband of Ada Lovelace is Grace.", reply)
}

func TestNameCheck(t *testing.T) {
	d, snap := newTestDispatcher(t)

	reply, _ := turn(t, d, snap, "My name is Ada")
	assert.Equal(t, "Name check: true.", reply)

	reply, _ = turn(t, d, snap, "My name is Love")
	assert.Equal(t, "Name check: true.", reply) // prefix of a name part

	reply, _ = turn(t, d, snap, "My name is Bob")
	assert.Equal(t, "Name check: false.", reply)
}

func TestWordMeanings(t *testing.T) {
	d, snap := newTestDispatcher(t)

	reply, _ := turn(t, d, snap, "What does river mean?")
	assert.Contains(t, reply, "1. a large natural stream of water")
	assert.Contains(t, reply, "2. a large flow")

	reply, _ = turn(t, d, snap, "What does zzzz mean?")
	assert.Contains(t, reply, "I don't know.")
}

func TestMoodSentiment(t *testing.T) {
	d, snap := newTestDispatcher(t)

	reply, _ := turn(t, d, snap, "I feel happy")
	assert.Equal(t, "That sounds positive.", reply)

	reply, _ = turn(t, d, snap, "I feel terrible")
	assert.Equal(t, "That sounds negative.", reply)
}

func TestSensorSlotsUnavailable(t *testing.T) {
	d, snap := newTestDispatcher(t)

	reply, _ := turn(t, d, snap, "What is the temperature?")
	assert.Equal(t, "The temperature is unavailable.", reply)

	reply, _ = turn(t, d, snap, "Analyze the environment")
	assert.Contains(t, reply, "unknown")
}

func TestCheckNamePartialMatching(t *testing.T) {
	assert.True(t, CheckName("ada", "Ada Lovelace"))
	assert.True(t, CheckName("Love", "Ada Lovelace"))
	assert.True(t, CheckName("lovelace", "Ada Lovelace"))
	assert.False(t, CheckName("bob", "Ada Lovelace"))
	assert.False(t, CheckName("", "Ada Lovelace"))
	assert.False(t, CheckName("ada", ""))
}
