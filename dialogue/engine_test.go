package dialogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternEngineCapturesSlots(t *testing.T) {
	e := NewPatternEngine(DefaultRules(), "")
	turn := NewContext()

	reply := e.Respond("When was Grace born?", turn)
	assert.Equal(t, "Grace", turn.Get(SlotDOBPerson))
	assert.Equal(t, "unknown was born on unknown.", reply)

	// Second pass renders the slots the dispatcher resolved.
	turn.Set(SlotPerson, "Grace")
	turn.Set(SlotDOB, "15 March 2000")
	reply = e.Respond("When was Grace born?", turn)
	assert.Equal(t, "Grace was born on 15 March 2000.", reply)
}

func TestPatternEngineAssigns(t *testing.T) {
	e := NewPatternEngine(DefaultRules(), "")
	turn := NewContext()

	e.Respond("My wife is Grace", turn)
	assert.Equal(t, "married", turn.Get(SlotRelation))
	assert.Equal(t, "Grace", turn.Get(SlotPerson1))

	turn = NewContext()
	e.Respond("When was I born?", turn)
	assert.Equal(t, "USER", turn.Get(SlotDOBPerson))

	turn = NewContext()
	e.Respond("What is the temperature?", turn)
	assert.Equal(t, "true", turn.Get(SlotGetTemperature))
}

func TestPatternEngineFallback(t *testing.T) {
	e := NewPatternEngine(DefaultRules(), "Hmm.")
	turn := NewContext()
	assert.Equal(t, "Hmm.", e.Respond("completely unmatched gibberish", turn))
	assert.False(t, turn.Has(SlotDOBPerson))
}

func TestContextReset(t *testing.T) {
	turn := NewContext()
	turn.Set(SlotMood, "happy")
	turn.Set(SlotSentiment, "positive")
	require.True(t, turn.Has(SlotMood))

	turn.ResetInputs()
	assert.False(t, turn.Has(SlotMood))
	assert.Equal(t, "positive", turn.Get(SlotSentiment))
}
