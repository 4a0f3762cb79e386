package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/mnemora/mnemora/facts"
	"github.com/mnemora/mnemora/internal/metrics"
	"github.com/mnemora/mnemora/memory"
	"github.com/mnemora/mnemora/nlp"
	"github.com/mnemora/mnemora/sensor"
	"github.com/mnemora/mnemora/store"
)

// Definer lists every dictionary definition of a word. Satisfied by
// *nlp.WordNetLexicon.
type Definer interface {
	Definitions(word string) []string
}

// Dispatcher resolves populated input slots against the fact base, the
// graph store and the sensor, writing its answers back into output slots.
// It runs between the engine's two respond calls.
type Dispatcher struct {
	store     *store.Store
	analyzer  *nlp.Analyzer
	sentiment *nlp.SentimentAnalyzer
	definer   Definer
	sensor    *sensor.Manager
}

// NewDispatcher creates a new instance of Dispatcher. definer and sensor
// may be nil; their slots then resolve to "unknown" or "unavailable".
func NewDispatcher(s *store.Store, analyzer *nlp.Analyzer, sentiment *nlp.SentimentAnalyzer, definer Definer, sm *sensor.Manager) *Dispatcher {
	return &Dispatcher{
		store:     s,
		analyzer:  analyzer,
		sentiment: sentiment,
		definer:   definer,
		sensor:    sm,
	}
}

// Dispatch routes every populated input slot to its handler. The speaker's
// fact base is reloaded first so facts asserted in earlier turns resolve.
// A failing handler loses only its own slot; the rest of the turn runs.
func (d *Dispatcher) Dispatch(ctx context.Context, turn *Context, snap memory.SessionSnapshot) {
	kb, err := facts.Open(snap.FactFile)
	if err != nil {
		slog.Warn("failed to load fact base",
			slog.String("file", snap.FactFile), slog.String("error", err.Error()))
		kb, _ = facts.Open("")
	}
	username := strings.ToLower(strings.TrimSpace(snap.Username))

	if d.sensor != nil {
		d.sensor.SetCurrentUser(snap.Email)
	}

	// Snapshot the inputs before any handler runs so handler outputs
	// (find-gender filling the gender slot, say) never feed the fact
	// appends below.
	in := map[string]string{}
	for _, slot := range inputSlots {
		in[slot] = turn.Get(slot)
	}

	if in[SlotUserInputName] != "" {
		d.runSlot(SlotUserInputName, func() error {
			d.checkName(turn, in[SlotUserInputName], snap.Username)
			return nil
		})
	}
	if in[SlotDelete] != "" {
		d.runSlot(SlotDelete, func() error {
			return d.store.DeleteUserMemory(ctx, snap.Email)
		})
	}
	if in[SlotWord] != "" {
		d.runSlot(SlotWord, func() error {
			d.describeWord(turn, in[SlotWord])
			return nil
		})
	}
	if in[SlotMood] != "" {
		d.runSlot(SlotMood, func() error {
			d.checkSentiment(turn, in[SlotMood], snap.Username)
			return nil
		})
	}
	if in[SlotDOBPerson] != "" {
		d.runSlot(SlotDOBPerson, func() error {
			d.findDOB(turn, kb, in[SlotDOBPerson], username)
			return nil
		})
	}
	if in[SlotAgePerson] != "" {
		d.runSlot(SlotAgePerson, func() error {
			d.findAge(turn, kb, in[SlotAgePerson], username)
			return nil
		})
	}
	if in[SlotGenderPerson] != "" {
		d.runSlot(SlotGenderPerson, func() error {
			d.findGender(turn, kb, in[SlotGenderPerson], username)
			return nil
		})
	}
	if in[SlotRel] != "" {
		d.runSlot(SlotRel, func() error {
			d.checkRelation(turn, kb, in[SlotRel], in[SlotPerson1], username)
			return nil
		})
	}

	// Stated facts.
	if in[SlotOtherPerson1] != "" && in[SlotOtherPerson2] != "" && in[SlotOtherRelation] != "" {
		d.runSlot(SlotOtherRelation, func() error {
			return d.appendRelation(ctx, kb, snap.Email,
				in[SlotOtherPerson2], in[SlotOtherPerson1], in[SlotOtherRelation])
		})
	}
	if in[SlotGender] != "" {
		d.runSlot(SlotGender, func() error {
			return kb.Assert(in[SlotGender], username)
		})
	}
	if in[SlotOtherGenderPerson] != "" && in[SlotOtherGender] != "" {
		d.runSlot(SlotOtherGender, func() error {
			return kb.Assert(in[SlotOtherGender], in[SlotOtherGenderPerson])
		})
	}
	if in[SlotDOB] != "" {
		d.runSlot(SlotDOB, func() error {
			return appendDOB(kb, username, in[SlotDOB])
		})
	}
	if in[SlotOtherDOB] != "" && in[SlotOtherDOBPerson] != "" {
		d.runSlot(SlotOtherDOB, func() error {
			return appendDOB(kb, in[SlotOtherDOBPerson], in[SlotOtherDOB])
		})
	}
	if in[SlotRelation] == "married" && in[SlotPerson1] != "" {
		d.runSlot(SlotRelation, func() error {
			return d.appendRelation(ctx, kb, snap.Email, username, in[SlotPerson1], "married")
		})
	}
	if in[SlotRelation] != "" && in[SlotRelation] != "married" && in[SlotPerson] != "" {
		d.runSlot(SlotRelation, func() error {
			return d.appendRelation(ctx, kb, snap.Email, username, in[SlotPerson], in[SlotRelation])
		})
	}

	d.dispatchSensor(ctx, turn, in)
}

// runSlot confines a handler failure to its own slot.
func (d *Dispatcher) runSlot(slot string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.SlotFailures.WithLabelValues(slot).Inc()
			slog.Error("slot handler panicked",
				slog.String("slot", slot), slog.Any("panic", r))
		}
	}()
	if err := fn(); err != nil {
		metrics.SlotFailures.WithLabelValues(slot).Inc()
		slog.Warn("slot handler failed",
			slog.String("slot", slot), slog.String("error", err.Error()))
	}
}

// CheckName reports whether the stated name matches the session username,
// allowing partial and prefix matches on any name part.
func CheckName(stated, sessionUsername string) bool {
	stated = strings.ToLower(strings.TrimSpace(stated))
	sessionUsername = strings.ToLower(strings.TrimSpace(sessionUsername))
	if stated == "" || sessionUsername == "" {
		return false
	}
	for _, part := range strings.Fields(sessionUsername) {
		if stated == part || strings.HasPrefix(part, stated) {
			return true
		}
	}
	return strings.Contains(sessionUsername, stated)
}

func (d *Dispatcher) checkName(turn *Context, stated, sessionUsername string) {
	if CheckName(stated, sessionUsername) {
		turn.Set(SlotNameCheck, "true")
		return
	}
	turn.Set(SlotNameCheck, "false")
}

// describeWord answers a word-meaning question with every numbered sense.
func (d *Dispatcher) describeWord(turn *Context, word string) {
	if d.definer == nil {
		turn.Set(SlotDescription, "I don't know.")
		return
	}
	defs := d.definer.Definitions(word)
	if len(defs) == 0 {
		turn.Set(SlotDescription, "I don't know.")
		return
	}
	var b strings.Builder
	for i, def := range defs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s", i+1, def)
	}
	turn.Set(SlotDescription, b.String())
	turn.Set(SlotWord, capitalize(word))
}

// checkSentiment scores the stated mood. A proper noun short-circuits into
// a name check: claiming to be someone else reads as a lie.
func (d *Dispatcher) checkSentiment(turn *Context, mood, sessionUsername string) {
	if d.analyzer != nil {
		if analysis, err := d.analyzer.Analyze(mood); err == nil && isProperNoun(analysis) {
			if CheckName(mood, sessionUsername) {
				turn.Set(SlotSentiment, "truth")
			} else {
				turn.Set(SlotSentiment, "lie")
			}
			return
		}
	}
	if d.sentiment == nil {
		turn.Set(SlotSentiment, "neutral")
		return
	}
	score := d.sentiment.Score(mood)
	switch {
	case score.Positive > score.Negative:
		turn.Set(SlotSentiment, "positive")
	case score.Negative > score.Positive:
		turn.Set(SlotSentiment, "negative")
	default:
		turn.Set(SlotSentiment, "neutral")
	}
}

// isProperNoun reports whether the analysis is a single proper-noun token
// or a recognized person or place.
func isProperNoun(a *nlp.Analysis) bool {
	for _, entity := range a.Entities {
		if entity.Label == "PERSON" || entity.Label == "GPE" {
			return true
		}
	}
	if len(a.Sentences) != 1 || len(a.Sentences[0].Tokens) != 1 {
		return false
	}
	return a.Sentences[0].Tokens[0].Tag == "NNP"
}

// resolvePerson maps the USER sentinel to the speaker and folds case.
func resolvePerson(name, username string) string {
	if name == "USER" {
		return username
	}
	return strings.ToLower(name)
}

func (d *Dispatcher) findDOB(turn *Context, kb *facts.KB, name, username string) {
	person := resolvePerson(name, username)
	turn.Set(SlotPerson, capitalize(person))
	dob, err := kb.FindDOB(person)
	if err != nil {
		turn.Set(SlotDOB, "unknown")
		return
	}
	turn.Set(SlotDOB, dob)
}

func (d *Dispatcher) findAge(turn *Context, kb *facts.KB, name, username string) {
	person := resolvePerson(name, username)
	turn.Set(SlotPerson, capitalize(person))
	age, err := kb.Age(person, time.Now())
	if err != nil {
		turn.Set(SlotAge, "unknown")
		return
	}
	turn.Set(SlotAge, strconv.Itoa(age))
}

func (d *Dispatcher) findGender(turn *Context, kb *facts.KB, name, username string) {
	person := resolvePerson(name, username)
	turn.Set(SlotPerson, capitalize(person))
	turn.Set(SlotGender, kb.FindGender(person))
}

// checkRelation answers "who is the <rel> of <person>". Husband and wife
// both resolve through the symmetric married fact.
func (d *Dispatcher) checkRelation(turn *Context, kb *facts.KB, rel, person1, username string) {
	rel = strings.ToLower(strings.TrimSpace(rel))
	if rel == "" || person1 == "" {
		return
	}
	person1 = resolvePerson(person1, username)
	if rel == "husband" || rel == "wife" {
		rel = "married"
	}
	person2 := kb.FindRelation(rel, person1)
	if person2 == "unknown" {
		turn.Set(SlotPerson2, "unknown")
		return
	}
	turn.Set(SlotPerson2, capitalize(person2))
}

// appendDOB parses the stated date and asserts the birth fact.
func appendDOB(kb *facts.KB, name, stated string) error {
	born, err := facts.ParseDate(stated)
	if err != nil {
		return errors.Wrapf(err, "failed to record date of birth for %s", name)
	}
	return kb.AssertDOB(name, born)
}

// appendRelation asserts relation(person, subject) and mirrors it into
// graph social memory when the relation belongs to the closed set.
func (d *Dispatcher) appendRelation(ctx context.Context, kb *facts.KB, email, subject, person, relation string) error {
	relation = strings.ToLower(strings.TrimSpace(relation))
	if err := kb.Assert(relation, person, subject); err != nil {
		return err
	}
	kind, ok := store.ParseRelation(relation)
	if !ok {
		return nil
	}
	return d.store.SaveRelation(ctx, email, strings.ToLower(person), kind)
}

func (d *Dispatcher) dispatchSensor(ctx context.Context, turn *Context, in map[string]string) {
	if in[SlotGetTemperature] != "" {
		d.runSlot(SlotGetTemperature, func() error {
			if reading, ok := d.latestReading(); ok {
				turn.Set(SlotTemperature, fmt.Sprintf("%.1f °C", reading.Temperature))
			} else {
				turn.Set(SlotTemperature, "unavailable")
			}
			return nil
		})
	}
	if in[SlotGetHumidity] != "" {
		d.runSlot(SlotGetHumidity, func() error {
			if reading, ok := d.latestReading(); ok {
				turn.Set(SlotHumidity, fmt.Sprintf("%.1f %%", reading.Humidity))
			} else {
				turn.Set(SlotHumidity, "unavailable")
			}
			return nil
		})
	}
	if in[SlotGetSensorStatus] != "" {
		d.runSlot(SlotGetSensorStatus, func() error {
			if reading, ok := d.latestReading(); ok {
				turn.Set(SlotSensorStatus, reading.Status)
			} else {
				turn.Set(SlotSensorStatus, "unavailable")
			}
			return nil
		})
	}
	if in[SlotAnalyzeEnvironment] != "" {
		d.runSlot(SlotAnalyzeEnvironment, func() error {
			var env *sensor.Environment
			if d.sensor != nil {
				env = d.sensor.Analyze()
			}
			if env == nil {
				turn.Set(SlotEnvironmentalStatus, "unavailable")
				return nil
			}
			turn.Set(SlotComfortScore, strconv.Itoa(int(env.ComfortScore)))
			turn.Set(SlotRecommendations, strings.Join(env.Recommendations, "; "))
			turn.Set(SlotEnvironmentalStatus, "analyzed")
			return nil
		})
	}
	if in[SlotGetSensorMemory] != "" {
		d.runSlot(SlotGetSensorMemory, func() error {
			if d.sensor == nil {
				return nil
			}
			readings, err := d.sensor.RecentReadings(ctx, 5)
			if err != nil {
				return err
			}
			if len(readings) == 0 {
				return nil
			}
			turn.Set(SlotLatestTemperature, fmt.Sprintf("%.1f °C", readings[0].Temperature))
			turn.Set(SlotLatestHumidity, fmt.Sprintf("%.1f %%", readings[0].Humidity))
			return nil
		})
	}
}

func (d *Dispatcher) latestReading() (sensor.Reading, bool) {
	if d.sensor == nil {
		return sensor.Reading{}, false
	}
	return d.sensor.Latest()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
