// Package dialogue routes conversation slots between the surface engine
// and the memory and reasoning layers.
package dialogue

// Input slots, filled by the engine from the utterance.
const (
	SlotMood              = "mood"
	SlotWord              = "word"
	SlotDOBPerson         = "dob_person"
	SlotAgePerson         = "age_person"
	SlotGenderPerson      = "gender_person"
	SlotRel               = "rel"
	SlotPerson1           = "person1"
	SlotGender            = "gender"
	SlotDOB               = "dob"
	SlotRelation          = "relation"
	SlotPerson            = "person"
	SlotOtherDOBPerson    = "other_dob_person"
	SlotOtherDOB          = "other_dob"
	SlotOtherGenderPerson = "other_gender_person"
	SlotOtherGender       = "other_gender"
	SlotOtherPerson1      = "other_person1"
	SlotOtherPerson2      = "other_person2"
	SlotOtherRelation     = "other_relation"
	SlotDelete            = "delete"
	SlotUserInputName     = "user_input_name"

	SlotGetTemperature     = "get_temperature"
	SlotGetHumidity        = "get_humidity"
	SlotGetSensorStatus    = "get_sensor_status"
	SlotAnalyzeEnvironment = "analyze_environment"
	SlotGetSensorMemory    = "get_sensor_memory"
)

// Output slots, filled by the dispatcher for the engine's second pass.
const (
	SlotDescription         = "description"
	SlotPerson2             = "person2"
	SlotAge                 = "age"
	SlotNameCheck           = "name_check"
	SlotSentiment           = "sentiment"
	SlotTemperature         = "temperature"
	SlotHumidity            = "humidity"
	SlotSensorStatus        = "sensor_status"
	SlotComfortScore        = "comfort_score"
	SlotRecommendations     = "recommendations"
	SlotEnvironmentalStatus = "environmental_status"
	SlotLatestTemperature   = "latest_temperature"
	SlotLatestHumidity      = "latest_humidity"
)

// inputSlots are reset after every turn so one utterance never bleeds into
// the next.
var inputSlots = []string{
	SlotMood, SlotWord, SlotDOBPerson, SlotAgePerson, SlotGenderPerson,
	SlotRel, SlotPerson1, SlotGender, SlotDOB, SlotRelation, SlotPerson,
	SlotOtherDOBPerson, SlotOtherDOB, SlotOtherGenderPerson, SlotOtherGender,
	SlotOtherPerson1, SlotOtherPerson2, SlotOtherRelation,
	SlotDelete, SlotUserInputName,
	SlotGetTemperature, SlotGetHumidity, SlotGetSensorStatus,
	SlotAnalyzeEnvironment, SlotGetSensorMemory,
}

// Context is the slot table for one turn. Not safe for concurrent use; a
// turn runs on one goroutine.
type Context struct {
	slots map[string]string
}

// NewContext creates a new instance of Context.
func NewContext() *Context {
	return &Context{slots: map[string]string{}}
}

// Get returns the slot value, "" when unset.
func (c *Context) Get(name string) string {
	return c.slots[name]
}

// Set assigns the slot. Empty values clear it.
func (c *Context) Set(name, value string) {
	if value == "" {
		delete(c.slots, name)
		return
	}
	c.slots[name] = value
}

// Has reports whether the slot holds a non-empty value.
func (c *Context) Has(name string) bool {
	return c.slots[name] != ""
}

// ResetInputs clears every input slot, keeping outputs for the engine's
// final render.
func (c *Context) ResetInputs() {
	for _, name := range inputSlots {
		delete(c.slots, name)
	}
}
