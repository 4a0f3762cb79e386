package dialogue

import (
	"regexp"
	"strings"
)

// Engine turns an utterance into a surface reply, reading and writing
// slots on the turn context. A turn calls Respond twice with the
// dispatcher in between: the first pass captures input slots, the second
// renders the reply from the slots the dispatcher resolved.
type Engine interface {
	Respond(utterance string, turn *Context) string
}

// Rule matches an utterance and renders a templated reply. Named capture
// groups fill slots of the same name; Assign sets fixed slot values on
// every match. Template placeholders look like {slot}.
type Rule struct {
	Pattern  *regexp.Regexp
	Assign   map[string]string
	Template string
}

// PatternEngine is a small rule-based engine. Rules are tried in order;
// the first match wins.
type PatternEngine struct {
	rules    []Rule
	fallback string
}

// NewPatternEngine creates a new instance of PatternEngine.
func NewPatternEngine(rules []Rule, fallback string) *PatternEngine {
	if fallback == "" {
		fallback = "I see. Tell me more."
	}
	return &PatternEngine{rules: rules, fallback: fallback}
}

// Respond matches the utterance against the rules, captures slots and
// renders the matching rule's template.
func (e *PatternEngine) Respond(utterance string, turn *Context) string {
	trimmed := strings.TrimSpace(utterance)
	for _, rule := range e.rules {
		match := rule.Pattern.FindStringSubmatch(trimmed)
		if match == nil {
			continue
		}
		for i, name := range rule.Pattern.SubexpNames() {
			if name != "" && match[i] != "" {
				turn.Set(name, strings.TrimSpace(match[i]))
			}
		}
		for slot, value := range rule.Assign {
			turn.Set(slot, value)
		}
		return expand(rule.Template, turn)
	}
	return e.fallback
}

var placeholderPattern = regexp.MustCompile(`\{([a-z0-9_]+)\}`)

// expand substitutes {slot} placeholders from the turn context. Unresolved
// slots render as "unknown" so a reply never leaks raw placeholders.
func expand(template string, turn *Context) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(ph string) string {
		name := ph[1 : len(ph)-1]
		if v := turn.Get(name); v != "" {
			return v
		}
		return "unknown"
	})
}

// DefaultRules is the built-in conversational repertoire.
func DefaultRules() []Rule {
	return []Rule{
		{
			Pattern:  regexp.MustCompile(`(?i)^my name is (?P<user_input_name>[a-z][a-z '-]*)[.!]?$`),
			Template: "Name check: {name_check}.",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)^what does (?P<word>[a-z'-]+) mean\??$`),
			Template: "{word}: {description}",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)^when was i born\??$`),
			Assign:   map[string]string{SlotDOBPerson: "USER"},
			Template: "You were born on {dob}.",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)^when was (?P<dob_person>[a-z][a-z '-]*?) born\??$`),
			Template: "{person} was born on {dob}.",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)^how old am i\??$`),
			Assign:   map[string]string{SlotAgePerson: "USER"},
			Template: "You are {age} years old.",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)^how old is (?P<age_person>[a-z][a-z '-]*?)\??$`),
			Template: "{person} is {age} years old.",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)^is (?P<gender_person>[a-z][a-z '-]*?) male or female\??$`),
			Template: "{person} is {gender}.",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)^who is the (?P<rel>[a-z]+) of (?P<person1>[a-z][a-z '-]*?)\??$`),
			Template: "The {rel} of {person1} is {person2}.",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)^i am (?P<gender>male|female)[.!]?$`),
			Template: "Noted, I will remember that.",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)^i was born on (?P<dob>.+?)[.!]?$`),
			Template: "I will remember your birthday.",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)^(?P<other_gender_person>[a-z][a-z'-]*) is (?P<other_gender>male|female)[.!]?$`),
			Template: "Noted, I will remember that.",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)^(?P<other_dob_person>[a-z][a-z'-]*) was born on (?P<other_dob>.+?)[.!]?$`),
			Template: "I will remember that birthday.",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)^my (?:husband|wife) is (?P<person1>[a-z][a-z '-]*?)[.!]?$`),
			Assign:   map[string]string{SlotRelation: "married"},
			Template: "Noted, I will remember that.",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)^my (?P<relation>father|mother|brother|sister|son|daughter|friend|cousin|uncle|aunt) is (?P<person>[a-z][a-z '-]*?)[.!]?$`),
			Template: "Noted, I will remember that.",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)^(?P<other_relation>father|mother|brother|sister|son|daughter|friend|cousin|uncle|aunt) of (?P<other_person2>[a-z][a-z'-]*) is (?P<other_person1>[a-z][a-z '-]*?)[.!]?$`),
			Template: "Noted, I will remember that.",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)^i (?:feel|am feeling) (?P<mood>.+?)[.!]?$`),
			Template: "That sounds {sentiment}.",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)\bwhat(?:'s| is) the temperature\b`),
			Assign:   map[string]string{SlotGetTemperature: "true"},
			Template: "The temperature is {temperature}.",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)\bwhat(?:'s| is) the humidity\b`),
			Assign:   map[string]string{SlotGetHumidity: "true"},
			Template: "The humidity is {humidity}.",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)\bsensor status\b`),
			Assign:   map[string]string{SlotGetSensorStatus: "true"},
			Template: "Sensor status: {sensor_status}.",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)\banaly[sz]e the environment\b`),
			Assign:   map[string]string{SlotAnalyzeEnvironment: "true"},
			Template: "Comfort score {comfort_score} out of 100. {recommendations}",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)\b(?:recent|last) sensor readings?\b`),
			Assign:   map[string]string{SlotGetSensorMemory: "true"},
			Template: "Most recent reading: {latest_temperature} at {latest_humidity} humidity.",
		},
		{
			Pattern:  regexp.MustCompile(`(?i)^(?:forget everything about me|delete my memory)[.!]?$`),
			Assign:   map[string]string{SlotDelete: "true"},
			Template: "Your conversation memory has been deleted.",
		},
	}
}
