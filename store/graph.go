package store

import (
	"time"
)

// Label is a node label. Labels are a closed set; drivers splice them into
// queries and must never receive caller-supplied strings.
type Label string

const (
	LabelUser          Label = "User"
	LabelAgent         Label = "Agent"
	LabelEpisode       Label = "Episode"
	LabelInteraction   Label = "Interaction"
	LabelText          Label = "Text"
	LabelSentence      Label = "Sentence"
	LabelWord          Label = "Word"
	LabelDescription   Label = "Description"
	LabelSynonym       Label = "Synonym"
	LabelAntonym       Label = "Antonym"
	LabelCategory      Label = "Category"
	LabelDomain        Label = "Domain"
	LabelSentiment     Label = "Sentiment"
	LabelMood          Label = "Mood"
	LabelSentenceType  Label = "SentenceType"
	LabelIPAddress     Label = "IPAddress"
	LabelLocation      Label = "Location"
	LabelPerson        Label = "Person"
	LabelSensorReading Label = "SensorReading"

	// Memory-layer labels carried alongside the kind label.
	LabelSensoryMemory    Label = "SensoryMemory"
	LabelSemanticMemory   Label = "SemanticMemory"
	LabelPerceptualMemory Label = "PerceptualAssociativeMemory"
	LabelEpisodicMemory   Label = "EpisodicMemory"
	LabelSocialMemory     Label = "SocialMemory"
)

// EdgeType is a relationship type. Closed set, same splicing rule as Label.
type EdgeType string

const (
	EdgeHasEpisode       EdgeType = "HAS_EPISODE"
	EdgeNextEpisode      EdgeType = "NEXT_EPISODE"
	EdgeHasInteraction   EdgeType = "HAS_INTERACTION"
	EdgeNextInteraction  EdgeType = "NEXT_INTERACTION"
	EdgeHasUserResponse  EdgeType = "HAS_USER_RESPONSE"
	EdgeHasBotResponse   EdgeType = "HAS_BOT_RESPONSE"
	EdgeGenerated        EdgeType = "GENERATED"
	EdgeHasSentence      EdgeType = "HAS_A_SENTENCE"
	EdgeNextSentence     EdgeType = "NEXT_SENTENCE"
	EdgeHasWord          EdgeType = "HAS_A_WORD"
	EdgeNextWord         EdgeType = "NEXT_WORD"
	EdgeIsA              EdgeType = "IS_A"
	EdgeHasSynonym       EdgeType = "HAS_SYNONYM"
	EdgeHasAntonym       EdgeType = "HAS_ANTONYM"
	EdgeBelongsToDomain  EdgeType = "BELONGS_TO_DOMAIN"
	EdgeHasSentiment     EdgeType = "HAS_SENTIMENT"
	EdgeHasMood          EdgeType = "HAS_MOOD"
	EdgeHasType          EdgeType = "HAS_TYPE"
	EdgeOriginatedFrom   EdgeType = "ORIGINATED_FROM"
	EdgeGeoLocatedAt     EdgeType = "GEO_LOCATED_AT"
	EdgeHasSensorReading EdgeType = "HAS_SENSOR_READING"
)

// ownershipEdges are the edge types that confer per-user ownership for the
// deletion cascade. Nodes only reachable through these from one User are
// that user's memory; everything else is shared.
var ownershipEdges = []EdgeType{
	EdgeHasEpisode,
	EdgeHasInteraction,
	EdgeHasUserResponse,
	EdgeHasBotResponse,
	EdgeHasSentence,
	EdgeHasWord,
	EdgeHasSensorReading,
}

// Props holds node or edge properties. Values are strings, numbers, bools or
// time.Time; drivers serialize time.Time to RFC 3339 with nanoseconds.
type Props map[string]any

// NodeRef identifies an existing node by labels plus identity-key properties.
type NodeRef struct {
	Labels []Label
	Key    Props
}

// timeLayout is the canonical on-store timestamp format. Fractional seconds
// keep fixed width so the strings sort lexicographically; drivers order
// episode and interaction chains by them.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders a timestamp in the canonical store format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime reads a timestamp in the canonical store format.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
