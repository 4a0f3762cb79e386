package nlp

import "github.com/jonreiter/govader"

// Sentiment holds the four VADER channels for one text.
type Sentiment struct {
	Positive float64
	Negative float64
	Neutral  float64
	Compound float64
}

// compoundThreshold separates positive and negative from neutral, per the
// standard VADER interpretation.
const compoundThreshold = 0.05

// SentimentAnalyzer scores texts with the VADER lexicon. Safe for
// concurrent use after construction.
type SentimentAnalyzer struct {
	vader *govader.SentimentIntensityAnalyzer
}

// NewSentimentAnalyzer creates a new instance of SentimentAnalyzer.
func NewSentimentAnalyzer() *SentimentAnalyzer {
	return &SentimentAnalyzer{vader: govader.NewSentimentIntensityAnalyzer()}
}

// Score computes the sentiment channels for the text.
func (a *SentimentAnalyzer) Score(text string) Sentiment {
	scores := a.vader.PolarityScores(text)
	return Sentiment{
		Positive: scores.Positive,
		Negative: scores.Negative,
		Neutral:  scores.Neutral,
		Compound: scores.Compound,
	}
}

// Label reduces the compound score to positive, negative or neutral.
func (s Sentiment) Label() string {
	switch {
	case s.Compound >= compoundThreshold:
		return "positive"
	case s.Compound <= -compoundThreshold:
		return "negative"
	default:
		return "neutral"
	}
}

// Mood returns the dominant channel. Ties resolve to neutral so a flat
// text never reads as emotional.
func (s Sentiment) Mood() string {
	if s.Positive > s.Negative && s.Positive > s.Neutral {
		return "positive"
	}
	if s.Negative > s.Positive && s.Negative > s.Neutral {
		return "negative"
	}
	return "neutral"
}
