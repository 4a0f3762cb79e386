package nlp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifySentence(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		tokens []Token
		want   string
	}{
		{
			name: "QuestionMark",
			text: "You like rivers?",
			tokens: []Token{
				{"You", "PRP"}, {"like", "VBP"}, {"rivers", "NNS"}, {"?", "."},
			},
			want: TypeInterrogative,
		},
		{
			name: "WhWordWithoutQuestionMark",
			text: "Where is the station",
			tokens: []Token{
				{"Where", "WRB"}, {"is", "VBZ"}, {"the", "DT"}, {"station", "NN"},
			},
			want: TypeInterrogative,
		},
		{
			name: "AuxiliaryOpening",
			text: "Can you help me.",
			tokens: []Token{
				{"Can", "MD"}, {"you", "PRP"}, {"help", "VB"}, {"me", "PRP"}, {".", "."},
			},
			want: TypeInterrogative,
		},
		{
			name: "Exclamation",
			text: "That was amazing!",
			tokens: []Token{
				{"That", "DT"}, {"was", "VBD"}, {"amazing", "JJ"}, {"!", "."},
			},
			want: TypeExclamatory,
		},
		{
			name: "Interjection",
			text: "Wow, that is tall.",
			tokens: []Token{
				{"Wow", "UH"}, {",", ","}, {"that", "DT"}, {"is", "VBZ"}, {"tall", "JJ"}, {".", "."},
			},
			want: TypeExclamatory,
		},
		{
			name: "AuxiliaryQuestion",
			text: "Is the weather nice today?",
			tokens: []Token{
				{"Is", "VBZ"}, {"the", "DT"}, {"weather", "NN"},
				{"nice", "JJ"}, {"today", "NN"}, {"?", "."},
			},
			want: TypeInterrogative,
		},
		{
			name: "ImperativeChain",
			text: "Go get the book.",
			tokens: []Token{
				{"Go", "VB"}, {"get", "VB"}, {"the", "DT"}, {"book", "NN"}, {".", "."},
			},
			want: TypeImperative,
		},
		{
			name: "Imperative",
			text: "Open the window.",
			tokens: []Token{
				{"Open", "VB"}, {"the", "DT"}, {"window", "NN"}, {".", "."},
			},
			want: TypeImperative,
		},
		{
			name: "VerbThenPronoun",
			text: "Trust me.",
			tokens: []Token{
				{"Trust", "VB"}, {"me", "PRP"}, {".", "."},
			},
			want: TypeDeclarative,
		},
		{
			name: "Declarative",
			text: "The river is long.",
			tokens: []Token{
				{"The", "DT"}, {"river", "NN"}, {"is", "VBZ"}, {"long", "JJ"}, {".", "."},
			},
			want: TypeDeclarative,
		},
		{
			name:   "Empty",
			text:   "   ",
			tokens: nil,
			want:   TypeDeclarative,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifySentence(tt.text, tt.tokens))
		})
	}
}

func TestSentiment(t *testing.T) {
	analyzer := NewSentimentAnalyzer()

	t.Run("Positive", func(t *testing.T) {
		s := analyzer.Score("I love this wonderful day!")
		assert.Greater(t, s.Compound, compoundThreshold)
		assert.Equal(t, "positive", s.Label())
	})

	t.Run("Negative", func(t *testing.T) {
		s := analyzer.Score("This is terrible and I hate it.")
		assert.Less(t, s.Compound, -compoundThreshold)
		assert.Equal(t, "negative", s.Label())
	})

	t.Run("Neutral", func(t *testing.T) {
		s := analyzer.Score("The train leaves at nine.")
		assert.Equal(t, "neutral", s.Label())
	})
}

func TestMood(t *testing.T) {
	tests := []struct {
		name string
		s    Sentiment
		want string
	}{
		{"PositiveDominates", Sentiment{Positive: 0.6, Negative: 0.1, Neutral: 0.3}, "positive"},
		{"NegativeDominates", Sentiment{Positive: 0.1, Negative: 0.6, Neutral: 0.3}, "negative"},
		{"NeutralDominates", Sentiment{Positive: 0.2, Negative: 0.2, Neutral: 0.6}, "neutral"},
		{"TieGoesNeutral", Sentiment{Positive: 0.5, Negative: 0.5, Neutral: 0.0}, "neutral"},
		{"AllZero", Sentiment{}, "neutral"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.s.Mood())
		})
	}
}

func TestLongTag(t *testing.T) {
	assert.Equal(t, "noun, singular or mass", LongTag("NN"))
	assert.Equal(t, "verb, base form", LongTag("VB"))
	assert.Equal(t, ".", LongTag("."))
}

func TestPennToWordNetPOS(t *testing.T) {
	assert.Equal(t, "n", PennToWordNetPOS("NNS"))
	assert.Equal(t, "v", PennToWordNetPOS("VBD"))
	assert.Equal(t, "a", PennToWordNetPOS("JJR"))
	assert.Equal(t, "r", PennToWordNetPOS("RB"))
	assert.Equal(t, "", PennToWordNetPOS("DT"))
}

func TestAnalyze(t *testing.T) {
	analyzer := NewAnalyzer()

	t.Run("Empty", func(t *testing.T) {
		_, err := analyzer.Analyze("   ")
		assert.Error(t, err)
	})

	t.Run("SegmentsAndTags", func(t *testing.T) {
		analysis, err := analyzer.Analyze("The river is long. How are you?")
		require.NoError(t, err)
		require.Len(t, analysis.Sentences, 2)
		assert.NotEmpty(t, analysis.Sentences[0].Tokens)
		assert.Equal(t, TypeInterrogative, analysis.Sentences[1].Type)
	})
}
