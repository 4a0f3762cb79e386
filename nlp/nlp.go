// Package nlp wraps the text analysis the ingestion pipeline needs:
// sentence segmentation, tokenization with part-of-speech tags, named
// entities, sentiment, and dictionary lookups.
package nlp

import (
	"strings"

	"github.com/jdkato/prose/v2"
	"github.com/pkg/errors"
)

// Token is one word with its Penn Treebank tag.
type Token struct {
	Text string
	Tag  string
}

// Entity is a named entity with its label, e.g. PERSON or GPE.
type Entity struct {
	Text  string
	Label string
}

// Sentence is one segmented sentence with its tokens and classification.
type Sentence struct {
	Text   string
	Tokens []Token
	Type   string
}

// Analysis is the full decomposition of one text.
type Analysis struct {
	Text      string
	Sentences []Sentence
	Entities  []Entity
}

// Analyzer runs the trained tagging models. It is safe for concurrent use
// and should be created once; model loading is not cheap.
type Analyzer struct{}

// NewAnalyzer creates a new instance of Analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze segments, tokenizes, tags and classifies the text.
func (a *Analyzer) Analyze(text string) (*Analysis, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("empty text")
	}

	doc, err := prose.NewDocument(text)
	if err != nil {
		return nil, errors.Wrap(err, "failed to analyze text")
	}

	analysis := &Analysis{Text: text}
	for _, ent := range doc.Entities() {
		analysis.Entities = append(analysis.Entities, Entity{Text: ent.Text, Label: ent.Label})
	}

	for _, sent := range doc.Sentences() {
		// Re-run tagging per sentence so tokens group under the
		// sentence they belong to.
		sentDoc, err := prose.NewDocument(sent.Text,
			prose.WithSegmentation(false), prose.WithExtraction(false))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to tag sentence %q", sent.Text)
		}
		tokens := make([]Token, 0, len(sentDoc.Tokens()))
		for _, tok := range sentDoc.Tokens() {
			tokens = append(tokens, Token{Text: tok.Text, Tag: tok.Tag})
		}
		analysis.Sentences = append(analysis.Sentences, Sentence{
			Text:   sent.Text,
			Tokens: tokens,
			Type:   ClassifySentence(sent.Text, tokens),
		})
	}
	return analysis, nil
}

// People returns the PERSON entities in the analysis.
func (a *Analysis) People() []string {
	var names []string
	for _, ent := range a.Entities {
		if ent.Label == "PERSON" {
			names = append(names, ent.Text)
		}
	}
	return names
}
