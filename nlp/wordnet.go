package nlp

import (
	"strings"

	"github.com/fluhus/gostuff/nlp/wordnet"
	"github.com/pkg/errors"
)

// Sense is what the semantic stage records about a word.
type Sense struct {
	Definition string
	Synonyms   []string
	Antonyms   []string
	Hypernym   string
	Domain     string
}

// Lexicon answers dictionary lookups. The semantic stage degrades
// gracefully when a word is missing, so Lookup reports presence instead of
// returning an error.
type Lexicon interface {
	Lookup(word, pennTag string) (*Sense, bool)
}

// PennToWordNetPOS maps a Penn Treebank tag to a WordNet part of speech,
// or "" when the tag has no dictionary entry class.
func PennToWordNetPOS(tag string) string {
	switch {
	case strings.HasPrefix(tag, "JJ"):
		return "a"
	case strings.HasPrefix(tag, "VB"):
		return "v"
	case strings.HasPrefix(tag, "NN"):
		return "n"
	case strings.HasPrefix(tag, "RB"):
		return "r"
	}
	return ""
}

// WordNetLexicon implements Lexicon over a parsed WordNet dictionary.
type WordNetLexicon struct {
	wn *wordnet.WordNet
}

// OpenWordNet parses the dictionary directory once and keeps it in memory.
func OpenWordNet(dir string) (*WordNetLexicon, error) {
	wn, err := wordnet.Parse(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse wordnet dictionary at %s", dir)
	}
	return &WordNetLexicon{wn: wn}, nil
}

// Lookup returns the first sense of the word for the tag's part of speech.
// Lemma IDs are listed in sense order, so the first one is the most common
// usage.
func (l *WordNetLexicon) Lookup(word, pennTag string) (*Sense, bool) {
	pos := PennToWordNetPOS(pennTag)
	if pos == "" {
		return nil, false
	}
	word = strings.ToLower(word)

	ids := l.wn.Lemma[pos+"."+word]
	if len(ids) == 0 && pos == "a" {
		// Satellite adjectives index separately.
		ids = l.wn.Lemma["s."+word]
	}
	if len(ids) == 0 {
		return nil, false
	}
	synset := l.wn.Synset[ids[0]]
	if synset == nil {
		return nil, false
	}

	sense := &Sense{
		Definition: gloss(synset),
		Domain:     "general",
	}
	for _, w := range synset.Word {
		if cleaned := cleanLemma(w); cleaned != word {
			sense.Synonyms = append(sense.Synonyms, cleaned)
		}
	}
	for _, ptr := range synset.Pointer {
		target := l.wn.Synset[ptr.Synset]
		if target == nil || len(target.Word) == 0 {
			continue
		}
		switch ptr.Symbol {
		case "!":
			sense.Antonyms = append(sense.Antonyms, cleanLemma(target.Word[0]))
		case "@":
			if sense.Hypernym == "" {
				sense.Hypernym = cleanLemma(target.Word[0])
			}
		case ";c":
			if sense.Domain == "general" {
				sense.Domain = cleanLemma(target.Word[0])
			}
		}
	}
	return sense, true
}

// Definitions lists the glosses of every sense of the word across all
// parts of speech, in sense order.
func (l *WordNetLexicon) Definitions(word string) []string {
	word = strings.ToLower(word)

	var out []string
	seen := map[string]bool{}
	for _, pos := range []string{"n", "v", "a", "s", "r"} {
		for _, id := range l.wn.Lemma[pos+"."+word] {
			synset := l.wn.Synset[id]
			if synset == nil {
				continue
			}
			g := gloss(synset)
			if g == "" || seen[g] {
				continue
			}
			seen[g] = true
			out = append(out, g)
		}
	}
	return out
}

// gloss trims usage examples off a synset gloss, keeping the definition.
func gloss(s *wordnet.Synset) string {
	if i := strings.Index(s.Gloss, ";"); i > 0 {
		return strings.TrimSpace(s.Gloss[:i])
	}
	return strings.TrimSpace(s.Gloss)
}

// cleanLemma turns stored lemma forms back into surface words.
func cleanLemma(w string) string {
	return strings.ReplaceAll(w, "_", " ")
}
