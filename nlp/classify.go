package nlp

import "strings"

// Sentence classifications.
const (
	TypeDeclarative   = "declarative"
	TypeInterrogative = "interrogative"
	TypeImperative    = "imperative"
	TypeExclamatory   = "exclamatory"
)

// whWords open direct questions.
var whWords = map[string]bool{
	"what": true, "who": true, "whom": true, "whose": true,
	"which": true, "when": true, "where": true, "why": true, "how": true,
}

// auxVerbs open yes/no questions.
var auxVerbs = map[string]bool{
	"am": true, "is": true, "are": true, "was": true, "were": true,
	"do": true, "does": true, "did": true,
	"have": true, "has": true, "had": true,
	"can": true, "could": true, "will": true, "would": true,
	"shall": true, "should": true, "may": true, "might": true, "must": true,
}

// ClassifySentence labels a sentence as interrogative, exclamatory,
// imperative or declarative. Tokens are passed in so callers control the
// tagging; punctuation wins over tags, tags break the remaining ties.
func ClassifySentence(text string, tokens []Token) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return TypeDeclarative
	}

	words := contentTokens(tokens)

	if strings.HasSuffix(trimmed, "?") {
		return TypeInterrogative
	}
	if len(words) > 0 {
		first := strings.ToLower(words[0].Text)
		if whWords[first] || auxVerbs[first] {
			return TypeInterrogative
		}
	}

	if strings.HasSuffix(trimmed, "!") {
		return TypeExclamatory
	}
	if len(words) > 0 && words[0].Tag == "UH" {
		return TypeExclamatory
	}

	// A sentence led by a base-form verb reads as a command only when
	// neither of the first two tokens is a pronoun or noun: "Open the
	// window." is imperative, "Trust me." is not.
	if len(words) > 0 && words[0].Tag == "VB" && !leadsWithSubject(words) {
		return TypeImperative
	}

	return TypeDeclarative
}

func leadsWithSubject(words []Token) bool {
	for i, tok := range words {
		if i == 2 {
			break
		}
		switch tok.Tag {
		case "PRP", "NN", "NNP":
			return true
		}
	}
	return false
}

func contentTokens(tokens []Token) []Token {
	out := make([]Token, 0, len(tokens))
	for _, tok := range tokens {
		if IsWordTag(tok.Tag) {
			out = append(out, tok)
		}
	}
	return out
}

// IsWordTag reports whether the tag marks a word rather than punctuation
// or a symbol.
func IsWordTag(tag string) bool {
	if tag == "" {
		return false
	}
	switch tag {
	case ".", ",", ":", ";", "''", "``", "-LRB-", "-RRB-", "$", "#", "SYM", "HYPH":
		return false
	}
	return true
}
