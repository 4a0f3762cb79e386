package nlp

// tagDescriptions spells out the Penn Treebank tag set. The perceptual
// stage stores these as Category nodes so the graph stays readable without
// a tag table at hand.
var tagDescriptions = map[string]string{
	"CC":   "coordinating conjunction",
	"CD":   "cardinal number",
	"DT":   "determiner",
	"EX":   "existential there",
	"FW":   "foreign word",
	"IN":   "preposition or subordinating conjunction",
	"JJ":   "adjective",
	"JJR":  "adjective, comparative",
	"JJS":  "adjective, superlative",
	"LS":   "list item marker",
	"MD":   "modal",
	"NN":   "noun, singular or mass",
	"NNS":  "noun, plural",
	"NNP":  "proper noun, singular",
	"NNPS": "proper noun, plural",
	"PDT":  "predeterminer",
	"POS":  "possessive ending",
	"PRP":  "personal pronoun",
	"PRP$": "possessive pronoun",
	"RB":   "adverb",
	"RBR":  "adverb, comparative",
	"RBS":  "adverb, superlative",
	"RP":   "particle",
	"SYM":  "symbol",
	"TO":   "to",
	"UH":   "interjection",
	"VB":   "verb, base form",
	"VBD":  "verb, past tense",
	"VBG":  "verb, gerund or present participle",
	"VBN":  "verb, past participle",
	"VBP":  "verb, non-third person singular present",
	"VBZ":  "verb, third person singular present",
	"WDT":  "wh-determiner",
	"WP":   "wh-pronoun",
	"WP$":  "possessive wh-pronoun",
	"WRB":  "wh-adverb",
}

// LongTag expands a Penn Treebank tag to its description. Unknown tags
// come back unchanged so punctuation still produces a usable category.
func LongTag(tag string) string {
	if desc, ok := tagDescriptions[tag]; ok {
		return desc
	}
	return tag
}
