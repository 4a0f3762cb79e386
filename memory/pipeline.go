package memory

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mnemora/mnemora/geoip"
	"github.com/mnemora/mnemora/internal/metrics"
	"github.com/mnemora/mnemora/nlp"
	"github.com/mnemora/mnemora/store"
)

// Pipeline decomposes one utterance into the graph, stage by stage:
// sensory (text, sentences, words), semantic (dictionary senses) and
// perceptual (sentiment, mood, sentence type, origin). Every write is a
// merge, so ingesting the same text twice leaves the graph unchanged.
type Pipeline struct {
	store     *store.Store
	analyzer  *nlp.Analyzer
	sentiment *nlp.SentimentAnalyzer
	lexicon   nlp.Lexicon   // nil disables the semantic stage
	geo       *geoip.Client // nil disables geolocation
}

// NewPipeline creates a new instance of Pipeline.
func NewPipeline(s *store.Store, analyzer *nlp.Analyzer, sentiment *nlp.SentimentAnalyzer, lexicon nlp.Lexicon, geo *geoip.Client) *Pipeline {
	return &Pipeline{
		store:     s,
		analyzer:  analyzer,
		sentiment: sentiment,
		lexicon:   lexicon,
		geo:       geo,
	}
}

var (
	textLabels     = []store.Label{store.LabelText, store.LabelSensoryMemory}
	sentenceLabels = []store.Label{store.LabelSentence, store.LabelSensoryMemory}
	wordLabels     = []store.Label{store.LabelWord, store.LabelSensoryMemory, store.LabelPerceptualMemory}
)

// IngestText runs all stages over one text. ip may be empty. The returned
// ref identifies the Text node for interaction linking.
func (p *Pipeline) IngestText(ctx context.Context, text string, ip string, ts time.Time) (store.NodeRef, error) {
	analysis, err := p.analyzer.Analyze(text)
	if err != nil {
		return store.NodeRef{}, err
	}

	textRef := store.NodeRef{
		Labels: textLabels,
		Key: store.Props{
			"full_text":  analysis.Text,
			"timestamp":  ts,
			"ip_address": ip,
		},
	}
	if err := p.store.MergeNode(ctx, textLabels, textRef.Key, nil); err != nil {
		return store.NodeRef{}, err
	}

	if err := p.sensoryStage(ctx, textRef, analysis); err != nil {
		return store.NodeRef{}, err
	}
	if p.lexicon != nil {
		if err := p.semanticStage(ctx, analysis); err != nil {
			return store.NodeRef{}, err
		}
	}
	if err := p.perceptualStage(ctx, analysis, ip); err != nil {
		return store.NodeRef{}, err
	}

	metrics.IngestedTexts.Inc()
	return textRef, nil
}

func sentenceRef(text string) store.NodeRef {
	return store.NodeRef{Labels: sentenceLabels, Key: store.Props{"sentence_text": text}}
}

// wordRef carries the full perceptual identity: the same surface form used
// as a different part of speech is a different word node.
func wordRef(tok nlp.Token, entity string) store.NodeRef {
	return store.NodeRef{Labels: wordLabels, Key: store.Props{
		"word_text":    strings.ToLower(tok.Text),
		"pos_tag":      tok.Tag,
		"pos_tag_long": nlp.LongTag(tok.Tag),
		"named_entity": entity,
	}}
}

// entityMap indexes entity labels by lowercased surface word.
func entityMap(analysis *nlp.Analysis) map[string]string {
	out := map[string]string{}
	for _, ent := range analysis.Entities {
		for _, field := range strings.Fields(ent.Text) {
			out[strings.ToLower(field)] = ent.Label
		}
	}
	return out
}

func (p *Pipeline) sensoryStage(ctx context.Context, textRef store.NodeRef, analysis *nlp.Analysis) error {
	entities := entityMap(analysis)

	var prevSentence *store.NodeRef
	for _, sent := range analysis.Sentences {
		sRef := sentenceRef(sent.Text)
		if err := p.store.MergeNode(ctx, sentenceLabels, sRef.Key, nil); err != nil {
			return err
		}
		if err := p.store.MergeEdge(ctx, textRef, sRef, store.EdgeHasSentence, nil); err != nil {
			return err
		}
		if prevSentence != nil {
			if err := p.store.MergeEdge(ctx, *prevSentence, sRef, store.EdgeNextSentence, nil); err != nil {
				return err
			}
		}
		prevSentence = &sRef

		var prevWord *store.NodeRef
		for _, tok := range sent.Tokens {
			if !nlp.IsWordTag(tok.Tag) {
				continue
			}
			entity := entities[strings.ToLower(tok.Text)]
			if entity == "" {
				entity = "None"
			}
			wRef := wordRef(tok, entity)
			if err := p.store.MergeNode(ctx, wordLabels, wRef.Key, nil); err != nil {
				return err
			}
			if err := p.store.MergeEdge(ctx, sRef, wRef, store.EdgeHasWord, nil); err != nil {
				return err
			}
			if prevWord != nil {
				if err := p.store.MergeEdge(ctx, *prevWord, wRef, store.EdgeNextWord, nil); err != nil {
					return err
				}
			}
			prevWord = &wRef
		}
	}
	return nil
}

// semanticStage attaches dictionary knowledge to each word that has a
// WordNet-mappable part of speech. Words the lexicon does not know are
// left bare.
func (p *Pipeline) semanticStage(ctx context.Context, analysis *nlp.Analysis) error {
	entities := entityMap(analysis)
	seen := map[string]bool{}

	for _, sent := range analysis.Sentences {
		for _, tok := range sent.Tokens {
			if !nlp.IsWordTag(tok.Tag) || nlp.PennToWordNetPOS(tok.Tag) == "" {
				continue
			}
			word := strings.ToLower(tok.Text)
			if seen[word+"/"+tok.Tag] {
				continue
			}
			seen[word+"/"+tok.Tag] = true

			sense, ok := p.lexicon.Lookup(word, tok.Tag)
			if !ok {
				continue
			}
			entity := entities[word]
			if entity == "" {
				entity = "None"
			}
			wRef := wordRef(tok, entity)

			if err := p.attachSense(ctx, wRef, sense); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Pipeline) attachSense(ctx context.Context, wRef store.NodeRef, sense *nlp.Sense) error {
	semantic := func(label store.Label, key store.Props, edge store.EdgeType) error {
		labels := []store.Label{label, store.LabelSemanticMemory}
		if err := p.store.MergeNode(ctx, labels, key, nil); err != nil {
			return err
		}
		return p.store.MergeEdge(ctx, wRef,
			store.NodeRef{Labels: labels, Key: key}, edge, nil)
	}

	if sense.Definition != "" {
		if err := semantic(store.LabelDescription,
			store.Props{"description": sense.Definition}, store.EdgeIsA); err != nil {
			return err
		}
	}
	for _, syn := range sense.Synonyms {
		if err := semantic(store.LabelSynonym,
			store.Props{"synonym": syn}, store.EdgeHasSynonym); err != nil {
			return err
		}
	}
	for _, ant := range sense.Antonyms {
		if err := semantic(store.LabelAntonym,
			store.Props{"antonym": ant}, store.EdgeHasAntonym); err != nil {
			return err
		}
	}
	if sense.Hypernym != "" {
		if err := semantic(store.LabelCategory,
			store.Props{"name": sense.Hypernym}, store.EdgeIsA); err != nil {
			return err
		}
	}
	if sense.Domain != "" {
		if err := semantic(store.LabelDomain,
			store.Props{"domain_name": sense.Domain}, store.EdgeBelongsToDomain); err != nil {
			return err
		}
	}
	return nil
}

// perceptualStage attaches sentiment, mood, sentence type and origin to
// each sentence. Geolocation is best effort: lookup failures degrade to
// Unknown, never abort the stage.
func (p *Pipeline) perceptualStage(ctx context.Context, analysis *nlp.Analysis, ip string) error {
	perceptual := []store.Label{store.LabelPerceptualMemory}

	var ipRef store.NodeRef
	if ip != "" {
		ipRef = store.NodeRef{
			Labels: append([]store.Label{store.LabelIPAddress}, perceptual...),
			Key:    store.Props{"ip": ip},
		}
		if err := p.store.MergeNode(ctx, ipRef.Labels, ipRef.Key, nil); err != nil {
			return err
		}

		city, country := "Unknown", "Unknown"
		if p.geo != nil {
			if loc, err := p.geo.Locate(ctx, ip); err != nil {
				slog.Warn("geolocation failed", slog.String("ip", ip), slog.String("error", err.Error()))
			} else {
				city, country = loc.City, loc.Country
			}
		}
		locKey := store.Props{"city": city, "country": country}
		locLabels := append([]store.Label{store.LabelLocation}, perceptual...)
		if err := p.store.MergeNode(ctx, locLabels, locKey, nil); err != nil {
			return err
		}
		if err := p.store.MergeEdge(ctx, ipRef,
			store.NodeRef{Labels: locLabels, Key: locKey}, store.EdgeGeoLocatedAt, nil); err != nil {
			return err
		}
	}

	for _, sent := range analysis.Sentences {
		sRef := sentenceRef(sent.Text)
		score := p.sentiment.Score(sent.Text)

		sentimentLabels := append([]store.Label{store.LabelSentiment}, perceptual...)
		sentimentKey := store.Props{
			"positive": score.Positive,
			"negative": score.Negative,
			"neutral":  score.Neutral,
			"compound": score.Compound,
		}
		if err := p.store.MergeNode(ctx, sentimentLabels, sentimentKey, nil); err != nil {
			return err
		}
		if err := p.store.MergeEdge(ctx, sRef,
			store.NodeRef{Labels: sentimentLabels, Key: sentimentKey}, store.EdgeHasSentiment, nil); err != nil {
			return err
		}

		moodLabels := append([]store.Label{store.LabelMood}, perceptual...)
		moodKey := store.Props{"mood": score.Mood()}
		if err := p.store.MergeNode(ctx, moodLabels, moodKey, nil); err != nil {
			return err
		}
		if err := p.store.MergeEdge(ctx, sRef,
			store.NodeRef{Labels: moodLabels, Key: moodKey}, store.EdgeHasMood, nil); err != nil {
			return err
		}

		typeLabels := append([]store.Label{store.LabelSentenceType}, perceptual...)
		typeKey := store.Props{"type": sent.Type}
		if err := p.store.MergeNode(ctx, typeLabels, typeKey, nil); err != nil {
			return err
		}
		if err := p.store.MergeEdge(ctx, sRef,
			store.NodeRef{Labels: typeLabels, Key: typeKey}, store.EdgeHasType, nil); err != nil {
			return err
		}

		if ip != "" {
			if err := p.store.MergeEdge(ctx, sRef, ipRef, store.EdgeOriginatedFrom, nil); err != nil {
				return err
			}
		}
	}
	return nil
}
