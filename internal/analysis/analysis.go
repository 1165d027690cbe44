// Package analysis orchestrates a full risk assessment: gather the
// company's claims, score them against the greenwash corpus, rank sector
// peers, and narrate the result.
package analysis

import (
	"context"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/verdantline/greenwash-cli/internal/model"
	"github.com/verdantline/greenwash-cli/internal/narrative"
	"github.com/verdantline/greenwash-cli/internal/retrieval"
	"github.com/verdantline/greenwash-cli/internal/risk"
)

// ErrNoDocuments means the company has nothing stored to analyze.
// Callers should suggest running discovery or ingesting documents first.
var ErrNoDocuments = eris.New("no stored documents for company")

const (
	// ownDocsLimit bounds how many of the company's newest documents feed
	// the combined claims text.
	ownDocsLimit = 8
	// matchK and peerK bound the two similarity searches.
	matchK = 5
	peerK  = 5
	// citationChars caps evidence excerpts in the result payload.
	citationChars = 300
)

// Analyzer runs assessments against the retrieval engine and narrator.
type Analyzer struct {
	retrieval *retrieval.Engine
	generator *narrative.Generator
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(engine *retrieval.Engine, generator *narrative.Generator) *Analyzer {
	return &Analyzer{retrieval: engine, generator: generator}
}

// Analyze assesses a company from its stored documents. The company's
// sector is taken from its newest document.
func (a *Analyzer) Analyze(ctx context.Context, company string) (*model.AnalysisResult, error) {
	docs, err := a.retrieval.OwnDocuments(ctx, company, ownDocsLimit)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: load documents for %s", company)
	}
	if len(docs) == 0 {
		return nil, eris.Wrapf(ErrNoDocuments, "analysis: %s", company)
	}

	contents := make([]string, len(docs))
	for i, doc := range docs {
		contents[i] = doc.Content
	}
	combined := strings.Join(contents, " ")

	matches, err := a.retrieval.GreenwashMatches(ctx, combined, matchK)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: greenwash matches for %s", company)
	}
	score := risk.Score(matches)

	sector := docs[0].Sector
	peers, err := a.retrieval.PeerDisclosures(ctx, company, sector, combined, peerK)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: peer disclosures for %s", company)
	}

	text, err := a.generator.Generate(ctx, narrative.Evidence{
		Company:          company,
		Score:            score,
		Claims:           docs,
		GreenwashMatches: matches,
		PeerComparisons:  peers,
	})
	if err != nil {
		zap.L().Warn("narrative degraded",
			zap.String("company", company),
			zap.Error(err))
	}

	return &model.AnalysisResult{
		Company:          company,
		Sector:           sector,
		RiskScore:        score,
		GreenwashMatches: citationExcerpts(matches),
		PeerComparisons:  peerExcerpts(peers),
		Narrative:        text,
	}, nil
}

func citationExcerpts(matches []model.Citation) []model.Citation {
	out := make([]model.Citation, len(matches))
	for i, m := range matches {
		out[i] = model.Citation{
			Content:    excerpt(m.Content),
			Similarity: round3(m.Similarity),
		}
	}
	return out
}

func peerExcerpts(peers []model.PeerCitation) []model.PeerCitation {
	out := make([]model.PeerCitation, len(peers))
	for i, p := range peers {
		out[i] = model.PeerCitation{
			Content:    excerpt(p.Content),
			Company:    p.Company,
			Similarity: round3(p.Similarity),
		}
	}
	return out
}

func excerpt(s string) string {
	runes := []rune(s)
	if len(runes) <= citationChars {
		return s
	}
	return string(runes[:citationChars])
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
