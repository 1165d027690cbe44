// Package narrative renders the analyst-facing risk assessment. The write
// up comes from a language model when one is configured and degrades to a
// template built from the strongest evidence when it is not.
package narrative

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/verdantline/greenwash-cli/internal/model"
	"github.com/verdantline/greenwash-cli/pkg/anthropic"
)

const (
	// excerptChars caps per-item evidence excerpts in the prompt.
	excerptChars = 500

	defaultMaxTokens = 1024
)

// Generator produces risk narratives.
type Generator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewGenerator creates a Generator. A nil client means every narrative
// comes from the deterministic fallback.
func NewGenerator(client anthropic.Client, modelName string) *Generator {
	return &Generator{client: client, model: modelName, maxTokens: defaultMaxTokens}
}

// Evidence is everything the narrative draws on.
type Evidence struct {
	Company          string
	Score            float64
	Claims           []model.StoredDocument
	GreenwashMatches []model.Citation
	PeerComparisons  []model.PeerCitation
}

// BuildPrompt renders the evidence into the assessment instruction.
func BuildPrompt(ev Evidence) string {
	claims := make([]string, 0, len(ev.Claims))
	for _, doc := range ev.Claims {
		claims = append(claims, fmt.Sprintf("- [%s] %s", doc.DocType, excerpt(doc.Content)))
	}
	claimsText := strings.Join(claims, "\n")
	if claimsText == "" {
		claimsText = "No ESG claims found for this company."
	}

	matches := make([]string, 0, len(ev.GreenwashMatches))
	for _, m := range ev.GreenwashMatches {
		matches = append(matches, fmt.Sprintf("- (similarity %.2f) %s", m.Similarity, excerpt(m.Content)))
	}
	matchText := strings.Join(matches, "\n")
	if matchText == "" {
		matchText = "No matching greenwashing cases found."
	}

	peers := make([]string, 0, len(ev.PeerComparisons))
	for _, p := range ev.PeerComparisons {
		peers = append(peers, fmt.Sprintf("- [%s] (similarity %.2f) %s", p.Company, p.Similarity, excerpt(p.Content)))
	}
	peerText := strings.Join(peers, "\n")
	if peerText == "" {
		peerText = "No peer disclosures available for comparison."
	}

	return fmt.Sprintf(`You are a senior ESG analyst specializing in greenwashing detection.

Company under review: %s
Computed greenwashing risk score: %v/100

=== Company's Own ESG Claims ===
%s

=== Matched Known Greenwashing Cases ===
%s

=== Peer Sector Disclosures for Comparison ===
%s

Based on the above evidence, produce a concise greenwashing risk assessment for %s. Structure your response as:

1. **Risk Summary** - One-paragraph overall assessment.
2. **Key Concerns** - Bullet points highlighting specific claims that resemble known greenwashing patterns, with references to the matched cases.
3. **Peer Comparison** - How the company's disclosures compare to sector peers.
4. **Recommendation** - Actionable guidance for an investor.

Be specific, cite the evidence provided, and avoid speculation beyond what the data supports.`,
		ev.Company, ev.Score, claimsText, matchText, peerText, ev.Company)
}

// Generate returns the narrative for the evidence. Model failures fall
// back to the template so an analysis never fails on narration alone.
func (g *Generator) Generate(ctx context.Context, ev Evidence) (string, error) {
	if g.client == nil {
		return Fallback(ev), nil
	}

	temp := 0.3
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Messages:    []anthropic.Message{{Role: "user", Content: BuildPrompt(ev)}},
		Temperature: &temp,
	})
	if err != nil {
		zap.L().Warn("narrative generation failed, using fallback",
			zap.String("company", ev.Company),
			zap.Error(err))
		return Fallback(ev), nil
	}
	if strings.TrimSpace(resp.Text) == "" {
		return Fallback(ev), eris.New("narrative: model returned empty text")
	}
	return resp.Text, nil
}

// Fallback renders a deterministic assessment from the top-ranked
// evidence.
func Fallback(ev Evidence) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s scores %v/100 for greenwashing risk, based on %d stored disclosures compared against known greenwashing cases.",
		ev.Company, ev.Score, len(ev.Claims))

	if len(ev.GreenwashMatches) > 0 {
		top := ev.GreenwashMatches[0]
		fmt.Fprintf(&sb, " The closest known case (similarity %.2f) reads: %q.",
			top.Similarity, excerptN(top.Content, 200))
	} else {
		sb.WriteString(" No stored greenwashing case resembles the company's claims.")
	}

	if len(ev.PeerComparisons) > 0 {
		top := ev.PeerComparisons[0]
		fmt.Fprintf(&sb, " The nearest sector peer disclosure is from %s (similarity %.2f).",
			top.Company, top.Similarity)
	} else {
		sb.WriteString(" No peer disclosures were available for comparison.")
	}

	return sb.String()
}

func excerpt(s string) string {
	return excerptN(s, excerptChars)
}

func excerptN(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
