package discovery

import (
	"sort"

	"github.com/verdantline/greenwash-cli/internal/model"
)

// Dedupe drops candidates whose normalized URL was already seen, keeping
// the most relevant occurrence. Normalization strips the fragment and any
// trailing slash, so anchors and slash variants of the same page collapse
// into one candidate. The result is ordered by relevance, descending; the
// sort is stable so equal-relevance candidates keep their search order.
func Dedupe(candidates []model.SourceCandidate) []model.SourceCandidate {
	ranked := make([]model.SourceCandidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Relevance > ranked[j].Relevance })

	seen := make(map[string]struct{}, len(ranked))
	deduped := ranked[:0]
	for _, c := range ranked {
		norm := c.NormalizedURL()
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		deduped = append(deduped, c)
	}
	return deduped
}
