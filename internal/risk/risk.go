// Package risk turns similarity evidence into a bounded score.
package risk

import (
	"math"

	"github.com/verdantline/greenwash-cli/internal/model"
)

// Score maps greenwash-example similarities onto a 0-100 risk score: the
// mean similarity scaled to percent, clamped, and rounded to two decimals.
// No matches means no evidence, which scores zero rather than unknown.
func Score(matches []model.Citation) float64 {
	if len(matches) == 0 {
		return 0
	}
	var sum float64
	for _, m := range matches {
		sum += m.Similarity
	}
	score := sum / float64(len(matches)) * 100
	score = math.Max(0, math.Min(100, score))
	return math.Round(score*100) / 100
}
