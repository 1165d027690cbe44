package demo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantline/greenwash-cli/internal/model"
)

func TestLookup_CaseInsensitive(t *testing.T) {
	for _, name := range []string{"shell", "Shell", "  SHELL  "} {
		p, ok := Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, 88.4, p.RiskScore)
		assert.Equal(t, "Energy", p.Sector)
	}
}

func TestLookup_Unknown(t *testing.T) {
	_, ok := Lookup("Ghost Co")
	assert.False(t, ok)
}

func TestAnalysis(t *testing.T) {
	result, ok := Analysis("Patagonia")
	require.True(t, ok)

	assert.Equal(t, "Patagonia", result.Company)
	assert.Equal(t, "Apparel", result.Sector)
	assert.Equal(t, 2.1, result.RiskScore)
	assert.Contains(t, result.Narrative, "Risk Summary")
	require.Len(t, result.GreenwashMatches, 2)
	assert.Equal(t, 0.006, result.GreenwashMatches[0].Similarity)
}

func TestDiscovery_CapsSources(t *testing.T) {
	report, ok := Discovery("ikea", 2)
	require.True(t, ok)

	assert.Equal(t, model.DiscoveryStatusOK, report.Status)
	assert.Equal(t, 2, report.Discovered)
	assert.Equal(t, 2, report.Ingested)
	require.Len(t, report.Sources, 2)
	assert.Equal(t, "IKEA House of Horrors", report.Sources[0].Title)
	assert.True(t, report.Sources[0].Inserted)
	assert.Empty(t, report.Errors)
}

func TestDiscovery_AllProfilesPresent(t *testing.T) {
	for _, name := range []string{"patagonia", "shell", "ikea", "walmart", "amazon"} {
		report, ok := Discovery(name, 0)
		require.True(t, ok, name)
		assert.NotEmpty(t, report.Sources, name)
	}
}
