package discovery

import (
	"fmt"
	"strings"
)

// BuildQueries returns the fixed search framings for a company. The mix
// deliberately covers both the company's own disclosures and adversarial
// coverage of it.
func BuildQueries(company string) []string {
	return []string{
		fmt.Sprintf("%s sustainability report pdf", company),
		fmt.Sprintf("%s ESG report", company),
		fmt.Sprintf("%s climate report", company),
		fmt.Sprintf("%s environmental controversy news", company),
		fmt.Sprintf("%s emissions investigation", company),
	}
}

// SearchPrompt renders the web search instruction for a company and its
// query framings. The model is asked for structured JSON; ParseCandidates
// and the URL fallback handle whatever actually comes back.
func SearchPrompt(company string, queries []string, maxResults int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Find recent, high-quality sources for ESG and greenwashing analysis for company: %s.\n", company)
	sb.WriteString("Include official reports, reputable news, and third-party assessments.\n")
	sb.WriteString("Use these search intents:\n")
	for _, q := range queries {
		fmt.Fprintf(&sb, "- %s\n", q)
	}
	fmt.Fprintf(&sb, "\nReturn only valid JSON as an array of up to %d objects with keys:\n", maxResults)
	sb.WriteString("title, url, snippet, publisher, published_at, doc_type, source_type, relevance\n\n")
	sb.WriteString("doc_type must be one of: ESGReport, AnnualReport, SustainabilityReport, ClimateReport, NewsArticle, Other\n")
	sb.WriteString("source_type must be one of: company_site, news, regulatory, third_party\n")
	sb.WriteString("relevance must be a number from 0 to 1.\n")
	return sb.String()
}
