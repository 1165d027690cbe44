package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantline/greenwash-cli/internal/analysis"
	"github.com/verdantline/greenwash-cli/internal/config"
	"github.com/verdantline/greenwash-cli/internal/discovery"
	"github.com/verdantline/greenwash-cli/internal/embed"
	"github.com/verdantline/greenwash-cli/internal/ingest"
	"github.com/verdantline/greenwash-cli/internal/model"
	"github.com/verdantline/greenwash-cli/internal/narrative"
	"github.com/verdantline/greenwash-cli/internal/retrieval"
	"github.com/verdantline/greenwash-cli/internal/store"
	"github.com/verdantline/greenwash-cli/pkg/openai"
)

// newTestEnv builds an appEnv against a throwaway SQLite database with the
// local embedder, no external API clients, and discovery disabled.
func newTestEnv(t *testing.T) *appEnv {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	embedder := embed.New("local", nil)
	gateway := ingest.NewGateway(st, embedder)
	pipeline := discovery.NewPipeline(config.DiscoveryConfig{Enabled: false}, nil, nil, gateway)
	generator := narrative.NewGenerator(nil, "")
	analyzer := analysis.NewAnalyzer(retrieval.NewEngine(st, embedder), generator)

	return &appEnv{
		Store:     st,
		Embedder:  embedder,
		Gateway:   gateway,
		Pipeline:  pipeline,
		Analyzer:  analyzer,
		Generator: generator,
	}
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	router := newRouter(newTestEnv(t), false)

	rec := doRequest(t, router, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_AnalyzeNoDocuments(t *testing.T) {
	router := newRouter(newTestEnv(t), false)

	rec := doRequest(t, router, http.MethodGet, "/analyze/Acme%20Corp", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "No ESG documents found for 'Acme Corp'")
}

func TestServer_AnalyzeStoredDocuments(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env, false)

	ctx := context.Background()
	for _, content := range []string{
		"Acme Corp committed to net zero operational emissions by 2035 across all facilities.",
		"Acme Corp reduced scope 1 emissions by 12 percent against the 2020 baseline.",
	} {
		_, err := env.Gateway.Ingest(ctx, &model.StoredDocument{
			Company: "Acme Corp",
			Sector:  "Energy",
			DocType: model.DocTypeESGReport,
			Content: content,
		})
		require.NoError(t, err)
	}

	rec := doRequest(t, router, http.MethodGet, "/analyze/Acme%20Corp", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var result model.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "Acme Corp", result.Company)
	assert.Equal(t, "Energy", result.Sector)
	assert.NotEmpty(t, result.Narrative)
}

func TestServer_AnalyzeDemoMode(t *testing.T) {
	router := newRouter(newTestEnv(t), true)

	rec := doRequest(t, router, http.MethodGet, "/analyze/shell", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var result model.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.InDelta(t, 88.4, result.RiskScore, 0.001)
	assert.Equal(t, "Energy", result.Sector)
}

func TestServer_DiscoverValidation(t *testing.T) {
	router := newRouter(newTestEnv(t), false)

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "missing company", body: `{"sector":"Energy"}`, want: http.StatusBadRequest},
		{name: "invalid json", body: `{nope`, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/discover", tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestServer_DiscoverDisabled(t *testing.T) {
	router := newRouter(newTestEnv(t), false)

	rec := doRequest(t, router, http.MethodPost, "/discover", `{"company":"Acme Corp"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var report model.DiscoveryReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, model.DiscoveryStatusDisabled, report.Status)
}

func TestServer_DiscoverDemoMode(t *testing.T) {
	router := newRouter(newTestEnv(t), true)

	rec := doRequest(t, router, http.MethodPost, "/discover", `{"company":"ikea","max_results":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var report model.DiscoveryReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, model.DiscoveryStatusOK, report.Status)
	assert.Len(t, report.Sources, 2)
}

func TestServer_UploadDocument(t *testing.T) {
	router := newRouter(newTestEnv(t), false)

	body := `{"company":"Acme Corp","sector":"Energy","doc_type":"ESGReport","content":"Full decarbonization roadmap with interim 2030 targets.","title":"Acme ESG Report"}`

	rec := doRequest(t, router, http.MethodPost, "/documents", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Inserted bool   `json:"inserted"`
		ID       string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.Inserted)
	assert.NotEmpty(t, created.ID)

	// Same content again is a dedupe, not a new row.
	rec = doRequest(t, router, http.MethodPost, "/documents", body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.False(t, created.Inserted)
}

func TestServer_UploadDocumentValidation(t *testing.T) {
	router := newRouter(newTestEnv(t), false)

	rec := doRequest(t, router, http.MethodPost, "/documents", `{"company":"Acme Corp"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "company and content are required")
}

type fakeSearchClient struct {
	resp *openai.WebSearchResponse
}

func (f *fakeSearchClient) Embed(context.Context, string) ([]float64, error) {
	return []float64{0.1}, nil
}

func (f *fakeSearchClient) WebSearch(context.Context, string) (*openai.WebSearchResponse, error) {
	return f.resp, nil
}

func ingestTestDocument(t *testing.T, env *appEnv, company, sector, content string) {
	t.Helper()
	_, err := env.Gateway.Ingest(context.Background(), &model.StoredDocument{
		Company: company,
		Sector:  sector,
		DocType: model.DocTypeESGReport,
		Content: content,
	})
	require.NoError(t, err)
}

func TestServer_AnalyzeDemoModePrefersStoredDocuments(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env, true)

	ingestTestDocument(t, env, "patagonia", "Apparel",
		"Patagonia reports full supply chain emissions for the current fiscal year.")

	rec := doRequest(t, router, http.MethodGet, "/analyze/patagonia", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var result model.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	// The canned profile scores 2.1; a live run over one stored document
	// with an empty example corpus scores 0.
	assert.NotEqual(t, 2.1, result.RiskScore)
	assert.Zero(t, result.RiskScore)
	assert.Equal(t, "Apparel", result.Sector)
}

func TestServer_DiscoverDemoModePrefersLivePipeline(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env, true)

	ingestTestDocument(t, env, "ikea", "Retail",
		"IKEA discloses renewable energy sourcing across retail operations.")

	rec := doRequest(t, router, http.MethodPost, "/discover", `{"company":"ikea"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var report model.DiscoveryReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, model.DiscoveryStatusDisabled, report.Status)
	assert.Empty(t, report.Sources)
}

func TestServer_DiscoverMaxResultsCapsLiveRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, "<html><body><p>Source %s. %s</p></body></html>",
			r.URL.Path, strings.Repeat("Sustainability disclosure content. ", 20))
	}))
	defer srv.Close()

	env := newTestEnv(t)
	search := &fakeSearchClient{resp: &openai.WebSearchResponse{
		OutputText: fmt.Sprintf(`[
			{"url":"%s/a","title":"A","relevance":0.9},
			{"url":"%s/b","title":"B","relevance":0.8}
		]`, srv.URL, srv.URL),
		Raw: []byte(`{}`),
	}}
	env.Pipeline = discovery.NewPipeline(config.DiscoveryConfig{
		Enabled:           true,
		TimeBudgetSecs:    35,
		SourceTimeoutSecs: 8,
		SearchTimeoutSecs: 12,
		SearchMaxAttempts: 1,
		MaxResults:        8,
	}, search, discovery.NewFetcher(discovery.FetchOptions{PerHostRate: 100}), env.Gateway)
	router := newRouter(env, false)

	rec := doRequest(t, router, http.MethodPost, "/discover", `{"company":"Acme Corp","max_results":1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var report model.DiscoveryReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Discovered)
	require.Len(t, report.Sources, 1)
	assert.Equal(t, "A", report.Sources[0].Title)
}
