package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantline/greenwash-cli/internal/config"
	"github.com/verdantline/greenwash-cli/internal/ingest"
	"github.com/verdantline/greenwash-cli/internal/model"
	"github.com/verdantline/greenwash-cli/pkg/openai"
)

type fakeSearch struct {
	resp *openai.WebSearchResponse
	err  error
}

func (f *fakeSearch) Embed(context.Context, string) ([]float64, error) {
	return []float64{0.1}, nil
}

func (f *fakeSearch) WebSearch(context.Context, string) (*openai.WebSearchResponse, error) {
	return f.resp, f.err
}

type fakeStore struct {
	hashes   map[string]bool
	inserted []*model.StoredDocument
}

func (f *fakeStore) InsertDocument(_ context.Context, doc *model.StoredDocument) error {
	f.inserted = append(f.inserted, doc)
	f.hashes[doc.ContentHash] = true
	return nil
}

func (f *fakeStore) HasContentHash(_ context.Context, hash string) (bool, error) {
	return f.hashes[hash], nil
}

func (f *fakeStore) OwnDocuments(context.Context, string, int) ([]model.StoredDocument, error) {
	return nil, nil
}

func (f *fakeStore) PeerDocuments(context.Context, string, string, []float64, int) ([]model.PeerCitation, error) {
	return nil, nil
}

func (f *fakeStore) InsertExamples(context.Context, []model.GreenwashExample) (int64, error) {
	return 0, nil
}

func (f *fakeStore) NearestExamples(context.Context, []float64, int) ([]model.Citation, error) {
	return nil, nil
}

func (f *fakeStore) CountExamples(context.Context) (int, error) { return 0, nil }
func (f *fakeStore) Migrate(context.Context) error              { return nil }
func (f *fakeStore) Ping(context.Context) error                 { return nil }
func (f *fakeStore) Close() error                               { return nil }

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(context.Context, string) ([]float64, error) {
	return []float64{0.1, 0.2}, nil
}

func testConfig() config.DiscoveryConfig {
	return config.DiscoveryConfig{
		Enabled:           true,
		TimeBudgetSecs:    35,
		SourceTimeoutSecs: 8,
		SearchTimeoutSecs: 12,
		SearchMaxAttempts: 1,
		MaxResults:        8,
	}
}

func newTestPipeline(t *testing.T, search openai.Client) (*Pipeline, *fakeStore) {
	t.Helper()
	st := &fakeStore{hashes: map[string]bool{}}
	gateway := ingest.NewGateway(st, fakeEmbedder{})
	fetcher := NewFetcher(FetchOptions{PerHostRate: 100})
	return NewPipeline(testConfig(), search, fetcher, gateway), st
}

func longPage(marker string) string {
	return fmt.Sprintf("<html><body><p>%s %s</p></body></html>",
		marker, strings.Repeat("Sustainability disclosure content. ", 20))
}

func TestFetcher_FetchText_HTML(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><script>nope()</script><p>Net zero by 2040.</p></body></html>")
	}))
	defer srv.Close()

	f := NewFetcher(FetchOptions{PerHostRate: 100})
	text, err := f.FetchText(context.Background(), srv.URL, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Net zero by 2040.", text)
	assert.Contains(t, gotUA, "greenwash-cli")
}

func TestFetcher_FetchText_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(FetchOptions{PerHostRate: 100})
	_, err := f.FetchText(context.Background(), srv.URL, 5*time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 404")
}

func TestPipeline_Run_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	st := &fakeStore{hashes: map[string]bool{}}
	p := NewPipeline(cfg, &fakeSearch{}, NewFetcher(FetchOptions{}), ingest.NewGateway(st, fakeEmbedder{}))

	report := p.Run(context.Background(), "Acme Corp", "Energy", 0)
	assert.Equal(t, model.DiscoveryStatusDisabled, report.Status)
	assert.Zero(t, report.Discovered)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "disabled")
}

func TestPipeline_Run_IngestsDiscoveredSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, longPage("Acme promises net zero."))
	}))
	defer srv.Close()

	search := &fakeSearch{resp: &openai.WebSearchResponse{
		OutputText: fmt.Sprintf(`[{"title":"Acme ESG Report","url":"%s/report","snippet":"Annual ESG disclosure","publisher":"Acme","doc_type":"ESGReport","source_type":"company_site","relevance":0.9}]`, srv.URL),
	}}
	p, st := newTestPipeline(t, search)

	report := p.Run(context.Background(), "Acme Corp", "Energy", 0)
	assert.Equal(t, model.DiscoveryStatusOK, report.Status)
	assert.Equal(t, 1, report.Discovered)
	assert.Equal(t, 1, report.Ingested)
	assert.Empty(t, report.Errors)
	require.Len(t, report.Sources, 1)
	assert.True(t, report.Sources[0].Inserted)
	assert.Equal(t, model.DocTypeESGReport, report.Sources[0].DocType)
	assert.Equal(t, 0.9, report.Sources[0].Relevance)
	require.Len(t, report.Queries, 5)

	require.Len(t, st.inserted, 1)
	doc := st.inserted[0]
	assert.Equal(t, "Acme Corp", doc.Company)
	assert.Equal(t, "Energy", doc.Sector)
	assert.Equal(t, model.RetrievalLiveDiscovery, doc.RetrievalMethod)
	assert.True(t, strings.HasPrefix(doc.Content, "Acme ESG Report\n\nAnnual ESG disclosure\n\n"))
}

func TestPipeline_Run_DuplicateContentNotReinserted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, longPage("Same page both runs."))
	}))
	defer srv.Close()

	search := &fakeSearch{resp: &openai.WebSearchResponse{
		OutputText: fmt.Sprintf(`[{"title":"Report","url":"%s/report","relevance":0.9}]`, srv.URL),
	}}
	p, st := newTestPipeline(t, search)

	first := p.Run(context.Background(), "Acme Corp", "Energy", 0)
	assert.Equal(t, 1, first.Ingested)

	second := p.Run(context.Background(), "Acme Corp", "Energy", 0)
	assert.Equal(t, 0, second.Ingested)
	require.Len(t, second.Sources, 1)
	assert.False(t, second.Sources[0].Inserted)
	assert.Len(t, st.inserted, 1)
}

func TestPipeline_Run_SearchFailureDegrades(t *testing.T) {
	search := &fakeSearch{err: &openai.APIError{StatusCode: 401, Body: "bad key"}}
	p, st := newTestPipeline(t, search)

	report := p.Run(context.Background(), "Acme Corp", "Energy", 0)
	assert.Equal(t, model.DiscoveryStatusOK, report.Status)
	assert.Zero(t, report.Discovered)
	assert.Zero(t, report.Ingested)
	require.NotEmpty(t, report.Errors)
	assert.Contains(t, report.Errors[0], "web search unavailable")
	assert.Empty(t, st.inserted)
}

func TestPipeline_Run_ThinSourceSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><p>too short</p></body></html>")
	}))
	defer srv.Close()

	search := &fakeSearch{resp: &openai.WebSearchResponse{
		OutputText: fmt.Sprintf(`[{"title":"Stub","url":"%s/stub","relevance":0.9}]`, srv.URL),
	}}
	p, st := newTestPipeline(t, search)

	report := p.Run(context.Background(), "Acme Corp", "Energy", 0)
	assert.Equal(t, 1, report.Discovered)
	assert.Zero(t, report.Ingested)
	assert.Empty(t, report.Sources)
	assert.Empty(t, st.inserted)
}

func TestPipeline_Run_ProseFallbackSynthesizesCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, longPage("Fallback source body."))
	}))
	defer srv.Close()

	search := &fakeSearch{resp: &openai.WebSearchResponse{
		OutputText: fmt.Sprintf("I found one good source: %s/page.", srv.URL),
		Raw:        []byte(`{}`),
	}}
	p, _ := newTestPipeline(t, search)

	report := p.Run(context.Background(), "Acme Corp", "Energy", 0)
	assert.Equal(t, 1, report.Discovered)
	assert.Equal(t, 1, report.Ingested)
	require.Len(t, report.Sources, 1)
	assert.Equal(t, "Acme Corp source 1", report.Sources[0].Title)
	assert.Equal(t, 0.8, report.Sources[0].Relevance)
}

type countingSearch struct {
	fakeSearch
	calls int
	delay time.Duration
}

func (c *countingSearch) WebSearch(ctx context.Context, prompt string) (*openai.WebSearchResponse, error) {
	c.calls++
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return c.fakeSearch.WebSearch(ctx, prompt)
}

func TestPipeline_Run_BudgetTooLowSkipsSearch(t *testing.T) {
	search := &countingSearch{}
	st := &fakeStore{hashes: map[string]bool{}}
	gateway := ingest.NewGateway(st, fakeEmbedder{})

	cfg := testConfig()
	cfg.TimeBudgetSecs = 2
	p := NewPipeline(cfg, search, NewFetcher(FetchOptions{PerHostRate: 100}), gateway)

	report := p.Run(context.Background(), "Acme Corp", "Energy", 0)

	assert.Equal(t, model.DiscoveryStatusOK, report.Status)
	assert.Zero(t, report.Discovered)
	assert.Zero(t, search.calls)
	require.NotEmpty(t, report.Errors)
	assert.Contains(t, report.Errors[0], "time budget too low")
}

func TestPipeline_Run_BudgetReachedStopsFetchLoop(t *testing.T) {
	if testing.Short() {
		t.Skip("sleeps past the discovery budget")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, longPage("Slow source body."))
	}))
	defer srv.Close()

	search := &countingSearch{
		delay: 3100 * time.Millisecond,
		fakeSearch: fakeSearch{resp: &openai.WebSearchResponse{
			OutputText: fmt.Sprintf(`[{"url":"%s/a","title":"A","relevance":0.9}]`, srv.URL),
			Raw:        []byte(`{}`),
		}},
	}
	st := &fakeStore{hashes: map[string]bool{}}
	gateway := ingest.NewGateway(st, fakeEmbedder{})

	cfg := testConfig()
	cfg.TimeBudgetSecs = 3
	p := NewPipeline(cfg, search, NewFetcher(FetchOptions{PerHostRate: 100}), gateway)

	report := p.Run(context.Background(), "Acme Corp", "Energy", 0)

	assert.Equal(t, 1, report.Discovered)
	assert.Zero(t, report.Ingested)
	assert.Empty(t, report.Sources)
	require.NotEmpty(t, report.Errors)
	assert.Contains(t, report.Errors[len(report.Errors)-1], "time budget reached")
}

func TestPipeline_Run_MaxResultsOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, longPage("Capped source body "+r.URL.Path))
	}))
	defer srv.Close()

	search := &fakeSearch{resp: &openai.WebSearchResponse{
		OutputText: fmt.Sprintf(`[
			{"url":"%s/a","title":"A","relevance":0.9},
			{"url":"%s/b","title":"B","relevance":0.8},
			{"url":"%s/c","title":"C","relevance":0.7}
		]`, srv.URL, srv.URL, srv.URL),
		Raw: []byte(`{}`),
	}}
	p, st := newTestPipeline(t, search)

	report := p.Run(context.Background(), "Acme Corp", "Energy", 1)

	assert.Equal(t, 1, report.Discovered)
	assert.Equal(t, 1, report.Ingested)
	require.Len(t, report.Sources, 1)
	assert.Equal(t, "A", report.Sources[0].Title)
	assert.Len(t, st.inserted, 1)
}
