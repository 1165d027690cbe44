package main

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/verdantline/greenwash-cli/internal/analysis"
	"github.com/verdantline/greenwash-cli/internal/config"
	"github.com/verdantline/greenwash-cli/internal/discovery"
	"github.com/verdantline/greenwash-cli/internal/embed"
	"github.com/verdantline/greenwash-cli/internal/ingest"
	"github.com/verdantline/greenwash-cli/internal/narrative"
	"github.com/verdantline/greenwash-cli/internal/retrieval"
	"github.com/verdantline/greenwash-cli/internal/store"
	"github.com/verdantline/greenwash-cli/pkg/anthropic"
	"github.com/verdantline/greenwash-cli/pkg/openai"
)

// appEnv wires the store, clients and pipelines for a command invocation.
type appEnv struct {
	Store     store.Store
	Embedder  embed.Embedder
	Gateway   *ingest.Gateway
	Pipeline  *discovery.Pipeline
	Analyzer  *analysis.Analyzer
	Generator *narrative.Generator
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres", "":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	searchClient := openai.NewClient(cfg.OpenAI.Key,
		openai.WithBaseURL(cfg.OpenAI.BaseURL),
		openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
		openai.WithSearchModel(cfg.OpenAI.SearchModel),
	)
	embedder := embed.New(cfg.Embed.Provider, searchClient)
	gateway := ingest.NewGateway(st, embedder)

	fetcher := discovery.NewFetcher(discovery.FetchOptions{
		PerHostRate: rate.Limit(cfg.Discovery.FetchRatePerSecond),
	})
	pipeline := discovery.NewPipeline(cfg.Discovery, searchClient, fetcher, gateway)

	var anthropicClient anthropic.Client
	if cfg.Anthropic.Key != "" {
		anthropicClient = anthropic.NewClient(cfg.Anthropic.Key)
	}
	generator := narrative.NewGenerator(anthropicClient, cfg.Anthropic.Model)
	engine := retrieval.NewEngine(st, embedder)
	analyzer := analysis.NewAnalyzer(engine, generator)

	return &appEnv{
		Store:     st,
		Embedder:  embedder,
		Gateway:   gateway,
		Pipeline:  pipeline,
		Analyzer:  analyzer,
		Generator: generator,
	}, nil
}

func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}
