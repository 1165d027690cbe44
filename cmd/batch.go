package main

import (
	"bufio"
	"os"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/verdantline/greenwash-cli/internal/model"
)

// batchEntry is one line of a batch file: a company name with an optional
// comma-separated sector.
type batchEntry struct {
	Company string
	Sector  string
}

func parseBatchFile(path string) ([]batchEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	var entries []batchEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		company, sector, _ := strings.Cut(line, ",")
		entries = append(entries, batchEntry{
			Company: strings.TrimSpace(company),
			Sector:  strings.TrimSpace(sector),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "scan %s", path)
	}
	if len(entries) == 0 {
		return nil, eris.Errorf("%s contains no companies", path)
	}
	return entries, nil
}

var batchCmd = &cobra.Command{
	Use:   "batch <companies.txt>",
	Short: "Run discovery for a list of companies concurrently",
	Long:  "Reads one company per line (optionally 'Company,Sector', '#' comments allowed) and runs discovery for each with bounded concurrency.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		entries, err := parseBatchFile(args[0])
		if err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		limit := cfg.Batch.MaxConcurrentCompanies
		if limit <= 0 {
			limit = 5
		}

		var mu sync.Mutex
		reports := make([]*model.DiscoveryReport, len(entries))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)
		for i, entry := range entries {
			g.Go(func() error {
				report := env.Pipeline.Run(gctx, entry.Company, entry.Sector, 0)
				zap.L().Info("batch discovery finished",
					zap.String("company", entry.Company),
					zap.Int("ingested", report.Ingested),
					zap.Int("errors", len(report.Errors)),
				)
				mu.Lock()
				reports[i] = report
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		return printJSON(reports)
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)
}
