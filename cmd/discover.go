package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verdantline/greenwash-cli/internal/demo"
)

var (
	discoverSector     string
	discoverMaxResults int
)

var discoverCmd = &cobra.Command{
	Use:   "discover <company>",
	Short: "Find and ingest public ESG sources for a company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		company := args[0]

		env, err := initEnv(ctx)
		if err != nil {
			if cfg.Server.DemoMode {
				if report, ok := demo.Discovery(company, discoverMaxResults); ok {
					zap.L().Warn("store unavailable, serving demo report",
						zap.String("company", company),
						zap.Error(err))
					return printJSON(report)
				}
			}
			return err
		}
		defer env.Close()

		if cfg.Server.DemoMode && storeIsEmptyFor(ctx, env, company) {
			if report, ok := demo.Discovery(company, discoverMaxResults); ok {
				return printJSON(report)
			}
		}

		report := env.Pipeline.Run(ctx, company, discoverSector, discoverMaxResults)
		zap.L().Info("discovery finished",
			zap.String("company", company),
			zap.Int("discovered", report.Discovered),
			zap.Int("ingested", report.Ingested),
			zap.Duration("duration", report.Duration),
		)
		return printJSON(report)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	discoverCmd.Flags().StringVar(&discoverSector, "sector", "", "company sector (default Unknown)")
	discoverCmd.Flags().IntVar(&discoverMaxResults, "max-results", 0, "max sources to ingest (default from config)")
	rootCmd.AddCommand(discoverCmd)
}
