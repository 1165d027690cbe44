package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verdantline/greenwash-cli/internal/analysis"
	"github.com/verdantline/greenwash-cli/internal/demo"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <company>",
	Short: "Score a company's greenwashing risk from its stored documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		company := args[0]

		env, err := initEnv(ctx)
		if err != nil {
			if cfg.Server.DemoMode {
				if result, ok := demo.Analysis(company); ok {
					zap.L().Warn("store unavailable, serving demo profile",
						zap.String("company", company),
						zap.Error(err))
					return printJSON(result)
				}
			}
			return err
		}
		defer env.Close()

		result, err := env.Analyzer.Analyze(ctx, company)
		if err != nil {
			if eris.Is(err, analysis.ErrNoDocuments) {
				if cfg.Server.DemoMode {
					if result, ok := demo.Analysis(company); ok {
						return printJSON(result)
					}
				}
				return eris.Errorf("no documents stored for %q; run 'greenwash-cli discover %s' first", company, company)
			}
			return err
		}
		return printJSON(result)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
