package main

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/verdantline/greenwash-cli/internal/model"
)

var seedCmd = &cobra.Command{
	Use:   "seed <corpus.yaml>",
	Short: "Load greenwashing case examples into the reference corpus",
	Long:  "Reads a YAML list of case descriptions, embeds each one, and bulk-inserts them into the greenwash example corpus used for similarity scoring.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}

		var cases []string
		if err := yaml.Unmarshal(data, &cases); err != nil {
			return eris.Wrapf(err, "parse %s", args[0])
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		examples := make([]model.GreenwashExample, 0, len(cases))
		for _, content := range cases {
			content = strings.TrimSpace(content)
			if content == "" {
				continue
			}
			emb, err := env.Embedder.Embed(ctx, content)
			if err != nil {
				return eris.Wrap(err, "embed example")
			}
			examples = append(examples, model.GreenwashExample{Content: content, Embedding: emb})
		}
		if len(examples) == 0 {
			return eris.Errorf("%s contains no usable examples", args[0])
		}

		n, err := env.Store.InsertExamples(ctx, examples)
		if err != nil {
			return err
		}

		total, err := env.Store.CountExamples(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("corpus seeded",
			zap.Int64("inserted", n),
			zap.Int("total", total))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
