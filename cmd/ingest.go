package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verdantline/greenwash-cli/internal/extract"
	"github.com/verdantline/greenwash-cli/internal/model"
)

var (
	ingestCompany string
	ingestSector  string
	ingestDocType string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Ingest a local document (text, HTML or PDF) for a company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]

		data, err := os.ReadFile(path)
		if err != nil {
			return eris.Wrapf(err, "read %s", path)
		}

		text, err := extract.FromBytes(data, path)
		if err != nil {
			return eris.Wrapf(err, "extract %s", path)
		}
		if text == "" {
			return eris.Errorf("%s produced no text", path)
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		doc := &model.StoredDocument{
			Company:         ingestCompany,
			Sector:          ingestSector,
			DocType:         model.NormalizeDocType(ingestDocType),
			Content:         text,
			SourceTitle:     path,
			RetrievalMethod: model.RetrievalManualUpload,
		}
		inserted, err := env.Gateway.Ingest(ctx, doc)
		if err != nil {
			return err
		}

		if inserted {
			zap.L().Info("document ingested",
				zap.String("company", ingestCompany),
				zap.String("id", doc.ID),
				zap.Int("chars", len(text)))
		} else {
			zap.L().Info("document already present, skipped",
				zap.String("company", ingestCompany))
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCompany, "company", "", "company name (required)")
	ingestCmd.Flags().StringVar(&ingestSector, "sector", "Unknown", "company sector")
	ingestCmd.Flags().StringVar(&ingestDocType, "doc-type", "Other", "document type")
	_ = ingestCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(ingestCmd)
}
