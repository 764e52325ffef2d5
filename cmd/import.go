package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importFile string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import productions from an xlsx or csv spreadsheet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		f, err := os.Open(importFile)
		if err != nil {
			return eris.Wrap(err, "open import file")
		}
		defer f.Close() //nolint:errcheck

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sum, err := newServices(st).Importer.ImportFile(ctx, filepath.Base(importFile), f)
		if err != nil {
			return err
		}

		zap.L().Info("import complete",
			zap.String("file", importFile),
			zap.String("batch_id", sum.BatchID.String()),
			zap.Int("inserted", sum.Inserted),
			zap.Int("failed", len(sum.Failures)),
			zap.Int("skipped_blank", sum.SkippedBlank),
		)
		fmt.Fprintln(cmd.OutOrStdout(), sum.Message())
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to the .xlsx or .csv file (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
