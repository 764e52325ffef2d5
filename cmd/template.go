package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/omnissiah/prodledger/internal/exporter"
)

var templateOut string

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write the import template workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := templateOut
		if out == "" {
			out = exporter.TemplateFilename
		}
		if err := writeFile(out, func(f *os.File) error { return exporter.WriteTemplate(f) }); err != nil {
			return err
		}
		zap.L().Info("template written", zap.String("file", out))
		return nil
	},
}

func init() {
	templateCmd.Flags().StringVar(&templateOut, "out", "", "output file (default "+exporter.TemplateFilename+")")
	rootCmd.AddCommand(templateCmd)
}
