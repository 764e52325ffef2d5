package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/omnissiah/prodledger/internal/exporter"
	"github.com/omnissiah/prodledger/internal/importer"
	"github.com/omnissiah/prodledger/internal/model"
)

var (
	exportOut       string
	exportFrom      string
	exportTo        string
	exportDoctor    int64
	exportHospital  int64
	exportProcedure int64
	exportLimit     int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export productions to an xlsx workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		filter, err := exportFilter()
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rows, err := st.ListProductions(ctx, filter)
		if err != nil {
			return err
		}

		out := exportOut
		if out == "" {
			out = exporter.Filename(filter)
		} else if info, err := os.Stat(out); err == nil && info.IsDir() {
			out = filepath.Join(out, exporter.Filename(filter))
		}
		if err := writeFile(out, func(f *os.File) error { return exporter.Write(f, rows) }); err != nil {
			return err
		}

		zap.L().Info("export complete", zap.String("file", out), zap.Int("rows", len(rows)))
		return nil
	},
}

// exportFilter builds the listing filter from the command flags.
func exportFilter() (model.ProductionFilter, error) {
	f := model.ProductionFilter{
		DoctorID:    exportDoctor,
		HospitalID:  exportHospital,
		ProcedureID: exportProcedure,
		Limit:       cfg.Query.ExportLimit,
	}
	if exportLimit > 0 {
		f.Limit = model.ClampLimit(exportLimit, cfg.Query.MaxRows)
	}
	var err error
	if f.DateFrom, err = flagDate("from", exportFrom); err != nil {
		return f, err
	}
	if f.DateTo, err = flagDate("to", exportTo); err != nil {
		return f, err
	}
	return f, nil
}

func flagDate(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, ok := importer.ParseDateText(value)
	if !ok {
		return nil, eris.Errorf("invalid --%s date %q, use YYYY-MM-DD or DD/MM/YYYY", name, value)
	}
	return &t, nil
}

// writeFile creates path and hands it to write, removing it on failure.
func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := write(f); err != nil {
		f.Close()       //nolint:errcheck
		os.Remove(path) //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "close %s", path)
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file or directory (default: named after the date range)")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "first execution date, inclusive")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "last execution date, inclusive")
	exportCmd.Flags().Int64Var(&exportDoctor, "doctor", 0, "doctor user id")
	exportCmd.Flags().Int64Var(&exportHospital, "hospital", 0, "hospital id")
	exportCmd.Flags().Int64Var(&exportProcedure, "procedure", 0, "procedure id")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "maximum rows (default query.export_limit)")
	rootCmd.AddCommand(exportCmd)
}
