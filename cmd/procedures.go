package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/omnissiah/prodledger/internal/importer"
	"github.com/omnissiah/prodledger/internal/model"
	"github.com/omnissiah/prodledger/internal/sheet"
)

var proceduresFile string

// Accepted header names per catalog column, after importer.FoldHeader.
var procedureColumns = map[string][]string{
	"code":   {"tuss_code", "tuss", "codigo", "codigo_tuss"},
	"name":   {"name", "nome", "descricao", "procedimento"},
	"unit":   {"charge_unit", "unidade", "unidade_cobranca"},
	"active": {"active", "ativo"},
}

var proceduresCmd = &cobra.Command{
	Use:   "procedures",
	Short: "Manage the procedure catalog",
}

var proceduresSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upsert the procedure catalog from an xlsx or csv file keyed by TUSS code",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		f, err := os.Open(proceduresFile)
		if err != nil {
			return eris.Wrap(err, "open procedures file")
		}
		defer f.Close() //nolint:errcheck

		t, err := sheet.Read(filepath.Base(proceduresFile), f)
		if err != nil {
			return err
		}
		procs, err := parseProcedures(t)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.UpsertProcedures(ctx, procs)
		if err != nil {
			return err
		}
		zap.L().Info("procedures synced", zap.Int("read", len(procs)), zap.Int64("affected", n))
		return nil
	},
}

// parseProcedures reads catalog rows. Code and name columns are required;
// rows missing either are skipped. Active defaults to true.
func parseProcedures(t *sheet.Table) ([]model.Procedure, error) {
	pos := make(map[string]int, len(procedureColumns))
	for i, h := range t.Header {
		folded := importer.FoldHeader(h)
		for key, names := range procedureColumns {
			if _, seen := pos[key]; seen {
				continue
			}
			for _, n := range names {
				if folded == n {
					pos[key] = i
				}
			}
		}
	}
	for _, key := range []string{"code", "name"} {
		if _, ok := pos[key]; !ok {
			return nil, eris.Errorf("procedures: missing %s column (one of %s)", key, strings.Join(procedureColumns[key], ", "))
		}
	}

	cell := func(row int, key string) string {
		i, ok := pos[key]
		if !ok {
			return ""
		}
		return strings.TrimSpace(t.At(row, i).Text)
	}

	var out []model.Procedure
	for row := range t.Rows {
		code, name := cell(row, "code"), cell(row, "name")
		if code == "" || name == "" {
			continue
		}
		out = append(out, model.Procedure{
			TUSSCode:   code,
			Name:       name,
			ChargeUnit: cell(row, "unit"),
			Active:     parseActive(cell(row, "active")),
		})
	}
	return out, nil
}

func parseActive(s string) bool {
	switch strings.ToLower(s) {
	case "0", "false", "nao", "não", "n", "inativo":
		return false
	}
	return true
}

func init() {
	proceduresSyncCmd.Flags().StringVar(&proceduresFile, "file", "", "path to the .xlsx or .csv catalog (required)")
	_ = proceduresSyncCmd.MarkFlagRequired("file")
	proceduresCmd.AddCommand(proceduresSyncCmd)
	rootCmd.AddCommand(proceduresCmd)
}
