package exporter

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/omnissiah/prodledger/internal/importer"
)

// TemplateFilename is the download name of the import template.
const TemplateFilename = "modelo_importacao_producao.xlsx"

const (
	templateSheet = "import"
	templateWidth = 24
)

// WriteTemplate writes an import workbook with the expected header and two
// example rows: one with every column filled, one relying on the hospital id
// and the price table.
func WriteTemplate(w io.Writer) error {
	f := xlsx.NewFile()
	sh, err := f.AddSheet(templateSheet)
	if err != nil {
		return eris.Wrap(err, "exporter: add template sheet")
	}

	hdr := sh.AddRow()
	for _, c := range importer.Columns {
		hdr.AddCell().SetString(c)
	}

	r := sh.AddRow()
	r.AddCell().SetString("2025-01-15")
	r.AddCell().SetString("EyeCenter Botucatu")
	r.AddCell().SetString("drjoao")
	r.AddCell().SetString("0405050380")
	r.AddCell().SetInt(1)
	r.AddCell().SetString("120,50")
	r.AddCell().SetString("exemplo")

	r = sh.AddRow()
	r.AddCell().SetString("15/02/2025")
	r.AddCell().SetInt(1)
	r.AddCell().SetString("maria.silva")
	r.AddCell().SetString("Biometria")
	r.AddCell().SetInt(2)
	r.AddCell().SetString("")
	r.AddCell().SetString("sem valor, usa tabela")

	if err := sh.SetColWidth(0, len(importer.Columns)-1, templateWidth); err != nil {
		return eris.Wrap(err, "exporter: set template widths")
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "exporter: write template")
	}
	return nil
}
