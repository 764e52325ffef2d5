// Package exporter writes production listings and the import template as
// xlsx workbooks.
package exporter

import (
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/omnissiah/prodledger/internal/model"
)

// ContentType is the MIME type of the generated workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	sheetName = "Produção"

	qtyFormat   = "0"
	moneyFormat = "#,##0.00"

	minWidth = 12
	maxWidth = 60
)

// Header is the fixed column order of an export.
var Header = []string{
	"Data", "Hospital", "Médico", "TUSS", "Procedimento",
	"Quantidade", "Vlr Unit. (R$)", "Total (R$)", "Obs.",
}

// Write renders rows into a single-sheet workbook. An empty rows slice
// yields a workbook holding only the header.
func Write(w io.Writer, rows []model.ProductionView) error {
	f := xlsx.NewFile()
	sh, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "exporter: add sheet")
	}

	widths := make([]int, len(Header))
	track := func(col int, s string) {
		widths[col] = max(widths[col], utf8.RuneCountInString(s))
	}

	hdr := sh.AddRow()
	for i, h := range Header {
		hdr.AddCell().SetString(h)
		track(i, h)
	}

	for _, v := range rows {
		price := v.UnitPrice
		total := v.Total()
		texts := []string{
			v.ExecDate.Format(model.DateLayout),
			v.HospitalName,
			v.Doctor(),
			v.TUSSCode,
			v.ProcedureName,
		}

		row := sh.AddRow()
		for i, s := range texts {
			row.AddCell().SetString(s)
			track(i, s)
		}

		row.AddCell().SetFloatWithFormat(float64(v.Quantity), qtyFormat)
		track(5, strconv.Itoa(v.Quantity))

		unit := 0.0
		unitText := "0.00"
		if price != nil {
			unit = price.InexactFloat64()
			unitText = price.StringFixed(2)
		}
		row.AddCell().SetFloatWithFormat(unit, moneyFormat)
		track(6, unitText)

		row.AddCell().SetFloatWithFormat(total.InexactFloat64(), moneyFormat)
		track(7, total.StringFixed(2))

		row.AddCell().SetString(v.Note)
		track(8, v.Note)
	}

	for i, n := range widths {
		if err := sh.SetColWidth(i, i, float64(columnWidth(n))); err != nil {
			return eris.Wrapf(err, "exporter: set width of column %d", i)
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "exporter: write workbook")
	}
	return nil
}

// columnWidth is the longest rendered value plus padding, clamped.
func columnWidth(longest int) int {
	return min(max(minWidth, longest+2), maxWidth)
}

// Filename names an export after its date bounds: producao_<from>_a_<to>.xlsx,
// with "ini" and "fim" standing in for an open bound.
func Filename(filter model.ProductionFilter) string {
	if filter.DateFrom == nil && filter.DateTo == nil {
		return "producao.xlsx"
	}
	from, to := "ini", "fim"
	if filter.DateFrom != nil {
		from = filter.DateFrom.Format(model.DateLayout)
	}
	if filter.DateTo != nil {
		to = filter.DateTo.Format(model.DateLayout)
	}
	return "producao_" + from + "_a_" + to + ".xlsx"
}
