// Package importer loads production rows from an uploaded spreadsheet. Each
// row is validated and inserted on its own: bad rows are reported and
// skipped, good rows are committed regardless of what follows.
package importer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/omnissiah/prodledger/internal/metrics"
	"github.com/omnissiah/prodledger/internal/model"
	"github.com/omnissiah/prodledger/internal/pricing"
	"github.com/omnissiah/prodledger/internal/sheet"
)

// Row problems, in the order they are checked.
const (
	ProblemDate      = "data inválida"
	ProblemQuantity  = "quantidade inválida"
	ProblemUnitPrice = "valor unitário inválido"
	ProblemHospital  = "hospital não encontrado"
	ProblemDoctor    = "médico não encontrado"
	ProblemProcedure = "procedimento não encontrado"
)

// ErrUnsupportedFile is returned for uploads that are neither a workbook nor
// csv.
var ErrUnsupportedFile = sheet.ErrUnsupportedFile

// EntityResolver maps row tokens to ids. *resolve.Resolver satisfies it.
type EntityResolver interface {
	Hospital(ctx context.Context, token string) (int64, bool)
	Doctor(ctx context.Context, token string) (int64, bool)
	Procedure(ctx context.Context, token string) (int64, bool)
}

// PriceResolver looks up the active price of a pair. *pricing.Resolver
// satisfies it.
type PriceResolver interface {
	Resolve(ctx context.Context, hospitalID, procedureID int64) (*decimal.Decimal, error)
}

// Inserter persists one production. Implementations commit each call on its
// own so earlier rows survive later failures.
type Inserter interface {
	InsertProduction(ctx context.Context, p model.Production) (int64, error)
}

// Option configures an Importer.
type Option func(*Importer)

// WithMetrics records batch and row counts on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(im *Importer) {
		im.metrics = c
	}
}

// Importer runs the row pipeline.
type Importer struct {
	entities EntityResolver
	prices   PriceResolver
	store    Inserter
	metrics  *metrics.Collector
	newID    func() uuid.UUID
}

// New creates an Importer.
func New(entities EntityResolver, prices PriceResolver, store Inserter, opts ...Option) *Importer {
	im := &Importer{
		entities: entities,
		prices:   prices,
		store:    store,
		newID:    uuid.New,
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// ImportFile parses the upload named name and imports it.
func (im *Importer) ImportFile(ctx context.Context, name string, r io.Reader) (*Summary, error) {
	t, err := sheet.Read(name, r)
	if err != nil {
		im.metrics.ObserveImportRejected()
		return nil, eris.Wrap(err, "importer: read file")
	}
	return im.Import(ctx, t)
}

// Import processes every data row of t. A missing mandatory column aborts
// before any row is touched and returns a *HeaderError. A cancelled context
// stops the loop; the summary of the rows done so far is returned with the
// error.
func (im *Importer) Import(ctx context.Context, t *sheet.Table) (*Summary, error) {
	cols, err := mapHeader(t.Header)
	if err != nil {
		im.metrics.ObserveImportRejected()
		return nil, err
	}

	start := time.Now()
	sum := &Summary{BatchID: im.newID()}
	log := zap.L().With(
		zap.String("component", "importer"),
		zap.String("batch_id", sum.BatchID.String()),
	)

	for i := range t.Rows {
		if err := ctx.Err(); err != nil {
			return sum, eris.Wrapf(err, "importer: stopped at row %d", i+2)
		}

		r := rowReader{t: t, cols: cols, i: i}
		if r.blank() {
			sum.SkippedBlank++
			continue
		}

		out := im.importRow(ctx, log, r, sum.BatchID)
		if out.OK() {
			sum.Inserted++
			continue
		}
		sum.Failures = append(sum.Failures, out)
	}

	im.metrics.ObserveImport(sum.Inserted, len(sum.Failures), sum.SkippedBlank)
	log.Info("import finished",
		zap.Int("rows", len(t.Rows)),
		zap.Int("inserted", sum.Inserted),
		zap.Int("failed", len(sum.Failures)),
		zap.Int("blank", sum.SkippedBlank),
		zap.Duration("elapsed", time.Since(start)),
	)
	return sum, nil
}

func (im *Importer) importRow(ctx context.Context, log *zap.Logger, r rowReader, batch uuid.UUID) Outcome {
	out := Outcome{Row: r.number()}

	execDate, ok := ParseDate(r.cell(ColDate))
	if !ok {
		out.Problems = append(out.Problems, ProblemDate)
	}
	qty, ok := ParseQuantity(r.text(ColQuantity))
	if !ok {
		out.Problems = append(out.Problems, ProblemQuantity)
	}
	price, err := pricing.ParseAmount(r.text(ColUnitPrice))
	if err != nil || (price != nil && price.IsNegative()) {
		out.Problems = append(out.Problems, ProblemUnitPrice)
	}

	hospitalID, ok := im.entities.Hospital(ctx, r.text(ColHospital))
	if !ok {
		out.Problems = append(out.Problems, ProblemHospital)
	}
	doctorID, ok := im.entities.Doctor(ctx, r.text(ColDoctor))
	if !ok {
		out.Problems = append(out.Problems, ProblemDoctor)
	}
	procedureID, ok := im.entities.Procedure(ctx, r.text(ColProcedure))
	if !ok {
		out.Problems = append(out.Problems, ProblemProcedure)
	}

	if len(out.Problems) > 0 {
		return out
	}

	if price == nil {
		resolved, err := im.prices.Resolve(ctx, hospitalID, procedureID)
		if err != nil {
			log.Warn("price lookup failed, inserting without price",
				zap.Int("row", out.Row),
				zap.Error(err),
			)
		}
		price = resolved
	}

	id, err := im.store.InsertProduction(ctx, model.Production{
		ExecDate:    execDate,
		DoctorID:    doctorID,
		HospitalID:  hospitalID,
		ProcedureID: procedureID,
		Quantity:    qty,
		UnitPrice:   price,
		Note:        strings.TrimSpace(r.text(ColNote)),
		ImportBatch: &batch,
	})
	if err != nil {
		log.Warn("insert failed", zap.Int("row", out.Row), zap.Error(err))
		out.Problems = append(out.Problems, fmt.Sprintf("erro ao inserir (%s)", eris.Cause(err).Error()))
		return out
	}
	out.ProductionID = id
	return out
}

// rowReader reads cells of data row i by column name. Absent optional
// columns read as blank.
type rowReader struct {
	t    *sheet.Table
	cols columnIndex
	i    int
}

// number is the spreadsheet row number: the header is row 1.
func (r rowReader) number() int { return r.i + 2 }

func (r rowReader) cell(name string) sheet.Cell {
	return r.t.At(r.i, r.cols.position(name))
}

func (r rowReader) text(name string) string {
	return strings.TrimSpace(r.cell(name).Text)
}

func (r rowReader) blank() bool {
	for _, c := range requiredColumns {
		if !r.cell(c).Blank() {
			return false
		}
	}
	return true
}
