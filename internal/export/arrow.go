// Package export writes and reads forecast tables as Arrow IPC files so
// they can be loaded column-wise by dataframe tooling without parsing CSV.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/nvandessel/hornetcast/internal/models"
)

// ErrSchemaMismatch is returned when an Arrow file does not hold the
// expected table.
var ErrSchemaMismatch = errors.New("arrow schema mismatch")

const tableKey = "hornetcast.table"

// SpreadSchema is the Arrow schema of the spread forecast.
var SpreadSchema = arrow.NewSchema([]arrow.Field{
	{Name: "year", Type: arrow.PrimitiveTypes.Int32},
	{Name: "country", Type: arrow.BinaryTypes.String},
	{Name: "stage", Type: arrow.PrimitiveTypes.Int8},
	{Name: "stage_year", Type: arrow.PrimitiveTypes.Int32},
	{Name: "hive_density", Type: arrow.PrimitiveTypes.Float64},
	{Name: "hive_count", Type: arrow.PrimitiveTypes.Int64},
}, metadata("spread"))

// BeeSchema is the Arrow schema of the bee forecast.
var BeeSchema = arrow.NewSchema([]arrow.Field{
	{Name: "Year", Type: arrow.PrimitiveTypes.Int32},
	{Name: "Country", Type: arrow.BinaryTypes.String},
	{Name: "Hornet_Density", Type: arrow.PrimitiveTypes.Float64},
	{Name: "Bee_Density", Type: arrow.PrimitiveTypes.Float64},
	{Name: "Bee_Count", Type: arrow.PrimitiveTypes.Int64},
	{Name: "Bee_Density_Growth", Type: arrow.PrimitiveTypes.Float64},
}, metadata("bees"))

func metadata(table string) *arrow.Metadata {
	md := arrow.NewMetadata([]string{tableKey}, []string{table})
	return &md
}

// Writer encodes tables with a chosen allocator.
type Writer struct {
	mem memory.Allocator
}

// NewWriter creates a Writer. A nil allocator uses the default one.
func NewWriter(mem memory.Allocator) *Writer {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &Writer{mem: mem}
}

// SpreadRecord builds an Arrow record from spread rows. The caller must
// Release it.
func (w *Writer) SpreadRecord(rows []models.SpreadRow) arrow.Record {
	b := array.NewRecordBuilder(w.mem, SpreadSchema)
	defer b.Release()

	years := b.Field(0).(*array.Int32Builder)
	names := b.Field(1).(*array.StringBuilder)
	stages := b.Field(2).(*array.Int8Builder)
	stageYears := b.Field(3).(*array.Int32Builder)
	density := b.Field(4).(*array.Float64Builder)
	counts := b.Field(5).(*array.Int64Builder)
	b.Reserve(len(rows))

	for _, r := range rows {
		years.Append(int32(r.Year))
		names.Append(r.Country)
		stages.Append(int8(r.Stage))
		stageYears.Append(int32(r.StageYear))
		density.Append(r.HiveDensity)
		counts.Append(r.HiveCount)
	}
	return b.NewRecord()
}

// BeeRecord builds an Arrow record from bee rows. The caller must Release it.
func (w *Writer) BeeRecord(rows []models.BeeRow) arrow.Record {
	b := array.NewRecordBuilder(w.mem, BeeSchema)
	defer b.Release()

	years := b.Field(0).(*array.Int32Builder)
	names := b.Field(1).(*array.StringBuilder)
	hornets := b.Field(2).(*array.Float64Builder)
	density := b.Field(3).(*array.Float64Builder)
	counts := b.Field(4).(*array.Int64Builder)
	growth := b.Field(5).(*array.Float64Builder)
	b.Reserve(len(rows))

	for _, r := range rows {
		years.Append(int32(r.Year))
		names.Append(r.Country)
		hornets.Append(r.HornetDensity)
		density.Append(r.BeeDensity)
		counts.Append(r.BeeCount)
		growth.Append(r.BeeDensityGrowth)
	}
	return b.NewRecord()
}

// WriteSpread writes rows as an Arrow IPC file.
func (w *Writer) WriteSpread(out io.Writer, rows []models.SpreadRow) error {
	rec := w.SpreadRecord(rows)
	defer rec.Release()
	return w.writeFile(out, SpreadSchema, rec)
}

// WriteBees writes rows as an Arrow IPC file.
func (w *Writer) WriteBees(out io.Writer, rows []models.BeeRow) error {
	rec := w.BeeRecord(rows)
	defer rec.Release()
	return w.writeFile(out, BeeSchema, rec)
}

func (w *Writer) writeFile(out io.Writer, schema *arrow.Schema, rec arrow.Record) error {
	fw, err := ipc.NewFileWriter(out, ipc.WithSchema(schema), ipc.WithAllocator(w.mem))
	if err != nil {
		return fmt.Errorf("creating arrow writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("writing arrow record: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("closing arrow writer: %w", err)
	}
	return nil
}

// ReadSpread decodes a spread forecast written by WriteSpread.
func ReadSpread(r ipc.ReadAtSeeker, mem memory.Allocator) ([]models.SpreadRow, error) {
	var out []models.SpreadRow
	err := readFile(r, mem, "spread", func(rec arrow.Record) error {
		years, ok1 := rec.Column(0).(*array.Int32)
		names, ok2 := rec.Column(1).(*array.String)
		stages, ok3 := rec.Column(2).(*array.Int8)
		stageYears, ok4 := rec.Column(3).(*array.Int32)
		density, ok5 := rec.Column(4).(*array.Float64)
		counts, ok6 := rec.Column(5).(*array.Int64)
		if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
			return ErrSchemaMismatch
		}
		for i := 0; i < int(rec.NumRows()); i++ {
			out = append(out, models.SpreadRow{
				Year:        int(years.Value(i)),
				Country:     names.Value(i),
				Stage:       models.Stage(stages.Value(i)),
				StageYear:   int(stageYears.Value(i)),
				HiveDensity: density.Value(i),
				HiveCount:   counts.Value(i),
			})
		}
		return nil
	})
	return out, err
}

// ReadBees decodes a bee forecast written by WriteBees.
func ReadBees(r ipc.ReadAtSeeker, mem memory.Allocator) ([]models.BeeRow, error) {
	var out []models.BeeRow
	err := readFile(r, mem, "bees", func(rec arrow.Record) error {
		years, ok1 := rec.Column(0).(*array.Int32)
		names, ok2 := rec.Column(1).(*array.String)
		hornets, ok3 := rec.Column(2).(*array.Float64)
		density, ok4 := rec.Column(3).(*array.Float64)
		counts, ok5 := rec.Column(4).(*array.Int64)
		growth, ok6 := rec.Column(5).(*array.Float64)
		if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
			return ErrSchemaMismatch
		}
		for i := 0; i < int(rec.NumRows()); i++ {
			out = append(out, models.BeeRow{
				Year:             int(years.Value(i)),
				Country:          names.Value(i),
				HornetDensity:    hornets.Value(i),
				BeeDensity:       density.Value(i),
				BeeCount:         counts.Value(i),
				BeeDensityGrowth: growth.Value(i),
			})
		}
		return nil
	})
	return out, err
}

// readFile opens an IPC file, checks its table tag and visits each record.
func readFile(r ipc.ReadAtSeeker, mem memory.Allocator, table string, visit func(arrow.Record) error) error {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	fr, err := ipc.NewFileReader(r, ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("opening arrow file: %w", err)
	}
	defer fr.Close()

	md := fr.Schema().Metadata()
	if i := md.FindKey(tableKey); i < 0 || md.Values()[i] != table {
		return fmt.Errorf("%w: expected %s table", ErrSchemaMismatch, table)
	}

	for i := 0; i < fr.NumRecords(); i++ {
		rec, err := fr.Record(i)
		if err != nil {
			return fmt.Errorf("reading record %d: %w", i, err)
		}
		if err := visit(rec); err != nil {
			return err
		}
	}
	return nil
}

// WriteSpreadFile writes a spread forecast to path.
func WriteSpreadFile(path string, rows []models.SpreadRow) error {
	return writePath(path, func(f io.Writer) error { return NewWriter(nil).WriteSpread(f, rows) })
}

// WriteBeesFile writes a bee forecast to path.
func WriteBeesFile(path string, rows []models.BeeRow) error {
	return writePath(path, func(f io.Writer) error { return NewWriter(nil).WriteBees(f, rows) })
}

// ReadSpreadFile reads a spread forecast from path.
func ReadSpreadFile(path string) ([]models.SpreadRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return ReadSpread(f, nil)
}

// ReadBeesFile reads a bee forecast from path.
func ReadBeesFile(path string) ([]models.BeeRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return ReadBees(f, nil)
}

func writePath(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
