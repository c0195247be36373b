package convert

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inodb/variantconvert/internal/coords"
	"github.com/inodb/variantconvert/internal/genome"
	"github.com/inodb/variantconvert/internal/mapping"
	"github.com/inodb/variantconvert/internal/table"
	"github.com/inodb/variantconvert/internal/transform"
	"github.com/inodb/variantconvert/internal/vcf"
)

// run is a single input-to-output conversion. It owns every resource it
// opens and releases them before returning.
type run struct {
	format      string
	cfg         *mapping.Config
	opts        options
	coordinates string

	id     string
	logger *zap.Logger
	lookup *coords.Store
}

func (r *run) execute(input, output string) (err error) {
	r.id = uuid.NewString()
	r.logger = r.opts.logger.With(zap.String("run_id", r.id), zap.String("format", r.format))
	start := time.Now()

	sample, err := SampleName(input, r.cfg.General)
	if err != nil {
		return err
	}
	r.logger.Info("starting conversion",
		zap.String("input", input),
		zap.String("output", output),
		zap.String("sample", sample),
		zap.Int("workers", r.opts.workers))

	tbl, err := table.Load(input, r.cfg.General.SkipRows)
	if err != nil {
		return fmt.Errorf("load %s: %w", input, err)
	}
	r.logger.Debug("loaded input table", zap.Int("rows", tbl.Len()), zap.Int("columns", len(tbl.Columns)))

	if r.coordinates != "" {
		if err := r.openCoordinates(); err != nil {
			return err
		}
		defer r.lookup.Close()
	}

	if err := r.sortRows(tbl); err != nil {
		return err
	}

	env := &transform.Env{ContigPrefix: r.cfg.Genome.ContigPrefix}
	extra := r.extraColumns(tbl)
	var assemblerOpts []vcf.AssemblerOption
	if r.lookup != nil {
		assemblerOpts = append(assemblerOpts, vcf.WithCoordinates(r.lookup, r.cfg.General.VariantIDColumn))
	}
	assembler, err := vcf.NewAssembler(r.cfg, columnNames(extra), env, assemblerOpts...)
	if err != nil {
		return err
	}

	if transform.RequiresGenome(assembler.Sources()...) {
		cache := r.opts.cache
		if cache == nil {
			cache = genome.NewCache()
			cache.SetLogger(r.logger)
			defer cache.Close()
		}
		g, err := r.openGenome(cache)
		if err != nil {
			return err
		}
		env.Genome = g
	}

	header, err := (&vcf.HeaderBuilder{
		Config:       r.cfg,
		InputPath:    input,
		ExtraColumns: extra,
		Sample:       sample,
		Now:          r.opts.now,
	}).Build()
	if err != nil {
		return err
	}

	records, err := r.write(output, header, assembler, tbl.Rows)
	if err != nil {
		return err
	}

	r.logger.Info("conversion complete",
		zap.String("output", output),
		zap.Int("records", records),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (r *run) openCoordinates() error {
	store, err := coords.Open("")
	if err != nil {
		return fmt.Errorf("open coordinate store: %w", err)
	}
	if err := store.Load(r.coordinates); err != nil {
		store.Close()
		return fmt.Errorf("load coordinates: %w", err)
	}
	if err := store.Preload(); err != nil {
		store.Close()
		return fmt.Errorf("preload coordinates: %w", err)
	}
	if n, err := store.Count(); err == nil {
		r.logger.Debug("loaded variant coordinates", zap.String("path", r.coordinates), zap.Int64("variants", n))
	}
	r.lookup = store
	return nil
}

func (r *run) openGenome(cache *genome.Cache) (*genome.Genome, error) {
	path := r.opts.genomePath
	if path == "" {
		path = r.cfg.Genome.Path
	}
	if path == "" {
		return nil, &mapping.ConfigError{Field: "GENOME.path", Message: "a reference genome is required by the configured transforms"}
	}
	g, err := cache.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open genome: %w", err)
	}
	return g, nil
}

// sortRows orders rows by chromosome then position. Coordinate-backed runs
// sort by the looked-up locus; the others sort by the columns feeding
// #CHROM and POS.
func (r *run) sortRows(tbl *table.Table) error {
	if r.lookup != nil {
		idColumn := r.cfg.General.VariantIDColumn
		if _, ok := tbl.Column(idColumn); !ok {
			return &mapping.ConfigError{Field: "GENERAL.variant_id_column", Message: fmt.Sprintf("column %q not found in input table", idColumn)}
		}
		err := table.SortRows(tbl.Rows, func(row table.Row) (table.Locus, error) {
			id, _ := row.Get(idColumn)
			c, err := r.lookup.Lookup(id)
			if err != nil {
				return table.Locus{}, err
			}
			return table.Locus{Chrom: c.Chrom, Pos: c.Pos}, nil
		})
		if err != nil {
			return fmt.Errorf("sort rows: %w", err)
		}
		return nil
	}

	chrom, pos := sortColumn(r.cfg.Columns.Chrom), sortColumn(r.cfg.Columns.Pos)
	if chrom == "" || pos == "" {
		r.logger.Debug("rows left in input order, #CHROM or POS has no source column")
		return nil
	}
	if err := tbl.SortByColumns(chrom, pos); err != nil {
		return fmt.Errorf("sort rows: %w", err)
	}
	return nil
}

// sortColumn returns the column that positions a field: the column itself,
// or the first argument of a helper call.
func sortColumn(fs mapping.FieldSource) string {
	if in := fs.Inputs(); len(in) > 0 {
		return in[0]
	}
	return ""
}

// extraColumns returns the table columns not consumed by a mapped field.
// They are folded into INFO.
func (r *run) extraColumns(tbl *table.Table) []table.Column {
	known := r.cfg.KnownColumns()
	if r.lookup != nil {
		known[r.cfg.General.VariantIDColumn] = true
	}
	var extra []table.Column
	for _, col := range tbl.Columns {
		if !known[col.Name] {
			extra = append(extra, col)
		}
	}
	return extra
}

func columnNames(cols []table.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// write assembles every row into a temporary file next to output and
// renames it into place once all records are written.
func (r *run) write(output string, header *vcf.Header, a *vcf.Assembler, rows []table.Row) (n int, err error) {
	tmp := filepath.Join(filepath.Dir(output), fmt.Sprintf(".%s.%s.tmp", filepath.Base(output), r.id))
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create output: %w", err)
	}
	r.logger.Debug("writing to temporary file", zap.String("path", tmp))
	defer func() {
		if err != nil {
			f.Close()
			if rmErr := os.Remove(tmp); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				r.logger.Warn("could not remove temporary file", zap.String("path", tmp), zap.Error(rmErr))
			}
		}
	}()

	w := vcf.NewWriter(f)
	if err := w.WriteHeader(header); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	stop := make(chan struct{})
	items := feed(rows, 2*max(r.opts.workers, 1), stop)
	results := ParallelAssemble(a, items, r.opts.workers)
	err = OrderedCollect(results, func(res WorkResult) error {
		if res.Err != nil {
			close(stop)
			re := &RowError{Line: res.Row.Line, Err: res.Err}
			var fe *vcf.FieldError
			if errors.As(res.Err, &fe) {
				re.Field, re.Err = fe.Field, fe.Err
			}
			return re
		}
		return w.Write(res.Record)
	})
	if err != nil {
		return 0, err
	}

	if err := w.Flush(); err != nil {
		return 0, fmt.Errorf("flush output: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp, output); err != nil {
		return 0, fmt.Errorf("rename output: %w", err)
	}
	return w.Records(), nil
}
