package vcf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/inodb/variantconvert/internal/coords"
	"github.com/inodb/variantconvert/internal/mapping"
	"github.com/inodb/variantconvert/internal/table"
	"github.com/inodb/variantconvert/internal/transform"
)

// CoordinateLookup resolves an external variant identifier to its locus.
type CoordinateLookup interface {
	Lookup(id string) (coords.Coordinate, error)
}

// Assembler turns source rows into VCF records according to a mapping.
// It is safe for concurrent use.
type Assembler struct {
	env *transform.Env

	chrom, pos, id, ref, alt, qual transform.Source
	gt, dp, ad, vaf                transform.Source

	// Column-sourced GT and VAF hold raw zygosity labels and percentages.
	gtFromColumn  bool
	vafFromColumn bool

	extra []string
	info  []infoSource

	lookup   CoordinateLookup
	idColumn string
}

type infoSource struct {
	key string
	src transform.Source
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithCoordinates takes CHROM, POS, REF and ALT from lookup, keyed by the
// value of idColumn, instead of from the mapped sources.
func WithCoordinates(lookup CoordinateLookup, idColumn string) AssemblerOption {
	return func(a *Assembler) {
		a.lookup = lookup
		a.idColumn = idColumn
	}
}

// NewAssembler compiles the sources of cfg. extra lists the table columns
// folded into INFO, in table order.
func NewAssembler(cfg *mapping.Config, extra []string, env *transform.Env, opts ...AssemblerOption) (*Assembler, error) {
	a := &Assembler{env: env, extra: extra}
	for _, opt := range opts {
		opt(a)
	}

	cols := cfg.Columns
	fields := []struct {
		name     string
		fs       mapping.FieldSource
		dst      *transform.Source
		required bool
	}{
		{"#CHROM", cols.Chrom, &a.chrom, a.lookup == nil},
		{"POS", cols.Pos, &a.pos, a.lookup == nil},
		{"ID", cols.ID, &a.id, false},
		{"REF", cols.Ref, &a.ref, a.lookup == nil},
		{"ALT", cols.Alt, &a.alt, a.lookup == nil},
		{"QUAL", cols.Qual, &a.qual, false},
		{"FORMAT.GT", cols.Format.GT, &a.gt, false},
		{"FORMAT.DP", cols.Format.DP, &a.dp, false},
		{"FORMAT.AD", cols.Format.AD, &a.ad, false},
		{"FORMAT.VAF", cols.Format.VAF, &a.vaf, false},
	}
	for _, f := range fields {
		if f.required && f.fs.IsZero() {
			return nil, &mapping.ConfigError{Field: "VCF_COLUMNS." + f.name, Message: "must be mapped"}
		}
		src, err := transform.Compile(f.fs)
		if err != nil {
			return nil, fmt.Errorf("VCF_COLUMNS.%s: %w", f.name, err)
		}
		*f.dst = src
	}
	a.gtFromColumn = !cols.Format.GT.IsZero() && !cols.Format.GT.IsCall()
	a.vafFromColumn = !cols.Format.VAF.IsZero() && !cols.Format.VAF.IsCall()

	extraKeys := make(map[string]string, len(extra))
	for _, col := range extra {
		extraKeys[InfoKey(col)] = col
	}
	for _, ns := range cols.Info {
		if col, ok := extraKeys[ns.ID]; ok {
			return nil, &mapping.ConfigError{
				Field:   "VCF_COLUMNS.INFO." + ns.ID,
				Message: fmt.Sprintf("collides with unmapped input column %q, add it to GENERAL.known_columns or rename the INFO field", col),
			}
		}
		src, err := transform.Compile(ns.Source)
		if err != nil {
			return nil, fmt.Errorf("VCF_COLUMNS.INFO.%s: %w", ns.ID, err)
		}
		a.info = append(a.info, infoSource{key: ns.ID, src: src})
	}
	return a, nil
}

// Sources returns every compiled source of the assembler.
func (a *Assembler) Sources() []transform.Source {
	out := []transform.Source{a.chrom, a.pos, a.id, a.ref, a.alt, a.qual, a.gt, a.dp, a.ad, a.vaf}
	for _, is := range a.info {
		out = append(out, is.src)
	}
	return out
}

// Assemble builds the record of one row.
func (a *Assembler) Assemble(row transform.Row) (*Record, error) {
	r := &Record{Filter: "PASS", Format: FormatKeys}

	if err := a.locate(row, r); err != nil {
		return nil, err
	}

	var err error
	if r.ID, err = a.resolve("ID", a.id, row); err != nil {
		return nil, err
	}
	if r.Qual, err = a.resolve("QUAL", a.qual, row); err != nil {
		return nil, err
	}

	for _, col := range a.extra {
		v, ok := row.Get(col)
		if !ok {
			return nil, &FieldError{Field: "INFO/" + col, Err: &mapping.ConfigError{Field: col, Message: "column not found in input table"}}
		}
		r.Info = append(r.Info, InfoField{Key: InfoKey(col), Value: cleanInfoValue(v)})
	}
	for _, is := range a.info {
		v, err := a.resolve("INFO/"+is.key, is.src, row)
		if err != nil {
			return nil, err
		}
		r.Info = append(r.Info, InfoField{Key: is.key, Value: cleanInfoValue(v)})
	}

	if r.Sample, err = a.sample(row); err != nil {
		return nil, err
	}
	return r, nil
}

// locate fills CHROM, POS, REF and ALT.
func (a *Assembler) locate(row transform.Row, r *Record) error {
	if a.lookup != nil {
		id, ok := row.Get(a.idColumn)
		if !ok {
			return &FieldError{Field: "ID", Err: &mapping.ConfigError{Field: a.idColumn, Message: "variant ID column not found in input table"}}
		}
		c, err := a.lookup.Lookup(id)
		if err != nil {
			return &FieldError{Field: "#CHROM", Err: err}
		}
		r.Chrom, r.Pos = c.Chrom, c.Pos
		if r.Ref, err = checkAllele(c.Ref); err != nil {
			return &FieldError{Field: "REF", Err: err}
		}
		if r.Alt, err = checkAllele(c.Alt); err != nil {
			return &FieldError{Field: "ALT", Err: err}
		}
		return nil
	}

	var err error
	if r.Chrom, err = a.resolve("#CHROM", a.chrom, row); err != nil {
		return err
	}
	pos, err := a.resolve("POS", a.pos, row)
	if err != nil {
		return err
	}
	if r.Pos, err = table.ParsePosition(pos); err != nil || r.Pos < 1 {
		return &FieldError{Field: "POS", Err: fmt.Errorf("position %q is not a positive integer", pos)}
	}

	ref, err := a.resolve("REF", a.ref, row)
	if err != nil {
		return err
	}
	if r.Ref, err = checkAllele(ref); err != nil {
		return &FieldError{Field: "REF", Err: err}
	}
	alt, err := a.resolve("ALT", a.alt, row)
	if err != nil {
		return err
	}
	if r.Alt, err = checkAllele(alt); err != nil {
		return &FieldError{Field: "ALT", Err: err}
	}
	return nil
}

func (a *Assembler) sample(row transform.Row) ([]string, error) {
	gt, err := a.resolve("FORMAT/GT", a.gt, row)
	if err != nil {
		return nil, err
	}
	if a.gtFromColumn {
		gt = transform.GenotypeFromZygosity(gt)
	}

	dp, err := a.resolve("FORMAT/DP", a.dp, row)
	if err != nil {
		return nil, err
	}
	altDepth, err := a.resolve("FORMAT/AD", a.ad, row)
	if err != nil {
		return nil, err
	}
	ad := AllelicDepths(dp, altDepth)

	vaf, err := a.resolve("FORMAT/VAF", a.vaf, row)
	if err != nil {
		return nil, err
	}
	if a.vafFromColumn {
		if vaf, err = PercentToFraction(vaf); err != nil {
			return nil, &FieldError{Field: "FORMAT/VAF", Err: err}
		}
	}

	values := []string{gt, dp, ad, vaf}
	for i, v := range values {
		values[i] = CleanSampleValue(v)
	}
	return values, nil
}

func (a *Assembler) resolve(field string, src transform.Source, row transform.Row) (string, error) {
	v, err := src.Resolve(row, a.env)
	if err != nil {
		return "", &FieldError{Field: field, Err: err}
	}
	if v == "" {
		return Missing, nil
	}
	return v, nil
}

// AllelicDepths renders AD as "ref,alt" with the ref depth derived from the
// total depth, so that the two always sum to DP. Non-numeric input yields
// Missing.
func AllelicDepths(totalDepth, altDepth string) string {
	dp, ok := parseDepth(totalDepth)
	if !ok {
		return Missing
	}
	alt, ok := parseDepth(altDepth)
	if !ok {
		return Missing
	}
	return strconv.FormatInt(dp-alt, 10) + "," + strconv.FormatInt(alt, 10)
}

func parseDepth(s string) (int64, bool) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int64(f), true
}

// PercentToFraction converts a stored percentage ("45") to a fraction
// ("0.45"). Missing stays missing.
func PercentToFraction(v string) (string, error) {
	if v == Missing {
		return v, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return "", fmt.Errorf("allele frequency %q is not numeric", v)
	}
	return strconv.FormatFloat(f/100, 'f', -1, 64), nil
}

// checkAllele uppercases an allele and accepts nucleotide strings and
// symbolic alleles.
func checkAllele(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || s == Missing {
		return "", &transform.UnrepresentableAlleleError{Ref: s, Reason: "missing allele"}
	}
	if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") && len(s) > 2 {
		return s, nil
	}
	if strings.Trim(s, "ACGTN") != "" {
		return "", &transform.UnrepresentableAlleleError{Ref: s, Reason: "allele is not a nucleotide string"}
	}
	return s, nil
}

func cleanInfoValue(v string) string {
	if v == "" {
		return Missing
	}
	return CleanString(v)
}

// FieldError names the VCF field whose value could not be produced.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
