// Package transform resolves configured field sources against source rows.
//
// A mapping entry is either a column read verbatim or a call to one of a
// fixed set of helper functions. Compile turns each entry into a typed Source
// once, at configuration time, so unknown functions and wrong argument counts
// are reported before the first row is read.
package transform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/inodb/variantconvert/internal/mapping"
)

// Missing is the value used for absent data in rows and records.
const Missing = "."

// Reference answers single-base lookups on a reference genome.
type Reference interface {
	Base(contig string, pos int64) (byte, error)
}

// Row gives sources access to the current source record.
type Row interface {
	Get(column string) (string, bool)
}

// Env carries the read-only state shared by every row of a run.
type Env struct {
	Genome Reference
	// ContigPrefix is prepended to contig names lacking it before genome lookups.
	ContigPrefix string
}

func (e *Env) contig(name string) string {
	if e == nil || e.ContigPrefix == "" || strings.HasPrefix(name, e.ContigPrefix) {
		return name
	}
	return e.ContigPrefix + name
}

func (e *Env) reference() (Reference, error) {
	if e == nil || e.Genome == nil {
		return nil, &mapping.ConfigError{Field: "GENOME.path", Message: "a reference genome is required by the configured helper functions"}
	}
	return e.Genome, nil
}

// Source produces the value of one destination field for a row.
type Source interface {
	Resolve(row Row, env *Env) (string, error)
}

// genomeSource is implemented by sources that query the reference genome.
type genomeSource interface {
	usesGenome()
}

// RequiresGenome reports whether any of the sources queries the reference genome.
func RequiresGenome(sources ...Source) bool {
	for _, s := range sources {
		if _, ok := s.(genomeSource); ok {
			return true
		}
	}
	return false
}

// Unset is the source of an unmapped field; it always resolves to Missing.
type Unset struct{}

// Resolve returns Missing.
func (Unset) Resolve(Row, *Env) (string, error) {
	return Missing, nil
}

// Column reads a source column verbatim.
type Column struct {
	Name string
}

// Resolve returns the column value. A column absent from the row means the
// mapping does not fit the input table, which is a configuration error.
func (c Column) Resolve(row Row, _ *Env) (string, error) {
	v, ok := row.Get(c.Name)
	if !ok {
		return "", &mapping.ConfigError{Field: c.Name, Message: "column not found in input table"}
	}
	return v, nil
}

type factory struct {
	arity int
	build func(args []string) Source
}

// registry is the closed set of helper functions. Each function is listed under
// its descriptive name and the name used by existing mapping files.
var registry = map[string]factory{}

func register(names []string, arity int, build func(args []string) Source) {
	f := factory{arity: arity, build: build}
	for _, n := range names {
		registry[n] = f
	}
}

func init() {
	register([]string{"genotypeFromZygosity", "get_gt_from_zygosity"}, 1, func(a []string) Source {
		return Genotype{Zygosity: a[0]}
	})
	register([]string{"variantAlleleFraction", "calc_vaf"}, 2, func(a []string) Source {
		return AlleleFraction{AlleleDepth: a[0], TotalDepth: a[1]}
	})
	register([]string{"positionAdjustForIndel", "get_pos"}, 3, func(a []string) Source {
		return IndelPosition{Start: a[0], Ref: a[1], Alt: a[2]}
	})
	register([]string{"refAlleleFromGenome", "get_ref_from_tsv"}, 4, func(a []string) Source {
		return RefAllele{Chrom: a[0], Start: a[1], Ref: a[2], Alt: a[3]}
	})
	register([]string{"altAlleleFromGenome", "get_alt_from_tsv"}, 4, func(a []string) Source {
		return AltAllele{Chrom: a[0], Start: a[1], Ref: a[2], Alt: a[3]}
	})
	register([]string{"refBaseFromGenome", "get_ref_from_decon", "get_ref_from_canoes_bed"}, 2, func(a []string) Source {
		return RefBase{Chrom: a[0], Start: a[1]}
	})
	register([]string{"cnvAltFromLabel", "get_alt_from_decon"}, 1, func(a []string) Source {
		return CNVAlt{Label: a[0], Vocabulary: DeconVocabulary}
	})
	register([]string{"cnvAltFromCode", "get_alt_from_canoes_bed"}, 1, func(a []string) Source {
		return CNVAlt{Label: a[0], Vocabulary: CanoesVocabulary}
	})
	register([]string{"structuralVariantLength", "get_svlen_from_decon"}, 2, func(a []string) Source {
		return SVLength{Start: a[0], End: a[1]}
	})
	register([]string{"annotsvInfoPlaceholder", "get_info_from_annotsv"}, 1, func(a []string) Source {
		return AnnotSVInfo{Arg: a[0]}
	})
}

// Functions returns the names of all helper functions, sorted.
func Functions() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Compile converts a configured field source into a Source.
func Compile(fs mapping.FieldSource) (Source, error) {
	if fs.IsZero() {
		return Unset{}, nil
	}
	if !fs.IsCall() {
		return Column{Name: fs.Column}, nil
	}

	f, ok := registry[fs.Function]
	if !ok {
		return nil, &mapping.ConfigError{
			Field:   fs.String(),
			Message: fmt.Sprintf("unknown helper function %q", fs.Function),
		}
	}
	if len(fs.Args) != f.arity {
		return nil, &mapping.ConfigError{
			Field:   fs.String(),
			Message: fmt.Sprintf("helper function %q takes %d argument(s), got %d", fs.Function, f.arity, len(fs.Args)),
		}
	}
	for _, a := range fs.Args {
		if a == "" {
			return nil, &mapping.ConfigError{Field: fs.String(), Message: "empty argument column name"}
		}
	}
	return f.build(fs.Args), nil
}

// values resolves the named columns of a row in order.
func values(row Row, columns ...string) ([]string, error) {
	out := make([]string, len(columns))
	for i, c := range columns {
		v, err := Column{Name: c}.Resolve(row, nil)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
