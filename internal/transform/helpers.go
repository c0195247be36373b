package transform

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/inodb/variantconvert/internal/table"
)

// Genotype maps a zygosity label to a diploid genotype.
type Genotype struct {
	Zygosity string
}

func (g Genotype) Resolve(row Row, _ *Env) (string, error) {
	v, err := values(row, g.Zygosity)
	if err != nil {
		return "", err
	}
	return GenotypeFromZygosity(v[0]), nil
}

// GenotypeFromZygosity returns 0/1 for a heterozygous label and 1/1 otherwise.
func GenotypeFromZygosity(label string) string {
	if strings.EqualFold(strings.TrimSpace(label), "het") {
		return "0/1"
	}
	return "1/1"
}

// AlleleFraction divides the variant read depth by the total depth.
type AlleleFraction struct {
	AlleleDepth string
	TotalDepth  string
}

func (a AlleleFraction) Resolve(row Row, _ *Env) (string, error) {
	v, err := values(row, a.AlleleDepth, a.TotalDepth)
	if err != nil {
		return "", err
	}
	return VariantAlleleFraction(v[0], v[1])
}

// VariantAlleleFraction returns alleleDepth/totalDepth as a decimal string.
// A missing operand yields Missing; a zero total depth is an error.
func VariantAlleleFraction(alleleDepth, totalDepth string) (string, error) {
	if alleleDepth == Missing || totalDepth == Missing {
		return Missing, nil
	}
	ad, err := strconv.ParseFloat(alleleDepth, 64)
	if err != nil {
		return "", fmt.Errorf("allele depth %q is not numeric", alleleDepth)
	}
	dp, err := strconv.ParseFloat(totalDepth, 64)
	if err != nil {
		return "", fmt.Errorf("total depth %q is not numeric", totalDepth)
	}
	if dp == 0 {
		return "", fmt.Errorf("allele fraction %s/%s: division by zero", alleleDepth, totalDepth)
	}
	return strconv.FormatFloat(ad/dp, 'f', -1, 64), nil
}

// IndelPosition moves the position of a placeholder-encoded deletion onto
// its anchor base.
type IndelPosition struct {
	Start string
	Ref   string
	Alt   string
}

func (p IndelPosition) Resolve(row Row, _ *Env) (string, error) {
	v, err := values(row, p.Start, p.Ref, p.Alt)
	if err != nil {
		return "", err
	}
	return PositionAdjustForIndel(v[0], v[1], v[2])
}

// PositionAdjustForIndel returns start-1 for a deletion (alt is the
// placeholder) and start otherwise.
func PositionAdjustForIndel(start, ref, alt string) (string, error) {
	if ref == Placeholder || alt != Placeholder {
		return start, nil
	}
	pos, err := parsePosition(start)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(pos-1, 10), nil
}

// RefAllele is the anchored reference allele of a row.
type RefAllele struct {
	Chrom string
	Start string
	Ref   string
	Alt   string
}

func (RefAllele) usesGenome() {}

func (r RefAllele) Resolve(row Row, env *Env) (string, error) {
	a, err := normalizeRow(row, env, r.Chrom, r.Start, r.Ref, r.Alt)
	if err != nil {
		return "", err
	}
	return a.Ref, nil
}

// AltAllele is the anchored alternate allele of a row.
type AltAllele struct {
	Chrom string
	Start string
	Ref   string
	Alt   string
}

func (AltAllele) usesGenome() {}

func (r AltAllele) Resolve(row Row, env *Env) (string, error) {
	a, err := normalizeRow(row, env, r.Chrom, r.Start, r.Ref, r.Alt)
	if err != nil {
		return "", err
	}
	return a.Alt, nil
}

func normalizeRow(row Row, env *Env, chrom, start, ref, alt string) (Alleles, error) {
	v, err := values(row, chrom, start, ref, alt)
	if err != nil {
		return Alleles{}, err
	}
	pos, err := parsePosition(v[1])
	if err != nil {
		return Alleles{}, err
	}
	kind, err := Classify(v[2], v[3])
	if err != nil {
		return Alleles{}, err
	}
	var g Reference
	if kind != SNV {
		if g, err = env.reference(); err != nil {
			return Alleles{}, err
		}
	}
	return NormalizeAlleles(g, env.contig(v[0]), pos, v[2], v[3])
}

// RefBase is the single reference base at a CNV start, used as REF for
// symbolic alleles.
type RefBase struct {
	Chrom string
	Start string
}

func (RefBase) usesGenome() {}

func (r RefBase) Resolve(row Row, env *Env) (string, error) {
	v, err := values(row, r.Chrom, r.Start)
	if err != nil {
		return "", err
	}
	pos, err := parsePosition(v[1])
	if err != nil {
		return "", err
	}
	g, err := env.reference()
	if err != nil {
		return "", err
	}
	b, err := g.Base(env.contig(v[0]), pos)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CNVVocabulary maps the CNV type labels of one caller to symbolic alleles.
type CNVVocabulary struct {
	Name   string
	Labels map[string]string
}

// Vocabularies of the supported CNV callers.
var (
	DeconVocabulary = CNVVocabulary{
		Name:   "DECoN",
		Labels: map[string]string{"deletion": "<DEL>", "duplication": "<DUP>"},
	}
	CanoesVocabulary = CNVVocabulary{
		Name:   "CANOES",
		Labels: map[string]string{"DEL": "<DEL>", "DUP": "<DUP>"},
	}
)

// Lookup returns the symbolic allele for label.
func (v CNVVocabulary) Lookup(label string) (string, error) {
	if alt, ok := v.Labels[label]; ok {
		return alt, nil
	}
	return "", &UnrecognizedCnvTypeError{Label: label, Caller: v.Name}
}

// CNVAlt maps a CNV type label to <DEL> or <DUP>.
type CNVAlt struct {
	Label      string
	Vocabulary CNVVocabulary
}

func (c CNVAlt) Resolve(row Row, _ *Env) (string, error) {
	v, err := values(row, c.Label)
	if err != nil {
		return "", err
	}
	return c.Vocabulary.Lookup(v[0])
}

// SVLength is the length of a structural variant, end minus start.
type SVLength struct {
	Start string
	End   string
}

func (s SVLength) Resolve(row Row, _ *Env) (string, error) {
	v, err := values(row, s.Start, s.End)
	if err != nil {
		return "", err
	}
	return StructuralVariantLength(v[0], v[1])
}

// StructuralVariantLength returns end-start.
func StructuralVariantLength(start, end string) (string, error) {
	s, err := table.ParsePosition(start)
	if err != nil {
		return "", fmt.Errorf("start %q is not an integer", start)
	}
	e, err := table.ParsePosition(end)
	if err != nil {
		return "", fmt.Errorf("end %q is not an integer", end)
	}
	return strconv.FormatInt(e-s, 10), nil
}

// AnnotSVInfo reserves an INFO slot for AnnotSV annotations. Its argument
// column must exist but is not read further.
type AnnotSVInfo struct {
	Arg string
}

func (p AnnotSVInfo) Resolve(row Row, _ *Env) (string, error) {
	if _, err := values(row, p.Arg); err != nil {
		return "", err
	}
	return Missing, nil
}

func parsePosition(s string) (int64, error) {
	pos, err := table.ParsePosition(s)
	if err != nil {
		return 0, err
	}
	if pos < 1 {
		return 0, fmt.Errorf("position %d is not positive", pos)
	}
	return pos, nil
}
