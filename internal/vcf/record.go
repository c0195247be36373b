// Package vcf builds, writes and re-reads VCF 4.3 files produced from
// tabular variant exports.
package vcf

import (
	"strconv"
	"strings"
)

// FormatKeys is the fixed FORMAT column of every data line.
var FormatKeys = []string{"GT", "DP", "AD", "VAF"}

// Missing is the VCF placeholder for an absent value.
const Missing = "."

// InfoField is one key=value pair of the INFO column.
type InfoField struct {
	Key   string
	Value string
}

// Record is a single-sample VCF data line.
type Record struct {
	Chrom  string
	Pos    int64
	ID     string
	Ref    string
	Alt    string
	Qual   string
	Filter string
	Info   []InfoField
	Format []string
	Sample []string
}

// IsSNV returns true if the record is a single nucleotide variant.
func (r *Record) IsSNV() bool {
	return len(r.Ref) == 1 && len(r.Alt) == 1
}

// IsSymbolic returns true if ALT is a symbolic allele such as <DEL>.
func (r *Record) IsSymbolic() bool {
	return strings.HasPrefix(r.Alt, "<") && strings.HasSuffix(r.Alt, ">")
}

// InfoValue returns the value of an INFO key.
func (r *Record) InfoValue(key string) (string, bool) {
	for _, f := range r.Info {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// SampleValue returns the sample value of a FORMAT key.
func (r *Record) SampleValue(key string) (string, bool) {
	for i, k := range r.Format {
		if k == key && i < len(r.Sample) {
			return r.Sample[i], true
		}
	}
	return "", false
}

// String renders the record as a tab-separated data line without newline.
func (r *Record) String() string {
	var b strings.Builder
	b.Grow(128)

	b.WriteString(r.Chrom)
	b.WriteByte('\t')
	b.WriteString(strconv.FormatInt(r.Pos, 10))
	b.WriteByte('\t')
	b.WriteString(orMissing(r.ID))
	b.WriteByte('\t')
	b.WriteString(r.Ref)
	b.WriteByte('\t')
	b.WriteString(r.Alt)
	b.WriteByte('\t')
	b.WriteString(orMissing(r.Qual))
	b.WriteByte('\t')
	b.WriteString(orMissing(r.Filter))
	b.WriteByte('\t')

	if len(r.Info) == 0 {
		b.WriteString(Missing)
	}
	for i, f := range r.Info {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(f.Value)
	}

	if len(r.Format) > 0 {
		b.WriteByte('\t')
		b.WriteString(strings.Join(r.Format, ":"))
		b.WriteByte('\t')
		b.WriteString(strings.Join(r.Sample, ":"))
	}
	return b.String()
}

func orMissing(s string) string {
	if s == "" {
		return Missing
	}
	return s
}
