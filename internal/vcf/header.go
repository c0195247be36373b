package vcf

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/inodb/variantconvert/internal/mapping"
	"github.com/inodb/variantconvert/internal/table"
)

// FileFormat is the only VCF version written.
const FileFormat = "VCFv4.3"

// FixedColumns are the mandatory columns of the #CHROM line.
var FixedColumns = []string{"#CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER", "INFO", "FORMAT"}

// formatFields declare the sample fields in FormatKeys order.
var formatFields = []struct {
	id, number, typ, description string
}{
	{"GT", "1", "String", "Genotype"},
	{"DP", "1", "Integer", "Approximate read depth (reads with MQ=255 or with bad mates are filtered)"},
	{"AD", "R", "Integer", "Allelic depths for the ref and alt alleles in the order listed"},
	{"VAF", "1", "Float", "VAF Variant Frequency"},
}

// formatLines renders the FORMAT declarations. A COLUMNS_DESCRIPTION.FORMAT
// entry replaces the default description; Number and Type never change.
func formatLines(overrides mapping.Declarations) []string {
	custom := make(map[string]string, len(overrides))
	for _, d := range overrides {
		if d.Description != "" {
			custom[d.ID] = d.Description
		}
	}
	lines := make([]string, len(formatFields))
	for i, f := range formatFields {
		desc := f.description
		if c, ok := custom[f.id]; ok {
			desc = c
		}
		lines[i] = fmt.Sprintf(`##FORMAT=<ID=%s,Number=%s,Type=%s,Description="%s">`, f.id, f.number, f.typ, escapeDescription(desc))
	}
	return lines
}

// Header is an ordered set of meta lines plus the sample names of the
// #CHROM line.
type Header struct {
	Meta    []string
	Samples []string
}

// Lines returns the meta lines followed by the #CHROM line.
func (h *Header) Lines() []string {
	lines := make([]string, 0, len(h.Meta)+1)
	lines = append(lines, h.Meta...)
	return append(lines, h.ColumnLine())
}

// ColumnLine returns the tab-separated #CHROM line.
func (h *Header) ColumnLine() string {
	cols := append(append([]string{}, FixedColumns...), h.Samples...)
	return strings.Join(cols, "\t")
}

// Declared returns the IDs declared by ##<kind>= lines, e.g. kind "INFO".
func (h *Header) Declared(kind string) map[string]bool {
	prefix := "##" + kind + "=<"
	ids := make(map[string]bool)
	for _, line := range h.Meta {
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		if id, ok := metaField(line[len(prefix):], "ID"); ok {
			ids[id] = true
		}
	}
	return ids
}

// metaField extracts key=value from the body of a structured meta line,
// honouring quoted values.
func metaField(body, key string) (string, bool) {
	body = strings.TrimSuffix(body, ">")
	inQuotes := false
	start := 0
	for i := 0; i <= len(body); i++ {
		if i < len(body) {
			if body[i] == '\\' && inQuotes {
				i++
				continue
			}
			if body[i] == '"' {
				inQuotes = !inQuotes
			}
			if inQuotes || body[i] != ',' {
				continue
			}
		}
		k, v, ok := strings.Cut(body[start:i], "=")
		if ok && k == key {
			return strings.Trim(v, `"`), true
		}
		start = i + 1
	}
	return "", false
}

// HeaderBuilder assembles the header of one conversion run.
type HeaderBuilder struct {
	Config *mapping.Config
	// InputPath is recorded as ##InputFile, made absolute.
	InputPath string
	// ExtraColumns are the table columns folded into INFO, in table order.
	ExtraColumns []table.Column
	Sample       string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Build returns the header in fixed order: file format, date, source,
// input file, FILTER, ALT, INFO, FORMAT, genome lines and the #CHROM line.
func (b *HeaderBuilder) Build() (*Header, error) {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	input, err := filepath.Abs(b.InputPath)
	if err != nil {
		return nil, fmt.Errorf("resolve input path: %w", err)
	}
	cfg := b.Config

	h := &Header{Samples: []string{b.Sample}}
	h.Meta = append(h.Meta,
		"##fileformat="+FileFormat,
		"##fileDate="+now().Format("20060102"),
		"##source="+cfg.General.Origin,
		"##InputFile="+input,
		`##FILTER=<ID=PASS,Description="Passed filter">`,
	)

	for _, d := range cfg.Descriptions.Alt {
		h.Meta = append(h.Meta, fmt.Sprintf(`##ALT=<ID=%s,Description="%s">`, d.ID, escapeDescription(d.Description)))
	}

	for _, col := range b.ExtraColumns {
		typ, desc := infoDeclaration(cfg, col)
		h.Meta = append(h.Meta, infoLine(InfoKey(col.Name), typ, desc))
	}
	for _, d := range cfg.Descriptions.Info {
		typ := d.Type
		if typ == "" {
			typ = mapping.TypeString
		}
		h.Meta = append(h.Meta, infoLine(d.ID, typ, d.Description))
	}

	h.Meta = append(h.Meta, formatLines(cfg.Descriptions.Format)...)
	h.Meta = append(h.Meta, cfg.Genome.VCFHeader...)
	return h, nil
}

// infoDeclaration picks the Type and Description of an extra column. An
// explicit description type wins; a description without a type forces
// String; otherwise the type is inferred from the column data.
func infoDeclaration(cfg *mapping.Config, col table.Column) (typ, desc string) {
	d, described := cfg.Descriptions.Columns[col.Name]
	switch {
	case described && d.Type != "":
		typ = d.Type
	case described:
		typ = mapping.TypeString
	default:
		typ = inferredType(col.Type)
	}

	desc = "Extracted from " + cfg.General.Origin
	if described && d.Description != "" {
		desc = d.Description
	}
	return typ, desc
}

func inferredType(t table.Type) string {
	switch t {
	case table.Integer:
		return mapping.TypeInteger
	case table.Float:
		return mapping.TypeFloat
	}
	return mapping.TypeString
}

func infoLine(id, typ, desc string) string {
	return fmt.Sprintf(`##INFO=<ID=%s,Number=1,Type=%s,Description="%s">`, id, typ, escapeDescription(desc))
}

func escapeDescription(s string) string {
	s = CleanString(s)
	return strings.ReplaceAll(s, `"`, `\"`)
}
