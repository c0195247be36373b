// Package mapping holds the declarative column mapping that drives a conversion:
// which source columns feed which VCF fields, how columns are described in the
// header, and which genome the run is anchored on.
package mapping

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// HelperFunctionTag marks a list-shaped FieldSource in the mapping file:
//
//	POS: [HELPER_FUNCTION, get_pos, start, ref, alt]
const HelperFunctionTag = "HELPER_FUNCTION"

// Column types accepted in descriptions.
const (
	TypeString  = "String"
	TypeInteger = "Integer"
	TypeFloat   = "Float"
)

// Config is the in-memory form of a mapping file. It is immutable once loaded.
type Config struct {
	General      General      `yaml:"GENERAL"`
	Columns      Columns      `yaml:"VCF_COLUMNS"`
	Descriptions Descriptions `yaml:"COLUMNS_DESCRIPTION"`
	Genome       Genome       `yaml:"GENOME"`
}

// General holds run-level settings.
type General struct {
	Origin          string   `yaml:"origin"`
	SkipRows        int      `yaml:"skip_rows"`
	FilenameEnds    []string `yaml:"filename_ends"`
	FamilyPrefix    string   `yaml:"family_prefix"`
	KnownColumns    []string `yaml:"known_columns"`
	VariantIDColumn string   `yaml:"variant_id_column"`
}

// Columns maps destination VCF fields to their sources.
type Columns struct {
	Chrom  FieldSource   `yaml:"#CHROM"`
	Pos    FieldSource   `yaml:"POS"`
	ID     FieldSource   `yaml:"ID"`
	Ref    FieldSource   `yaml:"REF"`
	Alt    FieldSource   `yaml:"ALT"`
	Qual   FieldSource   `yaml:"QUAL"`
	Filter FieldSource   `yaml:"FILTER"`
	Info   NamedSources  `yaml:"INFO"`
	Format FormatColumns `yaml:"FORMAT"`
}

// FormatColumns maps the fixed FORMAT sub-fields to their sources.
// AD is the variant (alt) read depth; the ref depth is derived from DP.
type FormatColumns struct {
	GT  FieldSource `yaml:"GT"`
	DP  FieldSource `yaml:"DP"`
	AD  FieldSource `yaml:"AD"`
	VAF FieldSource `yaml:"VAF"`
}

// generalKeys lists the accepted GENERAL keys. varank_filename_ends is the
// older name of filename_ends.
var generalKeys = map[string]bool{
	"origin": true, "skip_rows": true, "filename_ends": true, "varank_filename_ends": true,
	"family_prefix": true, "known_columns": true, "variant_id_column": true,
}

// UnmarshalYAML decodes GENERAL, merging varank_filename_ends into
// FilenameEnds.
func (g *General) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return &ConfigError{Field: "GENERAL", Message: "must be a mapping"}
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if key := node.Content[i]; !generalKeys[key.Value] {
			return &ConfigError{Field: "GENERAL." + key.Value, Message: fmt.Sprintf("unknown key (line %d)", key.Line)}
		}
	}

	type plain General
	var p struct {
		plain              `yaml:",inline"`
		VarankFilenameEnds []string `yaml:"varank_filename_ends"`
	}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*g = General(p.plain)
	g.FilenameEnds = append(g.FilenameEnds, p.VarankFilenameEnds...)
	return nil
}

// Descriptions holds header metadata.
type Descriptions struct {
	Alt  Declarations
	Info Declarations
	// Format overrides the descriptions of the fixed FORMAT fields.
	Format  Declarations
	Columns ColumnDescriptions
}

// UnmarshalYAML reads the ALT, INFO, FORMAT and COLUMNS sections. Any other
// key is a column description, so flat layouts such as
//
//	COLUMNS_DESCRIPTION: {gene: Gene symbol, ALT: {DEL: Deletion}}
//
// load the same as their COLUMNS form. FILTER must be empty.
func (d *Descriptions) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return &ConfigError{Field: "COLUMNS_DESCRIPTION", Message: "must be a mapping"}
	}
	out := Descriptions{Columns: ColumnDescriptions{}}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		var err error
		switch key.Value {
		case "ALT":
			err = val.Decode(&out.Alt)
		case "INFO":
			err = val.Decode(&out.Info)
		case "FORMAT":
			err = val.Decode(&out.Format)
		case "FILTER":
			if len(val.Content) > 0 || (val.Kind == yaml.ScalarNode && val.Value != "") {
				return &ConfigError{Field: "COLUMNS_DESCRIPTION.FILTER", Message: "filters are not implemented, leave FILTER empty"}
			}
		case "COLUMNS":
			var cols ColumnDescriptions
			if err = val.Decode(&cols); err == nil {
				for name, cd := range cols {
					out.Columns[name] = cd
				}
			}
		default:
			var cd ColumnDescription
			if err = val.Decode(&cd); err == nil {
				out.Columns[key.Value] = cd
			}
		}
		if err != nil {
			return err
		}
	}
	*d = out
	return nil
}

// Genome describes the reference the run is anchored on.
type Genome struct {
	Path         string   `yaml:"path"`
	ContigPrefix string   `yaml:"contig_prefix"`
	VCFHeader    []string `yaml:"vcf_header"`
}

// FieldSource is either a plain column reference or a helper call.
// The zero value means the field is not mapped.
type FieldSource struct {
	Column   string
	Function string
	Args     []string
}

// ColumnSource returns a FieldSource reading name verbatim.
func ColumnSource(name string) FieldSource {
	return FieldSource{Column: name}
}

// CallSource returns a FieldSource invoking a helper function.
func CallSource(function string, args ...string) FieldSource {
	return FieldSource{Function: function, Args: args}
}

// IsCall reports whether the source invokes a helper function.
func (f FieldSource) IsCall() bool {
	return f.Function != ""
}

// IsZero reports whether the source is unset.
func (f FieldSource) IsZero() bool {
	return f.Column == "" && f.Function == ""
}

// Inputs returns the source columns read by f.
func (f FieldSource) Inputs() []string {
	if f.IsCall() {
		return f.Args
	}
	if f.Column != "" {
		return []string{f.Column}
	}
	return nil
}

// String renders f the way it is written in a mapping file.
func (f FieldSource) String() string {
	if f.IsCall() {
		return fmt.Sprintf("[%s, %s]", HelperFunctionTag, strings.Join(append([]string{f.Function}, f.Args...), ", "))
	}
	return f.Column
}

// UnmarshalYAML accepts a scalar column name or a HELPER_FUNCTION list.
func (f *FieldSource) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*f = FieldSource{}
			return nil
		}
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*f = FieldSource{Column: s}
		return nil

	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return &ConfigError{Field: fmt.Sprintf("line %d", node.Line), Message: "helper call must be a list of strings"}
		}
		if len(items) < 2 || items[0] != HelperFunctionTag {
			return &ConfigError{
				Field:   fmt.Sprintf("line %d", node.Line),
				Message: fmt.Sprintf("value should be a column name or a %s list, got %v", HelperFunctionTag, items),
			}
		}
		*f = FieldSource{Function: items[1], Args: items[2:]}
		return nil
	}

	return &ConfigError{Field: fmt.Sprintf("line %d", node.Line), Message: "value should be a column name or a helper call"}
}

// NamedSource is one computed INFO field.
type NamedSource struct {
	ID     string
	Source FieldSource
}

// NamedSources keeps the mapping-file order of computed INFO fields.
type NamedSources []NamedSource

// UnmarshalYAML decodes a mapping node preserving key order.
func (n *NamedSources) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return &ConfigError{Field: fmt.Sprintf("line %d", node.Line), Message: "INFO sources must be a mapping"}
	}
	out := make(NamedSources, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var src FieldSource
		if err := node.Content[i+1].Decode(&src); err != nil {
			return err
		}
		out = append(out, NamedSource{ID: node.Content[i].Value, Source: src})
	}
	*n = out
	return nil
}

// Declaration is an ordered header declaration, e.g. an ##ALT or computed ##INFO line.
type Declaration struct {
	ID          string
	Type        string
	Description string
}

// Declarations keeps the mapping-file order of header declarations.
// Values may be a bare description string or a {Type, Description} mapping.
type Declarations []Declaration

// UnmarshalYAML decodes a mapping node preserving key order.
func (d *Declarations) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return &ConfigError{Field: fmt.Sprintf("line %d", node.Line), Message: "declarations must be a mapping"}
	}
	out := make(Declarations, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var cd ColumnDescription
		if err := node.Content[i+1].Decode(&cd); err != nil {
			return err
		}
		out = append(out, Declaration{ID: node.Content[i].Value, Type: cd.Type, Description: cd.Description})
	}
	*d = out
	return nil
}

// ColumnDescription is the header metadata of one source column.
type ColumnDescription struct {
	Type        string `yaml:"Type"`
	Description string `yaml:"Description"`
}

// UnmarshalYAML accepts a bare description string or a {Type, Description} mapping.
func (c *ColumnDescription) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*c = ColumnDescription{Description: s}
		return nil
	}
	type plain ColumnDescription
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = ColumnDescription(p)
	return nil
}

// ColumnDescriptions maps source column names to their descriptions.
type ColumnDescriptions map[string]ColumnDescription
