package mapping

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// DefaultFamilyPrefix is stripped from input filenames before suffix matching.
const DefaultFamilyPrefix = `^fam[0-9]*_`

// DefaultVariantIDColumn is the column used to key the coordinate lookup.
const DefaultVariantIDColumn = "variantID"

// Load reads, parses and validates a mapping file. JSON files are accepted
// since they are valid YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping file %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("mapping file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes mapping data, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		var ce *ConfigError
		if errors.As(err, &ce) {
			return nil, ce
		}
		return nil, &ConfigError{Message: err.Error()}
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.General.FamilyPrefix == "" {
		cfg.General.FamilyPrefix = DefaultFamilyPrefix
	}
	if cfg.General.VariantIDColumn == "" {
		cfg.General.VariantIDColumn = DefaultVariantIDColumn
	}
	if cfg.Descriptions.Columns == nil {
		cfg.Descriptions.Columns = ColumnDescriptions{}
	}
}

// Validate checks the structural rules of a mapping. Helper function names
// and arities are checked when sources are compiled.
func (c *Config) Validate() error {
	if !c.Columns.Filter.IsZero() {
		return &ConfigError{
			Field:   "VCF_COLUMNS.FILTER",
			Message: "filters are not implemented, leave FILTER empty (all records are PASS)",
		}
	}
	if c.General.Origin == "" {
		return &ConfigError{Field: "GENERAL.origin", Message: "must not be empty"}
	}
	if c.General.SkipRows < 0 {
		return &ConfigError{Field: "GENERAL.skip_rows", Message: "must not be negative"}
	}
	if len(c.General.FilenameEnds) == 0 {
		return &ConfigError{Field: "GENERAL.filename_ends", Message: "at least one filename suffix is required"}
	}
	if _, err := regexp.Compile(c.General.FamilyPrefix); err != nil {
		return &ConfigError{Field: "GENERAL.family_prefix", Message: err.Error()}
	}

	for name, desc := range c.Descriptions.Columns {
		if err := checkType(desc.Type); err != nil {
			return &ConfigError{Field: "COLUMNS_DESCRIPTION.COLUMNS." + name, Message: err.Error()}
		}
	}

	declared := make(map[string]bool, len(c.Descriptions.Info))
	for _, d := range c.Descriptions.Info {
		if err := checkType(d.Type); err != nil {
			return &ConfigError{Field: "COLUMNS_DESCRIPTION.INFO." + d.ID, Message: err.Error()}
		}
		declared[d.ID] = true
	}
	computed := make(map[string]bool, len(c.Columns.Info))
	for _, ns := range c.Columns.Info {
		if ns.Source.IsZero() {
			return &ConfigError{Field: "VCF_COLUMNS.INFO." + ns.ID, Message: "source must not be empty"}
		}
		if !declared[ns.ID] {
			return &ConfigError{Field: "VCF_COLUMNS.INFO." + ns.ID, Message: "computed INFO field has no COLUMNS_DESCRIPTION.INFO declaration"}
		}
		computed[ns.ID] = true
	}
	for _, d := range c.Descriptions.Info {
		if !computed[d.ID] {
			return &ConfigError{Field: "COLUMNS_DESCRIPTION.INFO." + d.ID, Message: "declared INFO field has no VCF_COLUMNS.INFO source"}
		}
	}

	for _, d := range c.Descriptions.Alt {
		if d.Description == "" {
			return &ConfigError{Field: "COLUMNS_DESCRIPTION.ALT." + d.ID, Message: "description must not be empty"}
		}
	}
	for _, d := range c.Descriptions.Format {
		switch d.ID {
		case "GT", "DP", "AD", "VAF":
		default:
			return &ConfigError{Field: "COLUMNS_DESCRIPTION.FORMAT." + d.ID, Message: "only GT, DP, AD and VAF can be described"}
		}
	}
	return nil
}

func checkType(t string) error {
	switch t {
	case "", TypeString, TypeInteger, TypeFloat:
		return nil
	}
	return fmt.Errorf("unknown column type %q (expected %s, %s or %s)", t, TypeString, TypeInteger, TypeFloat)
}

// Sources returns every configured field source keyed by its destination name.
func (c *Config) Sources() map[string]FieldSource {
	out := map[string]FieldSource{
		"#CHROM":     c.Columns.Chrom,
		"POS":        c.Columns.Pos,
		"ID":         c.Columns.ID,
		"REF":        c.Columns.Ref,
		"ALT":        c.Columns.Alt,
		"QUAL":       c.Columns.Qual,
		"FORMAT/GT":  c.Columns.Format.GT,
		"FORMAT/DP":  c.Columns.Format.DP,
		"FORMAT/AD":  c.Columns.Format.AD,
		"FORMAT/VAF": c.Columns.Format.VAF,
	}
	for _, ns := range c.Columns.Info {
		out["INFO/"+ns.ID] = ns.Source
	}
	return out
}

// KnownColumns returns the source columns consumed by fixed VCF fields.
// Every other column of the input table is folded into INFO.
func (c *Config) KnownColumns() map[string]bool {
	known := make(map[string]bool)
	for _, src := range c.Sources() {
		for _, col := range src.Inputs() {
			known[col] = true
		}
	}
	for _, col := range c.General.KnownColumns {
		known[col] = true
	}
	return known
}

// ConfigError reports an invalid mapping. It is always fatal.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Message
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}
