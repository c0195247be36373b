// Package convert runs whole-file conversions from lab variant tables to VCF.
package convert

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/variantconvert/internal/genome"
	"github.com/inodb/variantconvert/internal/mapping"
)

// Converter turns one input table into one VCF file.
type Converter interface {
	Configure(cfg *mapping.Config) error
	Convert(input, output string) error
}

// Option configures a Converter.
type Option func(*options)

type options struct {
	logger      *zap.Logger
	workers     int
	genomePath  string
	coordinates string
	cache       *genome.Cache
	now         func() time.Time
}

// WithLogger sets the logger used for run progress.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithWorkers sets the number of goroutines assembling records.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithGenome overrides GENOME.path of the mapping.
func WithGenome(path string) Option {
	return func(o *options) { o.genomePath = path }
}

// WithCoordinates sets the variant coordinate table used by the varank format.
func WithCoordinates(path string) Option {
	return func(o *options) { o.coordinates = path }
}

// WithGenomeCache shares a genome cache across runs. The caller closes it.
func WithGenomeCache(c *genome.Cache) Option {
	return func(o *options) { o.cache = c }
}

// WithClock sets the clock used for ##fileDate.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Formats handled by New.
const (
	FormatTSV     = "tsv"
	FormatVarank  = "varank"
	FormatDecon   = "decon"
	FormatCanoes  = "canoes"
	FormatAnnotSV = "annotsv"
)

var formats = []string{FormatTSV, FormatVarank, FormatDecon, FormatCanoes, FormatAnnotSV}

// Formats returns the accepted input format names.
func Formats() []string {
	out := slices.Clone(formats)
	sort.Strings(out)
	return out
}

// New returns the converter for an input format.
func New(format string, opts ...Option) (Converter, error) {
	o := options{logger: zap.NewNop(), workers: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	switch format {
	case FormatTSV, FormatDecon, FormatCanoes, FormatAnnotSV:
		return &TableConverter{format: format, opts: o}, nil
	case FormatVarank:
		return &VarankConverter{TableConverter{format: format, opts: o}}, nil
	}
	return nil, fmt.Errorf("unknown input format %q (expected one of %v)", format, Formats())
}

// TableConverter converts tables whose rows carry their own coordinates.
type TableConverter struct {
	format string
	opts   options
	cfg    *mapping.Config
}

// Configure validates cfg for the converter's format.
func (c *TableConverter) Configure(cfg *mapping.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if c.format == FormatDecon || c.format == FormatCanoes {
		declared := make(map[string]bool, len(cfg.Descriptions.Alt))
		for _, d := range cfg.Descriptions.Alt {
			declared[d.ID] = true
		}
		for _, id := range []string{"DEL", "DUP"} {
			if !declared[id] {
				return &mapping.ConfigError{
					Field:   "COLUMNS_DESCRIPTION.ALT." + id,
					Message: c.format + " calls emit <" + id + "> and need it declared",
				}
			}
		}
	}
	c.cfg = cfg
	return nil
}

// Convert writes the VCF for input to output.
func (c *TableConverter) Convert(input, output string) error {
	if c.cfg == nil {
		return fmt.Errorf("%s converter: Configure must be called before Convert", c.format)
	}
	return (&run{format: c.format, cfg: c.cfg, opts: c.opts}).execute(input, output)
}

// VarankConverter converts Varank exports. Their rows carry a variant ID
// only; coordinates come from a separate lookup table.
type VarankConverter struct {
	TableConverter
}

// Configure validates cfg and checks that a coordinate table was given.
func (c *VarankConverter) Configure(cfg *mapping.Config) error {
	if c.opts.coordinates == "" {
		return &mapping.ConfigError{Field: "coordinates", Message: "varank conversion needs a variant coordinate table"}
	}
	return c.TableConverter.Configure(cfg)
}

// Convert writes the VCF for input to output.
func (c *VarankConverter) Convert(input, output string) error {
	if c.cfg == nil {
		return fmt.Errorf("%s converter: Configure must be called before Convert", c.format)
	}
	return (&run{format: c.format, cfg: c.cfg, opts: c.opts, coordinates: c.opts.coordinates}).execute(input, output)
}
