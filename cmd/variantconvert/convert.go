package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/variantconvert/internal/convert"
	"github.com/inodb/variantconvert/internal/mapping"
)

func newConvertCmd() *cobra.Command {
	var (
		inputPath   string
		outputPath  string
		mappingPath string
		format      string
		coordinates string
	)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a variant table to VCF",
		Long: `Convert one per-sample variant table to a VCF 4.3 file.

The mapping file (YAML or JSON) declares which columns feed which VCF fields.
Columns it does not consume are written as INFO fields. The sample name is
taken from the input filename.`,
		Example: `  variantconvert convert -i fam12_PatientA.final.tsv -o PatientA.vcf -c tsv.yaml
  variantconvert convert -f decon -i calls.decon.tsv -o calls.vcf -c decon.yaml --genome hg19.fa
  variantconvert convert -f varank -i P1_allVariants.rankingByVar.tsv -o P1.vcf -c varank.yaml \
      --coordinates coordinates.tsv --workers 4`,
		Args: positionalArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(inputPath, outputPath, mappingPath, format, coordinates)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&inputPath, "input", "i", "", "Input variant table (plain or gzipped TSV)")
	flags.StringVarP(&outputPath, "output", "o", "", "Output VCF file")
	flags.StringVarP(&mappingPath, "config", "c", "", "Column mapping file (YAML or JSON)")
	flags.StringVarP(&format, "format", "f", convert.FormatTSV, "Input format: "+strings.Join(convert.Formats(), ", "))
	flags.StringVar(&coordinates, "coordinates", "", "Variant coordinate table for the varank format")
	flags.String("genome", "", "Reference FASTA, overrides GENOME.path of the mapping")
	flags.Int("workers", 1, "Number of goroutines assembling records (0 = all CPUs)")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output")
	cmd.MarkFlagRequired("config")
	viper.BindPFlag("genome", flags.Lookup("genome"))
	viper.BindPFlag("workers", flags.Lookup("workers"))

	return cmd
}

func runConvert(inputPath, outputPath, mappingPath, format, coordinates string) error {
	cfg, err := mapping.Load(mappingPath)
	if err != nil {
		return err
	}

	opts := []convert.Option{
		convert.WithLogger(logger),
		convert.WithWorkers(viper.GetInt("workers")),
	}
	if g := viper.GetString("genome"); g != "" {
		opts = append(opts, convert.WithGenome(g))
	}
	if coordinates != "" {
		opts = append(opts, convert.WithCoordinates(coordinates))
	}

	c, err := convert.New(format, opts...)
	if err != nil {
		return &usageError{err}
	}
	if err := c.Configure(cfg); err != nil {
		return fmt.Errorf("mapping %s: %w", mappingPath, err)
	}

	logger.Debug("mapping loaded", zap.String("path", mappingPath), zap.String("origin", cfg.General.Origin))
	return c.Convert(inputPath, outputPath)
}
