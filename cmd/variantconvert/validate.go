package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/variantconvert/internal/transform"
	"github.com/inodb/variantconvert/internal/vcf"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <vcf>",
		Short: "Check a VCF for the properties conversions guarantee",
		Long: `Re-read a VCF (plain or gzipped) and report allele alphabet violations,
undeclared INFO/FORMAT keys, uncleaned INFO values, AD sums that differ from
DP and VAF values outside [0, 1]. Exits non-zero when problems are found.`,
		Args: positionalArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := vcf.NewReader(args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			report, err := vcf.Validate(r)
			if err != nil {
				return err
			}
			logger.Debug("validated", zap.String("path", args[0]), zap.Int("records", report.Records))
			if err := report.Write(cmd.OutOrStdout()); err != nil {
				return err
			}
			if !report.OK() {
				return fmt.Errorf("%s: %d problems found", args[0], len(report.Problems))
			}
			return nil
		},
	}
}

func newFunctionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "functions",
		Short: "List the helper functions accepted in mapping files",
		Args:  positionalArgs(cobra.NoArgs),
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range transform.Functions() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}
