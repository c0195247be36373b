// Package main provides the variantconvert command-line tool.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	configName = ".variantconvert.yaml"
	envPrefix  = "VARIANTCONVERT"
)

// logger is built from --verbosity and --log-format before any command runs.
var logger = zap.NewNop()

// usageError marks errors caused by invalid command-line input.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	logger.Sync()
	if err == nil {
		return ExitSuccess
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	var uErr *usageError
	if errors.As(err, &uErr) || isCobraUsageError(err) {
		fmt.Fprintf(stderr, "Run 'variantconvert --help' for usage.\n")
		return ExitUsage
	}
	return ExitError
}

// isCobraUsageError recognizes the command-line errors cobra reports
// without going through the flag error hook.
func isCobraUsageError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") || strings.HasPrefix(msg, "required flag")
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "variantconvert",
		Short: "Convert lab variant tables to VCF",
		Long: `variantconvert turns per-sample variant exports (generic pipeline TSVs,
Varank rankings, DECoN and CANOES CNV calls, AnnotSV tables) into VCF 4.3
files, driven by a declarative column mapping.

Settings are read from ~/` + configName + ` and ` + envPrefix + `_* environment variables.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			initConfig()
			l, err := newLogger(viper.GetString("verbosity"), viper.GetString("log-format"))
			if err != nil {
				return &usageError{err}
			}
			logger = l
			return nil
		},
	}

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err}
	})

	flags := root.PersistentFlags()
	flags.StringP("verbosity", "v", "info", "Log level: debug, info, warning, error, critical")
	flags.String("log-format", "console", "Log format: console, json")
	viper.BindPFlag("verbosity", flags.Lookup("verbosity"))
	viper.BindPFlag("log-format", flags.Lookup("log-format"))

	root.AddCommand(newConvertCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newFunctionsCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// initConfig loads ~/.variantconvert.yaml when present and enables
// VARIANTCONVERT_* environment overrides.
func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	cfgFile := filepath.Join(home, configName)
	if _, err := os.Stat(cfgFile); err != nil {
		return
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not read %s: %v\n", cfgFile, err)
	}
}

// positionalArgs wraps an argument validator so its failures exit with
// ExitUsage.
func positionalArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return &usageError{err}
		}
		return nil
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  positionalArgs(cobra.NoArgs),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "variantconvert version %s (%s) built %s\n", version, commit, date)
		},
	}
}
