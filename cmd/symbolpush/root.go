package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ochairo/symbolpush/internal/config"
	"github.com/ochairo/symbolpush/internal/external-adapters/zaplog"
)

// rootOptions holds global flags shared by every subcommand
type rootOptions struct {
	ConfigFile string
	EnvFile    string
	LogLevel   string
	LogFormat  string
	Output     string // text or json

	stdout io.Writer
	stderr io.Writer
}

var validOutputs = []string{"text", "json"}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:   "symbolpush",
		Short: "Publish Android deobfuscation artifacts to Google Play",
		Long: `symbolpush opens a Google Play edit for a release, uploads the ProGuard/R8
mapping file when one exists, reports native libraries found in the build output
and commits the edit.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, o := range validOutputs {
				if o == opts.Output {
					return nil
				}
			}
			return newUsageError(fmt.Errorf("invalid output %q: must be one of %v", opts.Output, validOutputs))
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return newUsageError(err)
	})

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "config file (.yaml, .yml or .toml)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file with SYMBOLPUSH_* variables")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format (console|json)")
	cmd.PersistentFlags().StringVarP(&opts.Output, "output", "o", "text", "report format (text|json)")

	cmd.AddCommand(newUploadCommand(opts))
	cmd.AddCommand(newDiscoverCommand(opts))
	cmd.AddCommand(newVersionCommand(opts))

	return cmd
}

// loadConfig reads file and environment settings, then the global log flags
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{File: o.ConfigFile, EnvFile: o.EnvFile})
	if err != nil {
		return nil, newUsageError(err)
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.LogFormat = o.LogFormat
	}
	return cfg, nil
}

func (o *rootOptions) newLogger(cfg *config.Config) *zaplog.Logger {
	return zaplog.New(zaplog.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: o.stderr,
	})
}
