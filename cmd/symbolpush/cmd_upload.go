package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ochairo/symbolpush/internal/config"
	"github.com/ochairo/symbolpush/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/symbolpush/internal/domain-orchestrators"
	"github.com/ochairo/symbolpush/internal/domain/entities"
	"github.com/ochairo/symbolpush/internal/domain/interfaces"
	"github.com/ochairo/symbolpush/internal/external-adapters/credentials"
)

type uploadOptions struct {
	packageName      string
	versionCode      int64
	track            string
	credentialsFile  string
	endpoint         string
	nativeLibDir     string
	mappingFile      string
	mappingSHA256    string
	mappingSignature string
	signingKeyring   string
	timeout          string
	dryRun           bool
}

func newUploadCommand(root *rootOptions) *cobra.Command {
	opts := &uploadOptions{}

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload the mapping file and commit a Play edit",
		Long: `Open an edit, upload the deobfuscation mapping for the configured version code
and commit the edit. A missing mapping file is skipped, not treated as an error.
Native libraries are listed but never uploaded.`,
		Example: `  symbolpush upload --package com.example.app --version-code 42
  symbolpush upload --config release.yaml --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, cfg); err != nil {
				return newUsageError(err)
			}
			return runUpload(cmd.Context(), root, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.packageName, "package", "p", "", "application package name")
	flags.Int64Var(&opts.versionCode, "version-code", 0, "version code the mapping belongs to")
	flags.StringVar(&opts.track, "track", "", "release track")
	flags.StringVar(&opts.credentialsFile, "credentials", "", "service account key file (JSON)")
	flags.StringVar(&opts.endpoint, "endpoint", "", "publishing API base URL")
	flags.StringVar(&opts.nativeLibDir, "native-lib-dir", "", "directory scanned for native libraries")
	flags.StringVar(&opts.mappingFile, "mapping", "", "ProGuard/R8 mapping file")
	flags.StringVar(&opts.mappingSHA256, "mapping-sha256", "", "expected SHA-256 of the mapping file")
	flags.StringVar(&opts.mappingSignature, "mapping-signature", "", "detached OpenPGP signature of the mapping file")
	flags.StringVar(&opts.signingKeyring, "keyring", "", "OpenPGP public keyring used to check --mapping-signature")
	flags.StringVar(&opts.timeout, "timeout", "", "overall timeout, e.g. 10m (0 disables)")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "inspect local artifacts without calling the publishing API")

	return cmd
}

// apply overrides cfg with flags given on the command line, then revalidates
func (o *uploadOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	set := func(name string, dst *string, value string) {
		if flags.Changed(name) {
			*dst = value
		}
	}

	set("package", &cfg.PackageName, o.packageName)
	set("track", &cfg.Track, o.track)
	set("credentials", &cfg.CredentialsFile, o.credentialsFile)
	set("endpoint", &cfg.Endpoint, o.endpoint)
	set("native-lib-dir", &cfg.NativeLibDir, o.nativeLibDir)
	set("mapping", &cfg.MappingFile, o.mappingFile)
	set("mapping-sha256", &cfg.MappingSHA256, o.mappingSHA256)
	set("mapping-signature", &cfg.MappingSignature, o.mappingSignature)
	set("keyring", &cfg.SigningKeyring, o.signingKeyring)
	set("timeout", &cfg.TimeoutRaw, o.timeout)

	if flags.Changed("version-code") {
		cfg.VersionCode = o.versionCode
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = o.dryRun
	}

	return cfg.Finalize()
}

func runUpload(ctx context.Context, root *rootOptions, cfg *config.Config) error {
	logger := root.newLogger(cfg)
	//nolint:errcheck // Sync fails on terminals and pipes
	defer logger.Sync()

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	report, err := publish(ctx, cfg, logger)
	if err != nil {
		logger.Error("upload failed", interfaces.F("error", err))
		return err
	}

	return renderReport(root.stdout, root.Output, report)
}

func publish(ctx context.Context, cfg *config.Config, logger interfaces.Logger) (*entities.WorkflowReport, error) {
	var signatures orchestrators.SignatureVerifier
	if cfg.MappingSignature != "" {
		signatures = gateways.NewGPGVerifier(cfg.SigningKeyring)
	}

	release := orchestrators.ReleaseConfig{
		PackageName:      cfg.PackageName,
		VersionCode:      cfg.VersionCode,
		Track:            cfg.Track,
		NativeLibDir:     cfg.NativeLibDir,
		SymbolSuffix:     cfg.SymbolSuffix,
		MappingFile:      cfg.MappingFile,
		MappingSHA256:    cfg.MappingSHA256,
		MappingSignature: cfg.MappingSignature,
	}

	if cfg.DryRun {
		coordinator := orchestrators.NewReleaseTransactionCoordinator(
			nil, gateways.NewArtifactFinder(), gateways.NewChecksumVerifier(), signatures, logger, release)
		return coordinator.Plan(ctx)
	}

	creds, err := credentials.NewServiceAccountProvider(cfg.CredentialsFile, cfg.Scope).Load(ctx)
	if err != nil {
		return nil, err
	}
	logger.Debug("service account loaded", interfaces.F("email", creds.Email))

	publisher := gateways.NewHTTPPlayGateway(creds.Client, cfg.Endpoint)
	coordinator := orchestrators.NewReleaseTransactionCoordinator(
		publisher, gateways.NewArtifactFinder(), gateways.NewChecksumVerifier(), signatures, logger, release)

	report, err := coordinator.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("publish %s (version %d): %w", cfg.PackageName, cfg.VersionCode, err)
	}
	return report, nil
}
