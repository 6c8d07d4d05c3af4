// Package orchestrators coordinates complex workflows across multiple domain services.
package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ochairo/symbolpush/internal/domain/entities"
	"github.com/ochairo/symbolpush/internal/domain/interfaces"
	"github.com/ochairo/symbolpush/internal/domain/interfaces/gateways"
	"github.com/ochairo/symbolpush/internal/domain/services"
)

// Digester hashes local artifacts
type Digester interface {
	Digest(ctx context.Context, filePath string) (string, int64, error)
	VerifyChecksum(ctx context.Context, filePath, expectedSum string) error
}

// SignatureVerifier checks a detached signature and returns the signer fingerprint
type SignatureVerifier interface {
	VerifyDetachedSignature(ctx context.Context, filePath, sigPath string) (string, error)
}

// ReleaseConfig holds the release being published
type ReleaseConfig struct {
	PackageName      string
	VersionCode      int64
	Track            string
	NativeLibDir     string
	SymbolSuffix     string
	MappingFile      string
	MappingSHA256    string
	MappingSignature string
}

// ReleaseTransactionCoordinator drives one edit from creation to commit
type ReleaseTransactionCoordinator struct {
	publisher    gateways.PublisherGateway
	finder       gateways.ArtifactFinder
	digester     Digester
	signatures   SignatureVerifier
	transactions *services.TransactionService
	logger       interfaces.Logger
	config       ReleaseConfig
	newRunID     func() string
	now          func() time.Time
}

// NewReleaseTransactionCoordinator creates a coordinator. signatures may be nil when
// no mapping signature is configured; logger may be nil.
func NewReleaseTransactionCoordinator(
	publisher gateways.PublisherGateway,
	finder gateways.ArtifactFinder,
	digester Digester,
	signatures SignatureVerifier,
	logger interfaces.Logger,
	config ReleaseConfig,
) *ReleaseTransactionCoordinator {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	if config.SymbolSuffix == "" {
		config.SymbolSuffix = ".so"
	}

	return &ReleaseTransactionCoordinator{
		publisher:    publisher,
		finder:       finder,
		digester:     digester,
		signatures:   signatures,
		transactions: services.NewTransactionService(),
		logger:       logger,
		config:       config,
		newRunID:     uuid.NewString,
		now:          time.Now,
	}
}

// BeginEdit opens a new edit for packageName
func (c *ReleaseTransactionCoordinator) BeginEdit(ctx context.Context, packageName string) (*entities.EditTransaction, error) {
	const op = "create edit"

	edit, err := c.publisher.CreateEdit(ctx, packageName)
	if err != nil {
		return nil, withKind(op, err, entities.NewRemoteServiceError)
	}

	tx, err := c.transactions.Open(edit.ID, packageName, c.config.VersionCode, edit.ExpiryTimeSeconds)
	if err != nil {
		return nil, entities.NewRemoteServiceError(op, err)
	}

	c.logger.Info("edit created", interfaces.F("edit_id", tx.EditID), interfaces.F("package", packageName))
	return tx, nil
}

// DiscoverArtifacts lazily lists files under rootDir accepted by match.
// A missing rootDir gives an empty sequence.
func (c *ReleaseTransactionCoordinator) DiscoverArtifacts(rootDir string, match gateways.FilePredicate) gateways.ArtifactSequence {
	return c.finder.Discover(rootDir, match)
}

// AttachMapping uploads mappingPath as a ProGuard mapping for the edit's version code.
// A missing file is skipped and reported through AttachResult.Skipped.
func (c *ReleaseTransactionCoordinator) AttachMapping(ctx context.Context, tx *entities.EditTransaction, mappingPath string) (*entities.AttachResult, error) {
	const op = "upload mapping"

	if err := c.transactions.CanApply(tx, services.TransitionAttach); err != nil {
		return nil, err
	}

	result, err := c.inspectMapping(ctx, mappingPath)
	if err != nil || result.Skipped {
		return result, err
	}

	//nolint:gosec // G304: mapping path comes from release configuration
	f, err := os.Open(mappingPath)
	if err != nil {
		return nil, entities.NewArtifactUploadError(op, fmt.Errorf("failed to open mapping: %w", err))
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	c.logger.Info("uploading mapping file",
		interfaces.F("edit_id", tx.EditID),
		interfaces.F("version_code", tx.VersionCode),
		interfaces.F("path", mappingPath),
		interfaces.F("size", result.Size))

	upload, err := c.publisher.UploadDeobfuscationFile(ctx, tx.PackageName, tx.EditID, tx.VersionCode, string(entities.DeobfuscationProguard), f)
	if err != nil {
		return nil, withKind(op, err, entities.NewArtifactUploadError)
	}

	if err := c.transactions.Apply(tx, services.TransitionAttach); err != nil {
		return nil, err
	}

	result.SymbolType = entities.DeobfuscationFileType(upload.SymbolType)
	c.logger.Info("mapping file uploaded", interfaces.F("edit_id", tx.EditID), interfaces.F("symbol_type", upload.SymbolType))
	return result, nil
}

// inspectMapping checks presence, signature and digest of the mapping without uploading it
func (c *ReleaseTransactionCoordinator) inspectMapping(ctx context.Context, mappingPath string) (*entities.AttachResult, error) {
	const op = "inspect mapping"

	result := &entities.AttachResult{Path: mappingPath, SymbolType: entities.DeobfuscationProguard}

	info, err := os.Stat(mappingPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c.logger.Info("mapping file not found, skipping upload", interfaces.F("path", mappingPath))
		result.Skipped = true
		return result, nil
	case err != nil:
		return nil, entities.NewArtifactUploadError(op, err)
	case info.IsDir():
		return nil, entities.NewArtifactUploadError(op, fmt.Errorf("%s is a directory", mappingPath))
	}

	if c.config.MappingSignature != "" {
		if c.signatures == nil {
			return nil, entities.NewArtifactUploadError(op, fmt.Errorf("mapping signature configured without a verifier"))
		}
		signer, err := c.signatures.VerifyDetachedSignature(ctx, mappingPath, c.config.MappingSignature)
		if err != nil {
			return nil, entities.NewArtifactUploadError(op, err)
		}
		result.Signed = true
		c.logger.Info("mapping signature verified", interfaces.F("signer", signer))
	}

	if c.config.MappingSHA256 != "" {
		if err := c.digester.VerifyChecksum(ctx, mappingPath, c.config.MappingSHA256); err != nil {
			return nil, entities.NewArtifactUploadError(op, err)
		}
	}

	sum, size, err := c.digester.Digest(ctx, mappingPath)
	if err != nil {
		return nil, entities.NewArtifactUploadError(op, err)
	}
	result.SHA256 = sum
	result.Size = size

	return result, nil
}

// Commit finalizes the edit. A committed edit cannot be committed again.
func (c *ReleaseTransactionCoordinator) Commit(ctx context.Context, tx *entities.EditTransaction) (*entities.CommitResult, error) {
	const op = "commit edit"

	if err := c.transactions.CanApply(tx, services.TransitionCommit); err != nil {
		return nil, err
	}

	if c.transactions.IsExpired(tx) {
		c.logger.Warn("edit may have expired on the service", interfaces.F("edit_id", tx.EditID), interfaces.F("expired_at", tx.ExpiresAt))
	}

	if _, err := c.publisher.CommitEdit(ctx, tx.PackageName, tx.EditID); err != nil {
		return nil, withKind(op, err, entities.NewRemoteServiceError)
	}

	if err := c.transactions.Apply(tx, services.TransitionCommit); err != nil {
		return nil, err
	}

	c.logger.Info("edit committed", interfaces.F("edit_id", tx.EditID))
	return &entities.CommitResult{
		EditID:      tx.EditID,
		PackageName: tx.PackageName,
		CommittedAt: c.now().UTC(),
	}, nil
}

// Run executes the whole release: begin, report native symbols, attach mapping, commit.
// It stops at the first failure; an edit opened before the failure is left uncommitted.
func (c *ReleaseTransactionCoordinator) Run(ctx context.Context) (*entities.WorkflowReport, error) {
	report := c.newReport(false)
	base := c.logger
	c.logger = base.With(interfaces.F("run_id", report.RunID))
	defer func() { c.logger = base }()

	tx, err := c.BeginEdit(ctx, c.config.PackageName)
	if err != nil {
		return report, err
	}
	report.EditID = tx.EditID

	report.Symbols = c.reportSymbols()

	mapping, err := c.AttachMapping(ctx, tx, c.config.MappingFile)
	if err != nil {
		c.abandon(tx)
		return report, err
	}
	report.Mapping = mapping

	commit, err := c.Commit(ctx, tx)
	if err != nil {
		c.abandon(tx)
		return report, err
	}
	report.Commit = commit

	c.logger.Info("release artifacts published",
		interfaces.F("package", c.config.PackageName),
		interfaces.F("version_code", c.config.VersionCode),
		interfaces.F("track", c.config.Track))
	return report, nil
}

// Plan performs the local half of Run without calling the publishing service
func (c *ReleaseTransactionCoordinator) Plan(ctx context.Context) (*entities.WorkflowReport, error) {
	report := c.newReport(true)
	base := c.logger
	c.logger = base.With(interfaces.F("run_id", report.RunID), interfaces.F("dry_run", true))
	defer func() { c.logger = base }()

	report.Symbols = c.reportSymbols()

	mapping, err := c.inspectMapping(ctx, c.config.MappingFile)
	if err != nil {
		return report, err
	}
	report.Mapping = mapping
	return report, nil
}

func (c *ReleaseTransactionCoordinator) newReport(dryRun bool) *entities.WorkflowReport {
	return &entities.WorkflowReport{
		RunID:       c.newRunID(),
		PackageName: c.config.PackageName,
		VersionCode: c.config.VersionCode,
		Track:       c.config.Track,
		DryRun:      dryRun,
		Symbols:     []entities.SymbolArtifact{},
	}
}

// reportSymbols logs every native library found. They are never uploaded: the
// publishing API has no endpoint for native debug symbols.
func (c *ReleaseTransactionCoordinator) reportSymbols() []entities.SymbolArtifact {
	root := c.config.NativeLibDir
	if root == "" {
		return []entities.SymbolArtifact{}
	}

	seq := c.DiscoverArtifacts(root, hasSuffix(c.config.SymbolSuffix))

	symbols := []entities.SymbolArtifact{}
	for path := range seq.All() {
		symbol := entities.SymbolArtifact{Path: path, Name: filepath.Base(path)}
		if info, err := os.Stat(path); err == nil {
			symbol.Size = info.Size()
		}
		symbols = append(symbols, symbol)
		c.logger.Info("native symbol file found, not uploaded", interfaces.F("file", symbol.Name), interfaces.F("path", path))
	}

	if err := seq.Err(); err != nil {
		c.logger.Warn("native library scan incomplete", interfaces.F("dir", root), interfaces.F("error", err))
	}
	return symbols
}

func (c *ReleaseTransactionCoordinator) abandon(tx *entities.EditTransaction) {
	c.logger.Warn("edit left uncommitted", interfaces.F("edit_id", tx.EditID), interfaces.F("state", tx.State))
}

func hasSuffix(suffix string) gateways.FilePredicate {
	return func(_ string, entry fs.DirEntry) bool {
		return strings.HasSuffix(entry.Name(), suffix)
	}
}

// withKind keeps an existing error kind or assigns the fallback
func withKind(op string, err error, fallback func(string, error) *entities.PublishError) error {
	if _, ok := entities.KindOf(err); ok {
		return err
	}
	return fallback(op, err)
}
