package orchestrators

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adapters "github.com/ochairo/symbolpush/internal/domain-adapters/gateways"
	"github.com/ochairo/symbolpush/internal/domain/entities"
	"github.com/ochairo/symbolpush/internal/domain/interfaces"
	"github.com/ochairo/symbolpush/internal/domain/interfaces/gateways"
	"github.com/ochairo/symbolpush/internal/domain/services"
)

// fakePublisher records calls and rejects a second commit of the same edit
type fakePublisher struct {
	editID    string
	expiry    int64
	createErr error
	uploadErr error
	commitErr error

	calls         []string
	uploaded      []byte
	uploadVersion int64
	uploadType    string
	committed     map[string]bool
}

func newFakePublisher(editID string) *fakePublisher {
	return &fakePublisher{editID: editID, committed: map[string]bool{}}
}

func (f *fakePublisher) CreateEdit(_ context.Context, _ string) (*gateways.AppEdit, error) {
	f.calls = append(f.calls, "create")
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &gateways.AppEdit{ID: f.editID, ExpiryTimeSeconds: f.expiry}, nil
}

func (f *fakePublisher) UploadDeobfuscationFile(_ context.Context, _, _ string, versionCode int64, fileType string, content io.Reader) (*gateways.DeobfuscationUpload, error) {
	f.calls = append(f.calls, "upload")
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}
	f.uploaded = data
	f.uploadVersion = versionCode
	f.uploadType = fileType
	return &gateways.DeobfuscationUpload{SymbolType: fileType}, nil
}

func (f *fakePublisher) CommitEdit(_ context.Context, _, editID string) (*gateways.AppEdit, error) {
	f.calls = append(f.calls, "commit")
	if f.commitErr != nil {
		return nil, f.commitErr
	}
	if f.committed[editID] {
		return nil, entities.NewRemoteServiceError("commit edit", errors.New("edit already committed"))
	}
	f.committed[editID] = true
	return &gateways.AppEdit{ID: editID}, nil
}

// recordingLogger keeps log messages for assertions
type recordingLogger struct {
	messages *[]string
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{messages: &[]string{}}
}

func (r *recordingLogger) record(msg string) { *r.messages = append(*r.messages, msg) }

func (r *recordingLogger) Debug(msg string, _ ...interfaces.Field) { r.record(msg) }
func (r *recordingLogger) Info(msg string, _ ...interfaces.Field)  { r.record(msg) }
func (r *recordingLogger) Warn(msg string, _ ...interfaces.Field)  { r.record(msg) }
func (r *recordingLogger) Error(msg string, _ ...interfaces.Field) { r.record(msg) }
func (r *recordingLogger) With(_ ...interfaces.Field) interfaces.Logger {
	return r
}

type fakeSignatures struct {
	err   error
	calls int
}

func (f *fakeSignatures) VerifyDetachedSignature(_ context.Context, _, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "ABCDEF", nil
}

type fixture struct {
	dir       string
	publisher *fakePublisher
	logger    *recordingLogger
	config    ReleaseConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	return &fixture{
		dir:       dir,
		publisher: newFakePublisher("123"),
		logger:    newRecordingLogger(),
		config: ReleaseConfig{
			PackageName:  "com.example.app",
			VersionCode:  9,
			Track:        "internal",
			NativeLibDir: filepath.Join(dir, "lib"),
			MappingFile:  filepath.Join(dir, "mapping.txt"),
		},
	}
}

func (f *fixture) writeMapping(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(f.config.MappingFile, []byte(content), 0600))
}

func (f *fixture) writeLib(t *testing.T, abi, name string) {
	t.Helper()
	dir := filepath.Join(f.config.NativeLibDir, abi)
	require.NoError(t, os.MkdirAll(dir, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("\x7fELF"), 0600))
}

func (f *fixture) coordinator(signatures SignatureVerifier) *ReleaseTransactionCoordinator {
	c := NewReleaseTransactionCoordinator(
		f.publisher,
		adapters.NewArtifactFinder(),
		adapters.NewChecksumVerifier(),
		signatures,
		f.logger,
		f.config,
	)
	c.newRunID = func() string { return "run-1" }
	c.now = func() time.Time { return time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC) }
	return c
}

// Scenario A: edit created, mapping accepted, commit succeeds
func TestRun_MappingUploadedAndCommitted(t *testing.T) {
	f := newFixture(t)
	f.writeMapping(t, "com.example.Foo -> a:\n")
	f.writeLib(t, "arm64-v8a", "libnative.so")

	report, err := f.coordinator(nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"create", "upload", "commit"}, f.publisher.calls)
	assert.Equal(t, "com.example.Foo -> a:\n", string(f.publisher.uploaded))
	assert.Equal(t, int64(9), f.publisher.uploadVersion)
	assert.Equal(t, "proguard", f.publisher.uploadType)

	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, "123", report.EditID)
	require.NotNil(t, report.Mapping)
	assert.False(t, report.Mapping.Skipped)
	assert.Equal(t, entities.DeobfuscationProguard, report.Mapping.SymbolType)
	assert.Len(t, report.Mapping.SHA256, 64)
	require.NotNil(t, report.Commit)
	assert.Equal(t, "123", report.Commit.EditID)
	require.Len(t, report.Symbols, 1)
	assert.Equal(t, "libnative.so", report.Symbols[0].Name)
	assert.Equal(t, int64(4), report.Symbols[0].Size)

	assert.Contains(t, *f.logger.messages, "native symbol file found, not uploaded")
	assert.Contains(t, *f.logger.messages, "release artifacts published")
}

// Scenario B: mapping missing, upload skipped, commit still happens
func TestRun_MissingMappingSkipped(t *testing.T) {
	f := newFixture(t)

	report, err := f.coordinator(nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"create", "commit"}, f.publisher.calls)
	require.NotNil(t, report.Mapping)
	assert.True(t, report.Mapping.Skipped)
	assert.NotNil(t, report.Commit)
	assert.Empty(t, report.Symbols, "missing native dir yields no symbols")
	assert.Contains(t, *f.logger.messages, "mapping file not found, skipping upload")
}

// Scenario C: authentication failure aborts before any upload or commit
func TestRun_AuthenticationFailure(t *testing.T) {
	f := newFixture(t)
	f.writeMapping(t, "mapping")
	f.publisher.createErr = entities.NewAuthenticationError("create edit", errors.New("status 401"))

	report, err := f.coordinator(nil).Run(context.Background())

	assert.ErrorIs(t, err, entities.ErrAuthentication)
	assert.Equal(t, []string{"create"}, f.publisher.calls)
	assert.Empty(t, report.EditID)
	assert.Nil(t, report.Commit)
}

// Scenario D: upload rejected, commit never attempted, edit left open
func TestRun_UploadRejected(t *testing.T) {
	f := newFixture(t)
	f.writeMapping(t, "mapping")
	f.publisher.uploadErr = entities.NewArtifactUploadError("upload deobfuscation file", errors.New("status 400"))

	report, err := f.coordinator(nil).Run(context.Background())

	assert.ErrorIs(t, err, entities.ErrArtifactUpload)
	assert.Equal(t, []string{"create", "upload"}, f.publisher.calls)
	assert.Equal(t, "123", report.EditID)
	assert.Nil(t, report.Commit)
	assert.Contains(t, *f.logger.messages, "edit left uncommitted")
}

func TestRun_CommitRejected(t *testing.T) {
	f := newFixture(t)
	f.publisher.commitErr = errors.New("connection reset")

	_, err := f.coordinator(nil).Run(context.Background())

	assert.ErrorIs(t, err, entities.ErrRemoteService, "unclassified gateway errors become remote service errors")
	assert.Equal(t, []string{"create", "commit"}, f.publisher.calls)
}

func TestRun_UploadErrorWithoutKindIsArtifactUpload(t *testing.T) {
	f := newFixture(t)
	f.writeMapping(t, "mapping")
	f.publisher.uploadErr = errors.New("broken pipe")

	_, err := f.coordinator(nil).Run(context.Background())
	assert.ErrorIs(t, err, entities.ErrArtifactUpload)
}

func TestBeginEdit_EmptyEditID(t *testing.T) {
	f := newFixture(t)
	f.publisher.editID = ""

	_, err := f.coordinator(nil).BeginEdit(context.Background(), "com.example.app")
	assert.ErrorIs(t, err, entities.ErrRemoteService)
}

func TestBeginEdit_RecordsExpiry(t *testing.T) {
	f := newFixture(t)
	f.publisher.expiry = 1700000000

	tx, err := f.coordinator(nil).BeginEdit(context.Background(), "com.example.app")
	require.NoError(t, err)

	assert.Equal(t, entities.EditOpen, tx.State)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), tx.ExpiresAt)
}

func TestCommit_BeforeBegin(t *testing.T) {
	f := newFixture(t)

	_, err := f.coordinator(nil).Commit(context.Background(), nil)

	assert.ErrorIs(t, err, services.ErrInvalidTransition)
	assert.Empty(t, f.publisher.calls)
}

func TestCommit_Twice(t *testing.T) {
	f := newFixture(t)
	c := f.coordinator(nil)
	ctx := context.Background()

	tx, err := c.BeginEdit(ctx, "com.example.app")
	require.NoError(t, err)

	_, err = c.Commit(ctx, tx)
	require.NoError(t, err)

	_, err = c.Commit(ctx, tx)
	assert.ErrorIs(t, err, services.ErrInvalidTransition)
	assert.Equal(t, []string{"create", "commit"}, f.publisher.calls, "second commit is stopped locally")

	// A stale copy of the same edit gets past local checks and is rejected remotely
	stale := &entities.EditTransaction{EditID: tx.EditID, PackageName: tx.PackageName, State: entities.EditOpen}
	_, err = c.Commit(ctx, stale)
	assert.ErrorIs(t, err, entities.ErrRemoteService)
	assert.Equal(t, entities.EditOpen, stale.State)
}

func TestCommit_ExpiredEditStillAttempted(t *testing.T) {
	f := newFixture(t)
	c := f.coordinator(nil)

	tx := &entities.EditTransaction{
		EditID:      "123",
		PackageName: "com.example.app",
		State:       entities.EditOpen,
		ExpiresAt:   time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	_, err := c.Commit(context.Background(), tx)

	require.NoError(t, err)
	assert.Contains(t, *f.logger.messages, "edit may have expired on the service")
}

func TestAttachMapping_AfterCommit(t *testing.T) {
	f := newFixture(t)
	f.writeMapping(t, "mapping")
	c := f.coordinator(nil)

	tx := &entities.EditTransaction{EditID: "123", State: entities.EditCommitted}
	_, err := c.AttachMapping(context.Background(), tx, f.config.MappingFile)

	assert.ErrorIs(t, err, services.ErrInvalidTransition)
	assert.Empty(t, f.publisher.calls)
}

func TestAttachMapping_Directory(t *testing.T) {
	f := newFixture(t)
	c := f.coordinator(nil)

	tx := &entities.EditTransaction{EditID: "123", State: entities.EditOpen}
	_, err := c.AttachMapping(context.Background(), tx, f.dir)

	assert.ErrorIs(t, err, entities.ErrArtifactUpload)
}

func TestAttachMapping_ChecksumMismatch(t *testing.T) {
	f := newFixture(t)
	f.writeMapping(t, "mapping")
	f.config.MappingSHA256 = "0000000000000000000000000000000000000000000000000000000000000000"

	_, err := f.coordinator(nil).Run(context.Background())

	assert.ErrorIs(t, err, entities.ErrArtifactUpload)
	assert.ErrorContains(t, err, "checksum mismatch")
	assert.Equal(t, []string{"create"}, f.publisher.calls)
}

func TestAttachMapping_SignatureVerified(t *testing.T) {
	f := newFixture(t)
	f.writeMapping(t, "mapping")
	f.config.MappingSignature = f.config.MappingFile + ".asc"
	signatures := &fakeSignatures{}

	report, err := f.coordinator(signatures).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, signatures.calls)
	assert.True(t, report.Mapping.Signed)
}

func TestAttachMapping_SignatureRejected(t *testing.T) {
	f := newFixture(t)
	f.writeMapping(t, "mapping")
	f.config.MappingSignature = f.config.MappingFile + ".asc"
	signatures := &fakeSignatures{err: errors.New("signature verification failed")}

	_, err := f.coordinator(signatures).Run(context.Background())

	assert.ErrorIs(t, err, entities.ErrArtifactUpload)
	assert.Equal(t, []string{"create"}, f.publisher.calls)
}

func TestAttachMapping_SignatureWithoutVerifier(t *testing.T) {
	f := newFixture(t)
	f.writeMapping(t, "mapping")
	f.config.MappingSignature = f.config.MappingFile + ".asc"

	_, err := f.coordinator(nil).Run(context.Background())
	assert.ErrorIs(t, err, entities.ErrArtifactUpload)
}

func TestDiscoverArtifacts_MissingDir(t *testing.T) {
	f := newFixture(t)

	seq := f.coordinator(nil).DiscoverArtifacts(filepath.Join(f.dir, "missing"), nil)

	count := 0
	for range seq.All() {
		count++
	}
	assert.Zero(t, count)
	assert.NoError(t, seq.Err())
}

func TestRun_SymbolSuffixFilter(t *testing.T) {
	f := newFixture(t)
	f.writeLib(t, "arm64-v8a", "libone.so")
	f.writeLib(t, "x86_64", "libtwo.so")
	f.writeLib(t, "x86_64", "notes.txt")

	report, err := f.coordinator(nil).Run(context.Background())
	require.NoError(t, err)

	names := []string{}
	for _, s := range report.Symbols {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"libone.so", "libtwo.so"}, names)
}

func TestPlan_NoRemoteCalls(t *testing.T) {
	f := newFixture(t)
	f.writeMapping(t, "mapping")
	f.writeLib(t, "arm64-v8a", "libnative.so")

	report, err := f.coordinator(nil).Plan(context.Background())
	require.NoError(t, err)

	assert.Empty(t, f.publisher.calls)
	assert.True(t, report.DryRun)
	assert.Len(t, report.Symbols, 1)
	require.NotNil(t, report.Mapping)
	assert.False(t, report.Mapping.Skipped)
	assert.Equal(t, int64(7), report.Mapping.Size)
	assert.Nil(t, report.Commit)
}
