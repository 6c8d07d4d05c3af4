package gateways

import (
	"context"
	"fmt"

	"github.com/ochairo/symbolpush/internal/external-adapters/gpg"
)

// gpgVerifier wraps the external GPG adapter for mapping signature checks
type gpgVerifier struct {
	keyringPath string
	verifier    *gpg.Verifier
	loaded      bool
}

// NewGPGVerifier creates a signature verifier backed by the keyring at keyringPath.
// The keyring is read on first use.
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewGPGVerifier(keyringPath string) *gpgVerifier {
	return &gpgVerifier{
		keyringPath: keyringPath,
		verifier:    gpg.NewVerifier(),
	}
}

// VerifyDetachedSignature checks sigPath over filePath and returns the signer fingerprint
func (g *gpgVerifier) VerifyDetachedSignature(ctx context.Context, filePath, sigPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if !g.loaded {
		if err := g.verifier.LoadKeyring(g.keyringPath); err != nil {
			return "", fmt.Errorf("failed to load signing keyring: %w", err)
		}
		g.loaded = true
	}

	fingerprint, err := g.verifier.Verify(filePath, sigPath)
	if err != nil {
		return "", fmt.Errorf("GPG signature verification failed: %w", err)
	}
	return fingerprint, nil
}
