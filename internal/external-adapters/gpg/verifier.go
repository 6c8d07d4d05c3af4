// Package gpg provides detached OpenPGP signature checks for release artifacts.
package gpg

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
)

const armoredSignaturePrefix = "-----BEGIN PGP SIGNATURE-----"

// Verifier checks detached signatures against a local keyring using ProtonMail's go-crypto.
// This is in external-adapters to isolate the external dependency.
type Verifier struct {
	keyring openpgp.EntityList
}

// NewVerifier creates a verifier with an empty keyring
func NewVerifier() *Verifier {
	return &Verifier{
		keyring: make(openpgp.EntityList, 0),
	}
}

// LoadKeyring adds every public key in the file to the keyring.
// Both armored and binary keyrings are accepted.
func (v *Verifier) LoadKeyring(keyringPath string) error {
	//nolint:gosec // G304: keyring path comes from release configuration
	data, err := os.ReadFile(keyringPath)
	if err != nil {
		return fmt.Errorf("failed to open keyring: %w", err)
	}

	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		entities, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to read keyring: %w", err)
		}
	}

	if len(entities) == 0 {
		return fmt.Errorf("no keys found in keyring %s", keyringPath)
	}

	v.keyring = append(v.keyring, entities...)
	return nil
}

// Verify checks a detached signature (armored or binary) over dataPath.
// It returns the primary key fingerprint of the signer.
func (v *Verifier) Verify(dataPath, sigPath string) (string, error) {
	if len(v.keyring) == 0 {
		return "", fmt.Errorf("keyring is empty, call LoadKeyring first")
	}

	//nolint:gosec // G304: signature path comes from release configuration
	sigFile, err := os.Open(sigPath)
	if err != nil {
		return "", fmt.Errorf("failed to open signature file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer sigFile.Close()

	//nolint:gosec // G304: data path comes from release configuration
	dataFile, err := os.Open(dataPath)
	if err != nil {
		return "", fmt.Errorf("failed to open signed file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer dataFile.Close()

	sig := bufio.NewReader(sigFile)
	armored := isArmored(sig)

	var signer *openpgp.Entity
	if armored {
		signer, err = openpgp.CheckArmoredDetachedSignature(v.keyring, dataFile, sig, nil)
	} else {
		signer, err = openpgp.CheckDetachedSignature(v.keyring, dataFile, sig, nil)
	}
	if err != nil {
		return "", fmt.Errorf("signature verification failed: %w", err)
	}

	return fmt.Sprintf("%X", signer.PrimaryKey.Fingerprint), nil
}

// KeyCount returns the number of entities in the keyring
func (v *Verifier) KeyCount() int {
	return len(v.keyring)
}

// isArmored peeks at the start of the signature without consuming it
func isArmored(r *bufio.Reader) bool {
	head, err := r.Peek(len(armoredSignaturePrefix))
	if err != nil && err != io.EOF {
		return false
	}
	return string(head) == armoredSignaturePrefix
}
