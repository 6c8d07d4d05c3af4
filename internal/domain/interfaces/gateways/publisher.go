// Package gateways defines interfaces for external service adapters.
package gateways

import (
	"context"
	"io"
)

// AppEdit is the service's view of an edit
type AppEdit struct {
	ID                string
	ExpiryTimeSeconds int64
}

// DeobfuscationUpload is the service's acknowledgement of a mapping upload
type DeobfuscationUpload struct {
	SymbolType string
}

// PublisherGateway defines the remote publishing calls used by a release
type PublisherGateway interface {
	// CreateEdit opens a new edit for the package
	CreateEdit(ctx context.Context, packageName string) (*AppEdit, error)

	// UploadDeobfuscationFile attaches a mapping file to an open edit for one version code
	UploadDeobfuscationFile(ctx context.Context, packageName, editID string, versionCode int64, fileType string, content io.Reader) (*DeobfuscationUpload, error)

	// CommitEdit finalizes the edit
	CommitEdit(ctx context.Context, packageName, editID string) (*AppEdit, error)
}
