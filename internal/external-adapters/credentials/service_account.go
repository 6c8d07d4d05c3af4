// Package credentials turns a service-account key file into an authenticated HTTP client.
package credentials

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2/google"

	"github.com/ochairo/symbolpush/internal/domain/entities"
)

// AndroidPublisherScope is the OAuth2 scope required by the publishing API
const AndroidPublisherScope = "https://www.googleapis.com/auth/androidpublisher"

// Credentials is an authenticated client plus the identity it acts as
type Credentials struct {
	Email  string
	Client *http.Client
}

// ServiceAccountProvider loads a JSON service-account key scoped to the given scopes
type ServiceAccountProvider struct {
	keyFile string
	scopes  []string
}

// NewServiceAccountProvider creates a provider. With no scopes, AndroidPublisherScope is used.
func NewServiceAccountProvider(keyFile string, scopes ...string) *ServiceAccountProvider {
	if len(scopes) == 0 {
		scopes = []string{AndroidPublisherScope}
	}
	return &ServiceAccountProvider{keyFile: keyFile, scopes: scopes}
}

// Load reads and parses the key file. Tokens are fetched lazily on the first request
// made with the returned client; ctx governs those token fetches.
func (p *ServiceAccountProvider) Load(ctx context.Context) (*Credentials, error) {
	const op = "load credentials"

	//nolint:gosec // G304: key file path comes from release configuration
	data, err := os.ReadFile(p.keyFile)
	if err != nil {
		return nil, entities.NewAuthenticationError(op, fmt.Errorf("failed to read service account key: %w", err))
	}

	cfg, err := google.JWTConfigFromJSON(data, p.scopes...)
	if err != nil {
		return nil, entities.NewAuthenticationError(op, fmt.Errorf("failed to parse service account key: %w", err))
	}

	return &Credentials{
		Email:  cfg.Email,
		Client: cfg.Client(ctx),
	}, nil
}
