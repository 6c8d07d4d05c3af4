package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/ochairo/symbolpush/internal/domain/entities"
	"github.com/ochairo/symbolpush/internal/domain/interfaces/gateways"
)

const (
	// DefaultPublisherEndpoint is the Android Publisher API host
	DefaultPublisherEndpoint = "https://androidpublisher.googleapis.com"

	// Increased for large mapping uploads
	defaultRequestTimeout = 5 * time.Minute
)

// HTTPPlayGateway implements PublisherGateway against the Android Publisher v3 REST API
type HTTPPlayGateway struct {
	client    *http.Client
	endpoint  string
	userAgent string
}

// NewHTTPPlayGateway creates a gateway. The client is expected to attach credentials
// (see the credentials adapter); endpoint defaults to DefaultPublisherEndpoint.
func NewHTTPPlayGateway(client *http.Client, endpoint string) *HTTPPlayGateway {
	if client == nil {
		client = &http.Client{}
	}
	if client.Timeout == 0 {
		client.Timeout = defaultRequestTimeout
	}
	if endpoint == "" {
		endpoint = DefaultPublisherEndpoint
	}

	return &HTTPPlayGateway{
		client:    client,
		endpoint:  strings.TrimRight(endpoint, "/"),
		userAgent: "symbolpush/1.0",
	}
}

// appEdit is the API representation of an edit
type appEdit struct {
	ID                string `json:"id"`
	ExpiryTimeSeconds string `json:"expiryTimeSeconds,omitempty"`
}

// deobfuscationFilesUploadResponse is the API response to a mapping upload
type deobfuscationFilesUploadResponse struct {
	DeobfuscationFile struct {
		SymbolType string `json:"symbolType"`
	} `json:"deobfuscationFile"`
}

// apiError is the Google API error envelope
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// CreateEdit opens a new edit for the package
func (g *HTTPPlayGateway) CreateEdit(ctx context.Context, packageName string) (*gateways.AppEdit, error) {
	const op = "create edit"

	endpoint := fmt.Sprintf("%s/androidpublisher/v3/applications/%s/edits", g.endpoint, url.PathEscape(packageName))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, entities.NewRemoteServiceError(op, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	var result appEdit
	if err := g.do(req, http.StatusOK, &result); err != nil {
		return nil, classify(op, err, entities.NewRemoteServiceError)
	}

	return toAppEdit(result), nil
}

// UploadDeobfuscationFile uploads a mapping file to an open edit
func (g *HTTPPlayGateway) UploadDeobfuscationFile(ctx context.Context, packageName, editID string, versionCode int64, fileType string, content io.Reader) (*gateways.DeobfuscationUpload, error) {
	const op = "upload deobfuscation file"

	endpoint := fmt.Sprintf("%s/upload/androidpublisher/v3/applications/%s/edits/%s/apks/%d/deobfuscationFiles/%s?uploadType=media",
		g.endpoint, url.PathEscape(packageName), url.PathEscape(editID), versionCode, url.PathEscape(fileType))

	// Read content into buffer to get size
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, content); err != nil {
		return nil, entities.NewArtifactUploadError(op, fmt.Errorf("failed to read content: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, entities.NewArtifactUploadError(op, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = int64(buf.Len())

	var result deobfuscationFilesUploadResponse
	if err := g.do(req, http.StatusOK, &result); err != nil {
		return nil, classify(op, err, entities.NewArtifactUploadError)
	}

	return &gateways.DeobfuscationUpload{SymbolType: result.DeobfuscationFile.SymbolType}, nil
}

// CommitEdit finalizes the edit
func (g *HTTPPlayGateway) CommitEdit(ctx context.Context, packageName, editID string) (*gateways.AppEdit, error) {
	const op = "commit edit"

	endpoint := fmt.Sprintf("%s/androidpublisher/v3/applications/%s/edits/%s:commit",
		g.endpoint, url.PathEscape(packageName), url.PathEscape(editID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, entities.NewRemoteServiceError(op, fmt.Errorf("failed to create request: %w", err))
	}

	var result appEdit
	if err := g.do(req, http.StatusOK, &result); err != nil {
		return nil, classify(op, err, entities.NewRemoteServiceError)
	}

	return toAppEdit(result), nil
}

// statusError is a non-success response from the API
type statusError struct {
	StatusCode int
	Message    string
}

func (e *statusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// do sends the request and decodes a successful response into out
func (g *HTTPPlayGateway) do(req *http.Request, want int, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if resp.StatusCode != want {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return &statusError{StatusCode: resp.StatusCode, Message: "failed to read response"}
		}
		return &statusError{StatusCode: resp.StatusCode, Message: errorMessage(bodyBytes)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// classify maps transport and status failures onto the workflow error kinds.
// Credential problems win over the operation's default kind.
func classify(op string, err error, fallback func(string, error) *entities.PublishError) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return entities.NewAuthenticationError(op, err)
	}

	var se *statusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return entities.NewAuthenticationError(op, err)
		}
	}

	var pe *entities.PublishError
	if errors.As(err, &pe) {
		return err
	}

	return fallback(op, err)
}

// errorMessage extracts the message from a Google API error body, falling back to the raw body
func errorMessage(body []byte) string {
	var envelope apiError
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		if envelope.Error.Status != "" {
			return fmt.Sprintf("%s (%s)", envelope.Error.Message, envelope.Error.Status)
		}
		return envelope.Error.Message
	}
	return strings.TrimSpace(string(body))
}

func toAppEdit(e appEdit) *gateways.AppEdit {
	edit := &gateways.AppEdit{ID: e.ID}
	if e.ExpiryTimeSeconds != "" {
		if secs, err := strconv.ParseInt(e.ExpiryTimeSeconds, 10, 64); err == nil {
			edit.ExpiryTimeSeconds = secs
		}
	}
	return edit
}
