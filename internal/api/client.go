// Package api is a thin typed HTTP+JSON client for the K-Cube sync server,
// classifying every non-2xx response into the error kinds spec §4.5 names.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kcube/kcube/internal/kcube"
)

// DefaultTimeout is the finite per-request timeout spec §5 calls for
// (~15s), past which a request is classified as a transient network error.
const DefaultTimeout = 15 * time.Second

// Client is a bearer-token-authenticated HTTP client for one remote.
type Client struct {
	baseURL    string
	authURL    string
	apiToken   string
	httpClient *http.Client
}

// New constructs a Client for remoteURL (no trailing slash), optionally
// carrying a bearer token for already-authenticated calls.
func New(remoteURL, apiToken string) (*Client, error) {
	if remoteURL == "" {
		return nil, fmt.Errorf("remote url cannot be empty")
	}
	trimmed := strings.TrimRight(remoteURL, "/")
	return &Client{
		baseURL:  trimmed + "/api/v1",
		authURL:  trimmed,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}, nil
}

// WithToken returns a copy of the client authenticated with token.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.apiToken = token
	return &clone
}

func (c *Client) request(ctx context.Context, method, path string, body any, out any) error {
	url := c.baseURL + "/" + strings.TrimLeft(path, "/")
	return c.doRequest(ctx, method, url, body, out)
}

func (c *Client) doRequest(ctx context.Context, method, fullURL string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return kcube.NewError(kcube.ErrNetwork, "building request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "kcube-cli/0.1.0")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return kcube.NewError(kcube.ErrNetwork, fullURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return kcube.NewError(kcube.ErrNetwork, "reading response body", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return kcube.NewError(kcube.ErrAuth, string(respBody), nil)
	case resp.StatusCode == http.StatusNotFound:
		return kcube.NewError(kcube.ErrNotFound, string(respBody), nil)
	case resp.StatusCode == http.StatusConflict:
		return kcube.NewError(kcube.ErrConflict, string(respBody), nil)
	case resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return kcube.NewError(kcube.ErrServer, fmt.Sprintf("status %d: %s", resp.StatusCode, string(respBody)), nil)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return kcube.NewError(kcube.ErrServer, "decoding response body", err)
	}
	return nil
}

// TokenResponse is returned by Login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Register creates a server account.
func (c *Client) Register(ctx context.Context, email, password string) error {
	return c.doRequest(ctx, http.MethodPost, c.authURL+"/auth/register",
		map[string]string{"email": email, "password": password}, nil)
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp TokenResponse
	err := c.doRequest(ctx, http.MethodPost, c.authURL+"/auth/token",
		map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", kcube.NewError(kcube.ErrAuth, "login succeeded but no access_token returned", nil)
	}
	return resp.AccessToken, nil
}

// Vault is a server-side vault record.
type Vault struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateVault creates a vault, optionally with a client-chosen id (409 if
// the id collides).
func (c *Client) CreateVault(ctx context.Context, name, id string) (*Vault, error) {
	body := map[string]string{"name": name}
	if id != "" {
		body["id"] = id
	}
	var v Vault
	if err := c.request(ctx, http.MethodPost, "vaults", body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVaults returns every vault the current token can see.
func (c *Client) ListVaults(ctx context.Context) ([]Vault, error) {
	var vaults []Vault
	if err := c.request(ctx, http.MethodGet, "vaults", nil, &vaults); err != nil {
		return nil, err
	}
	return vaults, nil
}

// GetVaultDetails fetches one vault, used by the worker to confirm the
// token is authorized for vaultID at validation time.
func (c *Client) GetVaultDetails(ctx context.Context, vaultID string) (*Vault, error) {
	var v Vault
	if err := c.request(ctx, http.MethodGet, "vaults/"+url.PathEscape(vaultID), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// DeleteVault deletes a vault server-side. The server replies 204 No
// Content, which doRequest tolerates despite its general JSON-decoding
// policy.
func (c *Client) DeleteVault(ctx context.Context, vaultID string) error {
	return c.request(ctx, http.MethodDelete, "vaults/"+url.PathEscape(vaultID), nil, nil)
}

// SyncCheckResult is the response to CheckSyncState.
type SyncCheckResult struct {
	VersionsToUpload   []string `json:"versions_to_upload"`
	VersionsToDownload []string `json:"versions_to_download"`
}

// CheckSyncState sends local version hashes and gets back the
// reconciliation set in each direction.
func (c *Client) CheckSyncState(ctx context.Context, vaultID string, localVersionHashes []string) (*SyncCheckResult, error) {
	var result SyncCheckResult
	err := c.request(ctx, http.MethodPost, fmt.Sprintf("vaults/%s/sync/check", url.PathEscape(vaultID)),
		map[string]any{"local_version_hashes": localVersionHashes}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// BlobPayload is a blob as carried over the wire: its hash and the
// base64-encoded zlib-compressed bytes whose hash it is.
type BlobPayload struct {
	Hash       string `json:"hash"`
	ContentB64 string `json:"content_b64"`
}

// UploadBlobs sends blobs to the server; the server is idempotent on
// duplicate hashes, so over-sending is acceptable.
func (c *Client) UploadBlobs(ctx context.Context, vaultID string, blobs []BlobPayload) error {
	return c.request(ctx, http.MethodPost, fmt.Sprintf("vaults/%s/sync/blobs", url.PathEscape(vaultID)),
		map[string]any{"blobs": blobs}, nil)
}

// VersionPayload is a version as carried over the wire, including its
// manifest.
type VersionPayload struct {
	Hash      string            `json:"hash"`
	Timestamp int64             `json:"timestamp"`
	Message   MessagePayload    `json:"message"`
	Manifest  map[string]string `json:"manifest"`
}

// MessagePayload mirrors index.Message's wire shape so internal/api has no
// dependency on internal/index.
type MessagePayload struct {
	Summary        string   `json:"summary"`
	Type           string   `json:"type,omitempty"`
	Related        []string `json:"related,omitempty"`
	RevertedCommit string   `json:"reverted_commit,omitempty"`
}

// UploadVersions sends version records (including manifests); idempotent
// server-side.
func (c *Client) UploadVersions(ctx context.Context, vaultID string, versions []VersionPayload) error {
	return c.request(ctx, http.MethodPost, fmt.Sprintf("vaults/%s/sync/versions", url.PathEscape(vaultID)),
		map[string]any{"versions": versions}, nil)
}

// DownloadBlobs fetches blobs by hash.
func (c *Client) DownloadBlobs(ctx context.Context, vaultID string, hashes []string) ([]BlobPayload, error) {
	var resp struct {
		Blobs []BlobPayload `json:"blobs"`
	}
	q := url.Values{}
	for _, h := range hashes {
		q.Add("h", h)
	}
	fullURL := fmt.Sprintf("%s/vaults/%s/sync/blobs?%s", c.baseURL, url.PathEscape(vaultID), q.Encode())
	if err := c.doRequest(ctx, http.MethodGet, fullURL, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Blobs, nil
}

// DownloadVersions fetches version records by hash.
func (c *Client) DownloadVersions(ctx context.Context, vaultID string, hashes []string) ([]VersionPayload, error) {
	var resp struct {
		Versions []VersionPayload `json:"versions"`
	}
	q := url.Values{}
	for _, h := range hashes {
		q.Add("h", h)
	}
	fullURL := fmt.Sprintf("%s/vaults/%s/sync/versions?%s", c.baseURL, url.PathEscape(vaultID), q.Encode())
	if err := c.doRequest(ctx, http.MethodGet, fullURL, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Versions, nil
}
