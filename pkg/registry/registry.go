// Package registry talks to the Fin package registry HTTP API.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/finn-lang/finn/pkg/finnerr"
)

// Timeout bounds every registry request. It is the only cancellation the
// lookup has besides the caller's context.
const Timeout = 10 * time.Second

// UserAgent is sent with every request.
var UserAgent = "finn/dev"

// Package is the registry's description of a package.
type Package struct {
	Name          string `json:"name"`
	RepoURL       string `json:"repo_url"`
	LatestVersion string `json:"latest_version,omitempty"`
	Description   string `json:"description,omitempty"`
}

// Client looks packages up by name.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a Client for baseURL, e.g. "https://finn-registry.pages.dev".
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: Timeout,
		},
	}
}

// BaseURL returns the registry endpoint the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetPackage fetches GET {base}/api/packages/{name}. A 404 maps to
// finnerr.ErrNotFound, other non-2xx statuses to finnerr.ErrAPI, transport
// failures to finnerr.ErrNetwork and undecodable bodies to
// finnerr.ErrMalformedResponse.
func (c *Client) GetPackage(ctx context.Context, name string) (*Package, error) {
	endpoint := fmt.Sprintf("%s/api/packages/%s", c.baseURL, url.PathEscape(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request for %q: %w", finnerr.ErrNetwork, name, err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: could not reach registry %s: %w", finnerr.ErrNetwork, c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("package %q %w in registry", name, finnerr.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d for %q", finnerr.ErrAPI, resp.StatusCode, name)
	}

	var pkg Package
	if err := json.NewDecoder(resp.Body).Decode(&pkg); err != nil {
		return nil, fmt.Errorf("%w for %q: %w", finnerr.ErrMalformedResponse, name, err)
	}
	if pkg.Name == "" || pkg.RepoURL == "" {
		return nil, fmt.Errorf("%w for %q: name and repo_url are required", finnerr.ErrMalformedResponse, name)
	}

	return &pkg, nil
}
