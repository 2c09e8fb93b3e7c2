package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/brettbedarf/pseudofs"
	"github.com/brettbedarf/pseudofs/file"
	"github.com/brettbedarf/pseudofs/internal/util"
)

type HTTPMethod = string

const (
	HTTPMethodGet  HTTPMethod = "GET"
	HTTPMethodPost HTTPMethod = "POST"
)

// DefaultHTTPMaxSize caps a fetched body when the source sets no limit
const DefaultHTTPMaxSize = 16 * 1024 * 1024

// HTTPClient is the subset of *http.Client the adapter needs
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPSource contains http-specific source request fields
type HTTPSource struct {
	URL     string            `json:"url"`
	Method  *HTTPMethod       `json:"method,omitempty"` // Default is GET
	Headers map[string]string `json:"headers,omitempty"`
	MaxSize *int64            `json:"maxSize,omitempty"`
}

// HTTPProvider builds lazily fetched read-only files from [HTTPSource]
// definitions.
type HTTPProvider struct {
	client HTTPClient
}

func NewHTTPProvider(client HTTPClient) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProvider{client: client}
}

func RegisterHTTP(r *Registry) {
	r.Register(HTTPAdapterType, NewHTTPProvider(nil))
}

func (p *HTTPProvider) NewEntry(raw []byte) (pseudofs.DirectoryEntry, error) {
	adapter, err := p.NewAdapter(raw)
	if err != nil {
		return nil, err
	}
	return file.NewLazy(adapter.Fetch), nil
}

// NewAdapter parses and validates raw into an [HTTPAdapter].
func (p *HTTPProvider) NewAdapter(raw []byte) (*HTTPAdapter, error) {
	var src HTTPSource
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, err
	}
	u, err := parseSourceURL(src.URL)
	if err != nil {
		return nil, err
	}
	src.URL = u
	if src.Method != nil {
		switch m := strings.ToUpper(*src.Method); m {
		case HTTPMethodGet, HTTPMethodPost:
			src.Method = &m
		default:
			return nil, fmt.Errorf("unsupported http method %q", *src.Method)
		}
	}
	return &HTTPAdapter{config: &src, client: p.client}, nil
}

func parseSourceURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid url %q: missing host", raw)
	}
	if u.User != nil {
		return "", fmt.Errorf("invalid url %q: user info is not allowed", raw)
	}
	return u.String(), nil
}

// HTTPAdapter fetches the body of a single HTTP resource
type HTTPAdapter struct {
	config *HTTPSource
	client HTTPClient
}

func (h *HTTPAdapter) newRequest(ctx context.Context, method HTTPMethod) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, h.config.URL, nil)
	if err != nil {
		return nil, err
	}

	// Add custom headers
	for k, v := range h.config.Headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

// Fetch returns the whole response body. Non-2xx responses map to
// NOT_FOUND (404) or IO errors, and bodies past the size limit to NO_SPACE.
func (h *HTTPAdapter) Fetch(ctx context.Context) ([]byte, error) {
	logger := util.GetLogger("HTTPAdapter")
	req, err := h.newRequest(ctx, h.getMethod())
	if err != nil {
		return nil, err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pseudofs.ErrIO, err)
	}
	defer resp.Body.Close()

	logger.Trace().Str("url", h.config.URL).Int("status", resp.StatusCode).Msg("Fetched")
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s returned %s", pseudofs.ErrNotFound, h.config.URL, resp.Status)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %s", pseudofs.ErrIO, h.config.URL, resp.Status)
	}

	limit := h.maxSize()
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pseudofs.ErrIO, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", pseudofs.ErrNoSpace, h.config.URL, limit)
	}
	return data, nil
}

func (h *HTTPAdapter) getMethod() HTTPMethod {
	if h.config.Method != nil {
		return *h.config.Method
	}
	return HTTPMethodGet
}

func (h *HTTPAdapter) maxSize() int64 {
	if h.config.MaxSize != nil && *h.config.MaxSize > 0 {
		return *h.config.MaxSize
	}
	return DefaultHTTPMaxSize
}
