package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/middleware"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/model"
)

// RequestTransform rewrites an outbound request before it is dispatched.
type RequestTransform func(req *http.Request) error

type Client struct {
	Name    string
	BaseURL *url.URL
	HTTP    *http.Client
}

func NewClient(name string, baseURL string, httpClient *http.Client) *Client {
	u, err := url.Parse(baseURL)
	if err != nil {
		// Fail fast: config error
		panic(fmt.Sprintf("invalid %s base url %q: %v", name, baseURL, err))
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{Name: name, BaseURL: u, HTTP: httpClient}
}

// Do sends one request to the service. Transport failures, timeouts included,
// come back as *model.UpstreamError wrapping model.ErrUpstreamUnavailable; any
// HTTP response, whatever its status, is returned to the caller untouched.
func (c *Client) Do(ctx context.Context, method, path, rawQuery string, body io.Reader, inHeaders http.Header, transforms ...RequestTransform) (*http.Response, error) {
	u := c.BaseURL.JoinPath(path)
	u.RawQuery = rawQuery

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", c.Name, err)
	}

	copyHeaders(req.Header, inHeaders)

	// Ensure correlation id propagated downstream
	if cid := middleware.GetCorrelationID(ctx); cid != "" {
		req.Header.Set(middleware.HeaderCorrelationID, cid)
	}

	for _, t := range transforms {
		if err := t(req); err != nil {
			return nil, fmt.Errorf("transform %s request: %w", c.Name, err)
		}
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, c.unavailable(err)
	}
	return resp, nil
}

// DoJSON posts in as JSON and returns the raw response.
func (c *Client) DoJSON(ctx context.Context, method, path string, in any, transforms ...RequestTransform) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", c.Name, err)
		}
		body = bytes.NewReader(raw)
	}

	h := http.Header{}
	h.Set("Accept", "application/json")
	if body != nil {
		h.Set("Content-Type", "application/json")
	}

	return c.Do(ctx, method, path, "", body, h, transforms...)
}

func (c *Client) unavailable(err error) error {
	return &model.UpstreamError{
		Err:     fmt.Errorf("%w: %v", model.ErrUpstreamUnavailable, err),
		Service: c.Name,
	}
}

// StripHeaders removes client-supplied copies of headers the gateway owns.
func StripHeaders(names ...string) RequestTransform {
	return func(req *http.Request) error {
		for _, n := range names {
			req.Header.Del(n)
		}
		return nil
	}
}

func SetHeader(name, value string) RequestTransform {
	return func(req *http.Request) error {
		if value == "" {
			return nil
		}
		req.Header.Set(name, value)
		return nil
	}
}

// InjectIdentity replaces any X-User-Id / X-User-Role the client sent with
// the values from the authenticated identity on ctx. Anonymous requests only
// get the stripping.
func InjectIdentity(ctx context.Context) RequestTransform {
	strip := StripHeaders(middleware.HeaderUserID, middleware.HeaderUserRole)
	return func(req *http.Request) error {
		if err := strip(req); err != nil {
			return err
		}
		id, ok := middleware.GetIdentity(ctx)
		if !ok {
			return nil
		}
		req.Header.Set(middleware.HeaderUserID, id.Claims.UserID.String())
		if id.Claims.Role != "" {
			req.Header.Set(middleware.HeaderUserRole, id.Claims.Role)
		}
		return nil
	}
}

func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		if isHopByHopHeader(k) {
			continue
		}
		// Host is not a header key here (it's req.Host), but keep this rule anyway
		if strings.EqualFold(k, "Host") {
			continue
		}
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

// Hop-by-hop headers (RFC 7230)
func isHopByHopHeader(k string) bool {
	switch http.CanonicalHeaderKey(k) {
	case "Connection", "Proxy-Connection", "Keep-Alive",
		"Proxy-Authenticate", "Proxy-Authorization",
		"Te", "Trailer", "Transfer-Encoding", "Upgrade":
		return true
	default:
		return false
	}
}

// IsHopByHopHeader reports whether k must not be relayed across the proxy.
func IsHopByHopHeader(k string) bool { return isHopByHopHeader(k) }

func isSuccess(code int) bool { return code >= 200 && code < 300 }

// drain reads a bounded amount of the body for error relaying and closes it.
func drain(resp *http.Response) []byte {
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return b
}
