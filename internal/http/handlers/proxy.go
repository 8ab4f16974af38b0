package handlers

import (
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/clients"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/middleware"
)

// PathRewrite maps the inbound request to the downstream path.
type PathRewrite func(r *http.Request) string

// Fixed always targets path.
func Fixed(path string) PathRewrite {
	return func(*http.Request) string { return path }
}

// StripPrefix drops prefix from the inbound path.
func StripPrefix(prefix string) PathRewrite {
	return func(r *http.Request) string {
		p := r.URL.Path
		if len(p) >= len(prefix) && p[:len(prefix)] == prefix {
			p = p[len(prefix):]
		}
		if p == "" {
			p = "/"
		}
		return p
	}
}

// Proxy forwards requests to one downstream service through an explicit
// chain: request transforms run before dispatch, response transforms after.
type Proxy struct {
	client   *clients.Client
	logger   *zap.Logger
	request  []func(r *http.Request) clients.RequestTransform
	response []ResponseTransform
}

func NewProxy(client *clients.Client, logger *zap.Logger) *Proxy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Proxy{
		client: client,
		logger: logger,
		request: []func(r *http.Request) clients.RequestTransform{
			// Identity headers are only ever set by the gateway.
			func(r *http.Request) clients.RequestTransform { return clients.InjectIdentity(r.Context()) },
			contentLength,
		},
		response: []ResponseTransform{
			DropResponseHeaders("Server", "X-Powered-By"),
		},
	}
}

// WithResponseTransform appends t to the response chain.
func (p *Proxy) WithResponseTransform(t ResponseTransform) *Proxy {
	p.response = append(p.response, t)
	return p
}

// To returns a handler forwarding to the path produced by rewrite.
func (p *Proxy) To(rewrite PathRewrite) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := rewrite(r)

		transforms := make([]clients.RequestTransform, 0, len(p.request))
		for _, build := range p.request {
			transforms = append(transforms, build(r))
		}

		var body io.Reader
		if r.Body != nil && r.Body != http.NoBody {
			body = r.Body
		}

		resp, err := p.client.Do(r.Context(), r.Method, path, r.URL.RawQuery, body, r.Header, transforms...)
		log := middleware.LoggerFrom(r.Context(), p.logger).With(
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("upstream", p.client.Name),
			zap.String("upstream_path", path),
		)
		if err != nil {
			log.Warn("proxy request failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
			WriteUpstreamError(w, r, err)
			return
		}
		defer resp.Body.Close()

		for _, t := range p.response {
			if err := t(resp); err != nil {
				log.Error("response transform failed", zap.Error(err))
				middleware.WriteError(w, r, err)
				return
			}
		}

		log.Info("proxied request",
			zap.Int("status", resp.StatusCode),
			zap.Duration("duration", time.Since(start)),
		)
		CopyUpstreamResponse(w, resp)
	}
}

func contentLength(r *http.Request) clients.RequestTransform {
	return func(req *http.Request) error {
		if r.ContentLength > 0 {
			req.ContentLength = r.ContentLength
		}
		return nil
	}
}
