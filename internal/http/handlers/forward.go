package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/clients"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/middleware"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/model"
)

// ResponseTransform rewrites a downstream response before it is relayed.
type ResponseTransform func(resp *http.Response) error

// DropResponseHeaders removes downstream headers the gateway does not relay.
func DropResponseHeaders(names ...string) ResponseTransform {
	return func(resp *http.Response) error {
		for _, n := range names {
			resp.Header.Del(n)
		}
		return nil
	}
}

// CopyUpstreamResponse relays status, headers and body verbatim. Headers the
// gateway already set on w, the correlation id and rate-limit headers among
// them, win over downstream copies.
func CopyUpstreamResponse(w http.ResponseWriter, resp *http.Response) {
	for k, vv := range resp.Header {
		if clients.IsHopByHopHeader(k) || w.Header().Get(k) != "" {
			continue
		}
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

// WriteUpstreamError answers with err. A downstream rejection that carries a
// body is relayed as-is; anything else gets the JSON error envelope.
func WriteUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	var upstream *model.UpstreamError
	if errors.As(err, &upstream) && upstream.StatusCode > 0 && len(upstream.Body) > 0 {
		ct := upstream.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/json"
		}
		w.Header().Set("Content-Type", ct)
		w.WriteHeader(upstream.StatusCode)
		_, _ = w.Write(upstream.Body)
		return
	}
	middleware.WriteError(w, r, err)
}

// decodeJSON reads an optional JSON body into v. An empty body leaves v
// untouched.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return model.BadRequest("Request body too large")
		}
		return model.BadRequest("Invalid JSON body")
	}
	return nil
}
