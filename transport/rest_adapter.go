package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-onboarding/core"
	"github.com/google/uuid"
)

const KindREST = "rest"

const (
	HeaderRequestID = "X-Request-ID"

	defaultRESTClientTimeout                 = 30 * time.Second
	defaultRESTResponseBodyLimit       int64 = 10 << 20
	contentTypeJSON                          = "application/json"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RESTAdapter sends JSON requests to the onboarding backend. Relative request
// URLs are resolved against BaseURL and every request carries a request id.
type RESTAdapter struct {
	Client               HTTPDoer
	BaseURL              string
	DefaultHeaders       map[string]string
	MaxResponseBodyBytes int64
	NewRequestID         func() string
}

func NewRESTAdapter(baseURL string, client HTTPDoer) *RESTAdapter {
	if client == nil {
		client = &http.Client{Timeout: defaultRESTClientTimeout}
	}
	return &RESTAdapter{
		Client:               client,
		BaseURL:              strings.TrimSpace(baseURL),
		DefaultHeaders:       map[string]string{"Accept": contentTypeJSON},
		MaxResponseBodyBytes: defaultRESTResponseBodyLimit,
		NewRequestID:         uuid.NewString,
	}
}

func (*RESTAdapter) Kind() string {
	return KindREST
}

func (a *RESTAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil || a.Client == nil {
		return core.TransportResponse{}, transportError(
			"transport: rest adapter requires an http client",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"adapter": KindREST},
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, requestID, err := a.newRequest(ctx, req)
	if err != nil {
		return core.TransportResponse{}, err
	}
	meta := map[string]any{
		"adapter":    KindREST,
		"method":     httpReq.Method,
		"path":       httpReq.URL.Path,
		"request_id": requestID,
	}

	startedAt := time.Now()
	httpRes, err := a.Client.Do(httpReq)
	if err != nil {
		return core.TransportResponse{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: backend unreachable",
			http.StatusBadGateway,
			meta,
		)
	}
	defer httpRes.Body.Close()

	payload, err := a.readBody(httpRes, meta)
	if err != nil {
		return core.TransportResponse{}, err
	}
	return core.TransportResponse{
		StatusCode: httpRes.StatusCode,
		Headers:    flattenHeaders(httpRes.Header),
		Body:       payload,
		Metadata: map[string]any{
			"kind":        KindREST,
			"request_id":  requestID,
			"duration_ms": time.Since(startedAt).Milliseconds(),
		},
	}, nil
}

func (a *RESTAdapter) newRequest(ctx context.Context, req core.TransportRequest) (*http.Request, string, error) {
	target, err := a.resolveURL(req.URL, req.Query)
	if err != nil {
		return nil, "", transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: invalid request url",
			http.StatusBadRequest,
			map[string]any{"adapter": KindREST, "url": strings.TrimSpace(req.URL)},
		)
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, "", transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: invalid request",
			http.StatusBadRequest,
			map[string]any{"adapter": KindREST, "method": method},
		)
	}

	setHeaders(httpReq.Header, a.DefaultHeaders)
	if body != nil {
		httpReq.Header.Set("Content-Type", contentTypeJSON)
	}
	setHeaders(httpReq.Header, req.Headers)

	requestID := httpReq.Header.Get(HeaderRequestID)
	if requestID == "" && a.NewRequestID != nil {
		requestID = a.NewRequestID()
		httpReq.Header.Set(HeaderRequestID, requestID)
	}
	return httpReq, requestID, nil
}

func (a *RESTAdapter) readBody(res *http.Response, meta map[string]any) ([]byte, error) {
	limit := a.MaxResponseBodyBytes
	if limit <= 0 {
		limit = defaultRESTResponseBodyLimit
	}
	payload, err := io.ReadAll(io.LimitReader(res.Body, limit+1))
	if err != nil {
		return nil, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: response body interrupted",
			http.StatusBadGateway,
			withStatus(meta, res.StatusCode),
		)
	}
	if int64(len(payload)) > limit {
		return nil, transportError(
			fmt.Sprintf("transport: response body exceeds %d bytes", limit),
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			withStatus(meta, res.StatusCode),
		)
	}
	return payload, nil
}

// resolveURL joins relative paths onto BaseURL and merges query values into
// any query already present on the path.
func (a *RESTAdapter) resolveURL(raw string, query map[string]string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("request url is required")
	}
	target, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if !target.IsAbs() && a.BaseURL != "" {
		base, err := url.Parse(strings.TrimRight(a.BaseURL, "/") + "/")
		if err != nil {
			return nil, err
		}
		target = base.ResolveReference(&url.URL{
			Path:     strings.TrimLeft(target.Path, "/"),
			RawQuery: target.RawQuery,
		})
	}
	if len(query) > 0 {
		values := target.Query()
		for key, value := range query {
			if key = strings.TrimSpace(key); key != "" {
				values.Set(key, strings.TrimSpace(value))
			}
		}
		target.RawQuery = values.Encode()
	}
	return target, nil
}

func setHeaders(dst http.Header, headers map[string]string) {
	for key, value := range headers {
		if key = strings.TrimSpace(key); key != "" {
			dst.Set(key, strings.TrimSpace(value))
		}
	}
}

func withStatus(meta map[string]any, status int) map[string]any {
	out := make(map[string]any, len(meta)+1)
	for key, value := range meta {
		out[key] = value
	}
	out["status_code"] = status
	return out
}

func flattenHeaders(headers http.Header) map[string]string {
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		flat[key] = strings.Join(values, ",")
	}
	return flat
}
