package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type TransportRequest struct {
	Method   string
	URL      string
	Headers  map[string]string
	Query    map[string]string
	Body     []byte
	Metadata map[string]any
	Timeout  time.Duration
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

// TransportAdapter executes a single HTTP exchange. Non-2xx statuses are
// returned as responses; only transport level failures are errors.
type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

// Caller executes a request on behalf of the signed in merchant.
type Caller interface {
	Call(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

// IsSuccessStatus reports a 2xx status.
func IsSuccessStatus(status int) bool {
	return status >= 200 && status < 300
}

// CloneRequest copies the header and query maps so a retry never mutates the
// caller's request.
func CloneRequest(req TransportRequest) TransportRequest {
	out := req
	out.Headers = copyStringMap(req.Headers)
	out.Query = copyStringMap(req.Query)
	out.Metadata = copyAnyMap(req.Metadata)
	if req.Body != nil {
		out.Body = append([]byte(nil), req.Body...)
	}
	return out
}

func copyStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func copyAnyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
