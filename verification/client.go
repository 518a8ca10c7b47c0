package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-onboarding/core"
)

type InitiateResult struct {
	RequestID   string
	ExternalURL string
	ExpiresAt   time.Time
}

// Client is the third party verification provider, reached through the
// onboarding backend.
type Client interface {
	Initiate(ctx context.Context, subjectID string) (InitiateResult, error)
	Status(ctx context.Context, requestID string) (core.VerificationStatus, error)
}

// URLOpener opens the provider deep link in a new top level context.
type URLOpener interface {
	Open(ctx context.Context, url string) error
}

type URLOpenerFunc func(ctx context.Context, url string) error

func (fn URLOpenerFunc) Open(ctx context.Context, url string) error {
	return fn(ctx, url)
}

// HTTPClient talks to the backend verification endpoints through an
// authenticated caller.
type HTTPClient struct {
	Caller       core.Caller
	InitiatePath string
	StatusPath   string
}

func NewHTTPClient(caller core.Caller, cfg core.VerificationConfig) *HTTPClient {
	client := &HTTPClient{
		Caller:       caller,
		InitiatePath: strings.TrimSpace(cfg.InitiatePath),
		StatusPath:   strings.TrimSpace(cfg.StatusPath),
	}
	if client.InitiatePath == "" {
		client.InitiatePath = core.DefaultVerificationInitiate
	}
	if client.StatusPath == "" {
		client.StatusPath = core.DefaultVerificationStatus
	}
	return client
}

type initiateRequest struct {
	SubjectID string `json:"subjectId"`
}

type initiateResponse struct {
	RequestID   string          `json:"requestId"`
	ExternalURL string          `json:"externalUrl"`
	ExpiresAt   json.RawMessage `json:"expiresAt"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func (c *HTTPClient) Initiate(ctx context.Context, subjectID string) (InitiateResult, error) {
	body, err := json.Marshal(initiateRequest{SubjectID: subjectID})
	if err != nil {
		return InitiateResult{}, err
	}
	res, err := c.Caller.Call(ctx, core.TransportRequest{
		Method: http.MethodPost,
		URL:    c.InitiatePath,
		Body:   body,
	})
	if err != nil {
		return InitiateResult{}, err
	}
	var payload initiateResponse
	if err := json.Unmarshal(res.Body, &payload); err != nil {
		return InitiateResult{}, core.NewInternalError("verification: malformed initiate response")
	}
	if strings.TrimSpace(payload.RequestID) == "" {
		return InitiateResult{}, core.NewVerificationFailedError("verification: provider returned no request id")
	}
	expiresAt, err := parseTimestamp(payload.ExpiresAt)
	if err != nil {
		return InitiateResult{}, core.NewInternalError("verification: malformed expiresAt")
	}
	return InitiateResult{
		RequestID:   strings.TrimSpace(payload.RequestID),
		ExternalURL: strings.TrimSpace(payload.ExternalURL),
		ExpiresAt:   expiresAt,
	}, nil
}

func (c *HTTPClient) Status(ctx context.Context, requestID string) (core.VerificationStatus, error) {
	res, err := c.Caller.Call(ctx, core.TransportRequest{
		Method: http.MethodGet,
		URL:    c.StatusPath,
		Query:  map[string]string{"requestId": requestID},
	})
	if err != nil {
		return "", err
	}
	var payload statusResponse
	if err := json.Unmarshal(res.Body, &payload); err != nil {
		return "", core.NewInternalError("verification: malformed status response")
	}
	status, ok := core.ParseVerificationStatus(payload.Status)
	if !ok {
		return "", core.NewVerificationMismatchError("verification: unknown status " + strconv.Quote(payload.Status))
	}
	return status, nil
}

// parseTimestamp accepts an RFC 3339 string or unix milliseconds.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return time.Time{}, err
		}
		if strings.TrimSpace(text) == "" {
			return time.Time{}, nil
		}
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(text))
		if err != nil {
			return time.Time{}, err
		}
		return parsed.UTC(), nil
	}
	millis, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(millis).UTC(), nil
}

var _ Client = (*HTTPClient)(nil)
