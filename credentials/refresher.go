package credentials

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/goliatone/go-onboarding/core"
)

// Refresher exchanges a refresh token for a new pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (Pair, error)
}

type RefresherFunc func(ctx context.Context, refreshToken string) (Pair, error)

func (fn RefresherFunc) Refresh(ctx context.Context, refreshToken string) (Pair, error) {
	return fn(ctx, refreshToken)
}

// HTTPRefresher posts {refreshToken} to the refresh endpoint. The request is
// sent without a bearer header and never goes through the Manager, so a 401
// from the endpoint is a refresh failure rather than a retry trigger.
type HTTPRefresher struct {
	Transport core.TransportAdapter
	Path      string
}

func NewHTTPRefresher(transport core.TransportAdapter, path string) *HTTPRefresher {
	if strings.TrimSpace(path) == "" {
		path = core.DefaultRefreshPath
	}
	return &HTTPRefresher{Transport: transport, Path: path}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r *HTTPRefresher) Refresh(ctx context.Context, refreshToken string) (Pair, error) {
	if r == nil || r.Transport == nil {
		return Pair{}, core.NewInternalError("credentials: refresher requires a transport")
	}
	body, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return Pair{}, err
	}
	res, err := r.Transport.Do(ctx, core.TransportRequest{
		Method: http.MethodPost,
		URL:    r.Path,
		Body:   body,
	})
	if err != nil {
		return Pair{}, err
	}
	if !core.IsSuccessStatus(res.StatusCode) {
		return Pair{}, core.ErrorFromStatus(res.StatusCode, res.Body)
	}
	var pair Pair
	if err := json.Unmarshal(res.Body, &pair); err != nil {
		return Pair{}, core.NewInternalError("credentials: malformed refresh response")
	}
	return pair, nil
}

var _ Refresher = (*HTTPRefresher)(nil)
