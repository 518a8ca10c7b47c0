package credentials

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/goliatone/go-onboarding/core"
)

func (m *Manager) GetJSON(ctx context.Context, path string, query map[string]string, out any) error {
	return m.doJSON(ctx, http.MethodGet, path, query, nil, out)
}

func (m *Manager) PostJSON(ctx context.Context, path string, in any, out any) error {
	return m.doJSON(ctx, http.MethodPost, path, nil, in, out)
}

func (m *Manager) PutJSON(ctx context.Context, path string, in any, out any) error {
	return m.doJSON(ctx, http.MethodPut, path, nil, in, out)
}

func (m *Manager) DeleteJSON(ctx context.Context, path string, out any) error {
	return m.doJSON(ctx, http.MethodDelete, path, nil, nil, out)
}

func (m *Manager) doJSON(ctx context.Context, method string, path string, query map[string]string, in any, out any) error {
	req := core.TransportRequest{
		Method: method,
		URL:    path,
		Query:  query,
	}
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return core.NewBadInputError("credentials: request body is not serializable")
		}
		req.Body = body
	}
	res, err := m.Call(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(res.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		return core.NewInternalError("credentials: malformed response body")
	}
	return nil
}
