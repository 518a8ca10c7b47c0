package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-onboarding/core"
)

func TestRESTAdapter_ResolvesRelativePathsAgainstBaseURL(t *testing.T) {
	var gotPath, gotQuery, gotAuth, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("requestId")
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status":"sent"}`))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.URL+"/api/v1", server.Client())
	res, err := adapter.Do(context.Background(), core.TransportRequest{
		Method:  http.MethodPost,
		URL:     "/verification/status",
		Query:   map[string]string{"requestId": "req_1"},
		Headers: map[string]string{"Authorization": "Bearer token"},
		Body:    []byte(`{"subjectId":"1012345678"}`),
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.StatusCode)
	}
	if gotPath != "/api/v1/verification/status" {
		t.Fatalf("expected base url prefix, got %q", gotPath)
	}
	if gotQuery != "req_1" {
		t.Fatalf("expected query parameter, got %q", gotQuery)
	}
	if gotAuth != "Bearer token" {
		t.Fatalf("expected authorization header, got %q", gotAuth)
	}
	if gotBody != `{"subjectId":"1012345678"}` {
		t.Fatalf("unexpected body %q", gotBody)
	}
	if string(res.Body) != `{"status":"sent"}` {
		t.Fatalf("unexpected response body %q", res.Body)
	}
}

func TestRESTAdapter_NonSuccessStatusIsAResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	res, err := NewRESTAdapter(server.URL, server.Client()).Do(context.Background(), core.TransportRequest{URL: "/me"})
	if err != nil {
		t.Fatalf("expected status to be returned as response, got %v", err)
	}
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}
}

func TestRESTAdapter_ResponseLimitReturnsRichError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("12345"))
	}))
	defer server.Close()

	adapter := NewRESTAdapter("", server.Client())
	adapter.MaxResponseBodyBytes = 4

	_, err := adapter.Do(context.Background(), core.TransportRequest{Method: http.MethodGet, URL: server.URL})
	if err == nil {
		t.Fatalf("expected response body limit error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %v", rich.Category)
	}
	if !core.IsNetworkError(err) {
		t.Fatalf("expected %q text code, got %q", core.ErrorNetworkFailure, rich.TextCode)
	}
	if rich.Code != http.StatusBadGateway {
		t.Fatalf("expected %d code, got %d", http.StatusBadGateway, rich.Code)
	}
}

func TestRESTAdapter_UnreachableHostIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewRESTAdapter(url, nil).Do(context.Background(), core.TransportRequest{URL: "/me"})
	if err == nil {
		t.Fatalf("expected network error")
	}
	if !core.IsNetworkError(err) {
		t.Fatalf("expected network failure text code, got %v", err)
	}
}

func TestRESTAdapter_NilReturnsRichError(t *testing.T) {
	var adapter *RESTAdapter
	_, err := adapter.Do(context.Background(), core.TransportRequest{})
	if err == nil {
		t.Fatalf("expected nil adapter error")
	}
	if !core.HasTextCode(err, core.ErrorInternal) {
		t.Fatalf("expected internal text code, got %v", err)
	}
}

func TestRESTAdapter_AttachesRequestID(t *testing.T) {
	var got []string
	var contentTypes []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get(HeaderRequestID))
		contentTypes = append(contentTypes, r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.URL, server.Client())
	res, err := adapter.Do(context.Background(), core.TransportRequest{URL: "/me"})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if got[0] == "" || res.Metadata["request_id"] != got[0] {
		t.Fatalf("expected generated request id in header and metadata, got %q / %v", got[0], res.Metadata["request_id"])
	}
	if contentTypes[0] != "" {
		t.Fatalf("expected no content type without a body, got %q", contentTypes[0])
	}

	_, err = adapter.Do(context.Background(), core.TransportRequest{
		Method:  http.MethodPost,
		URL:     "/me",
		Headers: map[string]string{HeaderRequestID: "req_fixed"},
		Body:    []byte(`{}`),
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if got[1] != "req_fixed" || contentTypes[1] != "application/json" {
		t.Fatalf("expected caller request id and json content type, got %q %q", got[1], contentTypes[1])
	}
}

func TestRESTAdapter_EmptyURLIsBadInput(t *testing.T) {
	_, err := NewRESTAdapter("", nil).Do(context.Background(), core.TransportRequest{})
	if !core.HasTextCode(err, core.ErrorBadInput) {
		t.Fatalf("expected bad input, got %v", err)
	}
}
