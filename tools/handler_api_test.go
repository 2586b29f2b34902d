package tools

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRoundTripper stands in for a real network dial so API-handler tests
// don't depend on DNS or loopback reachability, which the SSRF validator
// deliberately blocks.
type fakeRoundTripper struct {
	status int
	body   string
}

func (f fakeRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(bytes.NewBufferString(f.body)),
		Header:     make(http.Header),
	}, nil
}

func TestAPIHandlerInvokesAndParsesJSON(t *testing.T) {
	handle := &ServiceHandle{
		BaseURL:    "http://api.internal.example",
		HTTPClient: &http.Client{Transport: fakeRoundTripper{status: 200, body: `{"ok":true}`}},
	}
	out, err := APIHandler{}.Invoke(context.Background(), handle, ToolSpec{Code: "ping"}, nil, time.Now().Add(5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"ok": true}, out)
}

func TestAPIHandlerRejectsNonHTTPScheme(t *testing.T) {
	handle := &ServiceHandle{BaseURL: "file:///etc/passwd"}
	_, err := APIHandler{}.Invoke(context.Background(), handle, ToolSpec{Code: "x"}, nil, time.Now().Add(time.Second))
	assert.ErrorContains(t, err, "rejected")
}

func TestAPIHandlerRejectsLoopbackHost(t *testing.T) {
	handle := &ServiceHandle{BaseURL: "http://127.0.0.1:9999"}
	_, err := APIHandler{}.Invoke(context.Background(), handle, ToolSpec{Code: "x"}, nil, time.Now().Add(time.Second))
	assert.ErrorContains(t, err, "rejected")
}

func TestAPIHandlerPropagatesHTTPStatusError(t *testing.T) {
	handle := &ServiceHandle{
		BaseURL:    "http://api.internal.example",
		HTTPClient: &http.Client{Transport: fakeRoundTripper{status: 500, body: ""}},
	}
	_, err := APIHandler{}.Invoke(context.Background(), handle, ToolSpec{Code: "x"}, nil, time.Now().Add(5*time.Second))
	require.Error(t, err)
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}
