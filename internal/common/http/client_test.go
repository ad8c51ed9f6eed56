package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	customErrors "github.com/tuannvm/mcp-creative-agent/internal/common/errors"
)

func fastOptions() ClientOptions {
	opts := DefaultOptions()
	opts.RetryBackoff = time.Millisecond
	opts.MaxBackoff = 2 * time.Millisecond
	return opts
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "golang", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"Heading":"Go"}`))
	}))
	defer srv.Close()

	var out struct {
		Heading string `json:"Heading"`
	}
	status, err := NewClient(fastOptions()).GetJSON(context.Background(), srv.URL, url.Values{"q": {"golang"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Go", out.Heading)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDoRequestDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, status, err := NewClient(fastOptions()).DoRequest(context.Background(), http.MethodGet, srv.URL, nil, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	code, _ := customErrors.GetErrorCode(err)
	assert.Equal(t, customErrors.CodeNotFound, code)
}

func TestDoRequestHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	opts := fastOptions()
	opts.RetryBackoff = time.Second
	opts.MaxBackoff = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := NewClient(opts).DoRequest(ctx, http.MethodGet, srv.URL, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
