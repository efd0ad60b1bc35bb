package fetch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFetcherReturnsPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>Daiquiri</body></html>"))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "test-agent", Timeout: 5 * time.Second})
	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.StatusCode)
	require.Contains(t, string(page.Body), "Daiquiri")
	require.Equal(t, srv.URL, page.URL)
}

func TestFetcherStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	require.Equal(t, FailureServerError, ClassifyError(err))
}

func TestClassifyError(t *testing.T) {
	require.Equal(t, FailureClientError, ClassifyError(&StatusError{Code: 404}))
	require.Equal(t, FailureServerError, ClassifyError(&StatusError{Code: 502}))
	require.Equal(t, FailureDNS, ClassifyError(&net.DNSError{Err: "no such host"}))
	require.Equal(t, FailureTimeout, ClassifyError(context.DeadlineExceeded))
	require.Equal(t, FailureConnection, ClassifyError(errors.New("dial tcp: connection refused")))
	require.Equal(t, FailureUnknown, ClassifyError(errors.New("weird")))
	require.Equal(t, "", ClassifyError(nil))
}

func TestDomainLimiterDisabled(t *testing.T) {
	l := NewDomainLimiter(0)
	require.NoError(t, l.Wait(context.Background(), "https://example.com/x"))
}

func TestDomainLimiterThrottles(t *testing.T) {
	l := NewDomainLimiter(100)
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(context.Background(), "https://example.com/x"))
	}
	// 100 qps budget with burst 1: third call waits roughly 20ms total.
	require.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestShellDetector(t *testing.T) {
	d := NewShellDetector(64, nil)

	require.True(t, d.NeedsRender([]byte("<html></html>")), "tiny body")
	require.True(t, d.NeedsRender([]byte(`<html><body><p>Please enable JavaScript to view this page and all of its content here.</p></body></html>`)))

	full := []byte(`<html><body><h1>Daiquiri</h1><p>Shake rum, lime juice, and simple syrup with ice, then strain into a chilled coupe glass.</p></body></html>`)
	require.False(t, d.NeedsRender(full))
}

func TestShellDetectorEmptyBodyText(t *testing.T) {
	d := NewShellDetector(0, []string{})
	shell := []byte(`<html><body><div id="root"></div><script src="/app.js"></script></body></html>`)
	require.True(t, d.NeedsRender(shell))
}
