package probe

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelprobe/internal/models"
)

func newRequest(url string) Request {
	target := models.ProbeTarget{ID: "gpt-4o", Name: "GPT-4o", Route: models.DirectRoute}
	return Build(target, models.RouteConfig{EndpointURL: url, AuthToken: "tok", AdminCredential: "adm"})
}

func TestExecuteSuccess(t *testing.T) {
	long := strings.Repeat("é", 150)
	var received ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "adm", r.Header.Get("X-Admin-Password"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"`+long+`"}}],"usage":{"total_tokens":42}}`)
	}))
	defer srv.Close()

	outcome := NewExecutor().Execute(context.Background(), newRequest(srv.URL), time.Second)

	require.Equal(t, models.StatusSuccess, outcome.Status)
	assert.Equal(t, "gpt-4o", outcome.TargetID)
	assert.Equal(t, "GPT-4o", outcome.Name)
	assert.Equal(t, models.DirectRoute, outcome.Route)
	assert.Equal(t, 42, outcome.TokenCount)
	assert.Nil(t, outcome.ErrorDetail)
	require.NotNil(t, outcome.ResponseSnippet)
	assert.Len(t, []rune(*outcome.ResponseSnippet), 100)
	assert.GreaterOrEqual(t, outcome.LatencyMillis, 0.0)
	assert.Equal(t, "gpt-4o", received.Model)
	assert.Len(t, received.Messages, 2)
}

func TestExecuteSuccessWithMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	outcome := NewExecutor().Execute(context.Background(), newRequest(srv.URL), time.Second)

	require.Equal(t, models.StatusSuccess, outcome.Status)
	require.NotNil(t, outcome.ResponseSnippet)
	assert.Equal(t, "", *outcome.ResponseSnippet)
	assert.Equal(t, 0, outcome.TokenCount)
}

func TestExecuteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "server overloaded")
	}))
	defer srv.Close()

	outcome := NewExecutor().Execute(context.Background(), newRequest(srv.URL), time.Second)

	require.Equal(t, models.StatusHTTPError, outcome.Status)
	require.NotNil(t, outcome.ErrorDetail)
	assert.True(t, strings.HasPrefix(*outcome.ErrorDetail, "HTTP 500:"))
	assert.Equal(t, "HTTP 500: server overloaded", *outcome.ErrorDetail)
	assert.Nil(t, outcome.ResponseSnippet)
}

func TestExecuteHTTPErrorTruncatesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, strings.Repeat("x", 500))
	}))
	defer srv.Close()

	outcome := NewExecutor().Execute(context.Background(), newRequest(srv.URL), time.Second)

	require.Equal(t, models.StatusHTTPError, outcome.Status)
	assert.Equal(t, "HTTP 401: "+strings.Repeat("x", 200), *outcome.ErrorDetail)
}

func TestExecuteTimeoutUsesBudgetAsLatency(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	outcome := NewExecutor().Execute(context.Background(), newRequest(srv.URL), 50*time.Millisecond)

	require.Equal(t, models.StatusTimeout, outcome.Status)
	assert.Equal(t, 50.0, outcome.LatencyMillis)
	require.NotNil(t, outcome.ErrorDetail)
	assert.Contains(t, *outcome.ErrorDetail, "timed out")
}

func TestExecuteTimeoutWhileReadingBody(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"choices":`)
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	outcome := NewExecutor().Execute(context.Background(), newRequest(srv.URL), 50*time.Millisecond)

	require.Equal(t, models.StatusTimeout, outcome.Status)
	assert.Equal(t, 50.0, outcome.LatencyMillis)
}

func TestExecuteDefaultTimeoutSentinel(t *testing.T) {
	outcome := timeoutFailure(models.ProbeOutcome{}, DefaultTimeout)
	assert.Equal(t, 60000.0, outcome.LatencyMillis)
	assert.Equal(t, models.StatusTimeout, outcome.Status)
}

func TestExecuteTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	outcome := NewExecutor().Execute(context.Background(), newRequest(url), time.Second)

	require.Equal(t, models.StatusTransportError, outcome.Status)
	require.NotNil(t, outcome.ErrorDetail)
	assert.NotEmpty(t, *outcome.ErrorDetail)
	assert.Nil(t, outcome.ResponseSnippet)
}

func TestExecuteMalformedSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>not json</html>")
	}))
	defer srv.Close()

	outcome := NewExecutor().Execute(context.Background(), newRequest(srv.URL), time.Second)

	require.Equal(t, models.StatusTransportError, outcome.Status)
	assert.Contains(t, *outcome.ErrorDetail, "decode response")
}

func TestExecuteMeasuresLatencyWithClock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"OK"}}]}`)
	}))
	defer srv.Close()

	base := time.Unix(0, 0)
	calls := 0
	clock := func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(1234567 * time.Nanosecond)
	}

	outcome := NewExecutor(WithNow(clock)).Execute(context.Background(), newRequest(srv.URL), time.Second)

	require.Equal(t, models.StatusSuccess, outcome.Status)
	assert.Equal(t, 1.23, outcome.LatencyMillis)
}

func TestExecuteFractionalTokenCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"OK"}}],"usage":{"total_tokens":12.0}}`)
	}))
	defer srv.Close()

	outcome := NewExecutor().Execute(context.Background(), newRequest(srv.URL), time.Second)

	require.Equal(t, models.StatusSuccess, outcome.Status)
	assert.Equal(t, 12, outcome.TokenCount)
	assert.Equal(t, "OK", *outcome.ResponseSnippet)
}

func TestDefaultTransportHasNoDeadlinesOfItsOwn(t *testing.T) {
	e := NewExecutor()
	transport, ok := e.client.Transport.(*http.Transport)
	require.True(t, ok)

	assert.Equal(t, time.Duration(0), transport.TLSHandshakeTimeout)
	assert.NotNil(t, transport.DialContext)
	assert.Equal(t, time.Duration(0), e.client.Timeout)
	assert.NotSame(t, http.DefaultTransport, transport)
}

func TestExecuteTimeoutWhenTLSHandshakeStalls(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	defer func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	url := "https://" + ln.Addr().String() + "/v1/chat/completions"
	outcome := NewExecutor().Execute(context.Background(), newRequest(url), 200*time.Millisecond)

	require.Equal(t, models.StatusTimeout, outcome.Status)
	assert.Equal(t, 200.0, outcome.LatencyMillis)
	assert.Contains(t, *outcome.ErrorDetail, "timed out")
}
