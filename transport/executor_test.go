package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rackerlabs/blueflood-go/core"
)

// fakeTokenSource hands out a new token after each invalidation without
// any network traffic
type fakeTokenSource struct {
	issued        int
	invalidations int
	current       string
	err           error
}

func (f *fakeTokenSource) Token(ctx context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.current == "" {
		f.issued++
		f.current = fmt.Sprintf("token-%d", f.issued)
	}
	return f.current, nil
}

func (f *fakeTokenSource) Invalidate() {
	f.invalidations++
	f.current = ""
}

func newExecutor(tokens TokenSource) *Executor {
	return NewExecutor(tokens, 5*time.Second, nil, nil)
}

// TestSingleRetryOn401 verifies the reauthentication protocol: a 401 is
// followed by exactly one replay carrying a freshly fetched token
func TestSingleRetryOn401(t *testing.T) {
	var calls int
	var seenTokens []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		seenTokens = append(seenTokens, r.Header.Get("X-Auth-Token"))
		if calls == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"ok": true}`)
	}))
	defer server.Close()

	tokens := &fakeTokenSource{}
	executor := newExecutor(tokens)

	raw, err := executor.Execute(context.Background(), MethodGet, server.URL, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok": true}`, string(raw))

	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, tokens.invalidations)
	require.Len(t, seenTokens, 2)
	assert.NotEqual(t, seenTokens[0], seenTokens[1])
}

// TestNoReauthenticationLoop verifies that a server that always returns
// 401 produces a final HTTPError after exactly one replay
func TestNoReauthenticationLoop(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"unauthorized": true}`)
	}))
	defer server.Close()

	tokens := &fakeTokenSource{}
	executor := newExecutor(tokens)

	_, err := executor.Execute(context.Background(), MethodGet, server.URL, nil)
	require.Error(t, err)

	httpErr, ok := core.IsHTTP(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.Equal(t, 2, calls)
}

// TestReplayIsIdentical verifies the replayed request carries the same
// method, body and query as the original
func TestReplayIsIdentical(t *testing.T) {
	var bodies []string
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(body))
		queries = append(queries, r.URL.RawQuery)
		if len(bodies) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	executor := newExecutor(&fakeTokenSource{})
	_, err := executor.Execute(context.Background(), MethodPost, server.URL, &RequestOptions{
		Body:  []string{"a.b.c"},
		Query: map[string][]string{"from": {"0"}, "to": {"100"}},
	})
	require.NoError(t, err)

	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1])
	assert.JSONEq(t, `["a.b.c"]`, bodies[0])
	assert.Equal(t, queries[0], queries[1])
}

// TestHeaders verifies base headers, the auth header and caller
// precedence on collisions
func TestHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	executor := newExecutor(&fakeTokenSource{})
	_, err := executor.Execute(context.Background(), MethodGet, server.URL, &RequestOptions{
		Headers: map[string]string{
			"Accept":       "application/vnd.custom+json",
			"X-Custom-Tag": "abc",
		},
	})
	require.NoError(t, err)

	// Caller value wins on collision
	assert.Equal(t, "application/vnd.custom+json", got.Get("Accept"))
	assert.Equal(t, "abc", got.Get("X-Custom-Tag"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, "token-1", got.Get("X-Auth-Token"))
	assert.NotEmpty(t, got.Get("X-Request-Id"))
}

// TestQueryParameters verifies query params are attached to the URL and
// merged with any already present
func TestQueryParameters(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	executor := newExecutor(&fakeTokenSource{})
	_, err := executor.Execute(context.Background(), MethodGet, server.URL+"/metrics/search", &RequestOptions{
		Query: map[string][]string{"query": {"app.*"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "query=app.%2A", gotQuery)
}

// TestErrorStatus verifies error responses surface status and raw body
func TestErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"message": "maintenance"}`)
	}))
	defer server.Close()

	executor := newExecutor(&fakeTokenSource{})
	_, err := executor.Execute(context.Background(), MethodGet, server.URL, nil)
	require.Error(t, err)

	httpErr, ok := core.IsHTTP(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.JSONEq(t, `{"message": "maintenance"}`, string(httpErr.Body))
	assert.True(t, errors.Is(err, core.ErrRequestFailed))
}

// TestNoContent verifies that an empty or unparseable body on a
// successful response is "no content", not an error
func TestNoContent(t *testing.T) {
	t.Run("empty body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		executor := newExecutor(&fakeTokenSource{})
		raw, err := executor.Execute(context.Background(), MethodPost, server.URL, nil)
		require.NoError(t, err)
		assert.Nil(t, raw)
	})

	t.Run("invalid json body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "accepted")
		}))
		defer server.Close()

		executor := newExecutor(&fakeTokenSource{})
		raw, err := executor.Execute(context.Background(), MethodPost, server.URL, nil)
		require.NoError(t, err)
		assert.Nil(t, raw)
	})
}

// TestDecodedBody verifies a valid JSON body is returned as-is
func TestDecodedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `["metric.one", "metric.two"]`)
	}))
	defer server.Close()

	executor := newExecutor(&fakeTokenSource{})
	raw, err := executor.Execute(context.Background(), MethodGet, server.URL, nil)
	require.NoError(t, err)

	var names []string
	require.NoError(t, json.Unmarshal(raw, &names))
	assert.Equal(t, []string{"metric.one", "metric.two"}, names)
}

// TestMethodValidation verifies the closed method set is enforced before
// any request is built
func TestMethodValidation(t *testing.T) {
	executor := newExecutor(&fakeTokenSource{})

	_, err := executor.Execute(context.Background(), Method("PATCH"), "http://unused.invalid", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PATCH")
}

// TestTokenFailurePropagates verifies auth failures surface unchanged
func TestTokenFailurePropagates(t *testing.T) {
	authErr := &core.AuthError{Op: "auth.authenticate", StatusCode: http.StatusUnauthorized}
	executor := newExecutor(&fakeTokenSource{err: authErr})

	_, err := executor.Execute(context.Background(), MethodGet, "http://unused.invalid", nil)
	require.Error(t, err)
	assert.True(t, core.IsAuth(err))
}
