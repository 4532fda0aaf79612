package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-diff/internal/domain"
)

func fastRetry() *RetryConfig {
	return &RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 'P', 'N', 'G'}, 0o644))
	return path
}

func sse(chunks ...string) string {
	var sb strings.Builder
	for _, c := range chunks {
		b, _ := json.Marshal(Response{Choices: []Choice{{Delta: Delta{Content: c}}}})
		fmt.Fprintf(&sb, "data: %s\n\n", b)
	}
	sb.WriteString("data: [DONE]\n\n")
	return sb.String()
}

func TestNewClient_DefaultModel(t *testing.T) {
	assert.Equal(t, defaultModel, NewClient("sk-or-test", "").Model())
	assert.Equal(t, "google/gemini-2.5-pro", NewClient("sk-or-test", "google/gemini-2.5-pro").Model())
}

func TestBuildRequest(t *testing.T) {
	client := NewClient("test-key", "")

	req, err := client.buildRequest(writeImage(t))
	require.NoError(t, err)

	assert.Equal(t, defaultModel, req.Model)
	assert.True(t, req.Stream)
	require.Len(t, req.Messages, 1)
	require.Len(t, req.Messages[0].Content, 2)
	assert.True(t, strings.HasPrefix(req.Messages[0].Content[1].ImageURL.URL, "data:image/png;base64,"))

	_, err = client.buildRequest(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestBuildPrompt(t *testing.T) {
	prompt := strings.ToLower(buildPrompt())
	for _, term := range []string{"transcribe", "plain text", "reading order"} {
		assert.Contains(t, prompt, term)
	}
}

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sse("DA 450 ", "(400)\n", "RVR 550"))
	}))
	defer srv.Close()

	client := NewClient("test-key", "", WithEndpoint(srv.URL), WithRetry(fastRetry()))
	text, err := client.Transcribe(context.Background(), writeImage(t))
	require.NoError(t, err)
	assert.Equal(t, "DA 450 (400)\nRVR 550", text)
}

func TestTranscribe_RetriesTransientStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, sse("ok"))
	}))
	defer srv.Close()

	client := NewClient("test-key", "", WithEndpoint(srv.URL), WithRetry(fastRetry()))
	text, err := client.Transcribe(context.Background(), writeImage(t))
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTranscribe_NonRetryableStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient("test-key", "", WithEndpoint(srv.URL), WithRetry(fastRetry()))
	_, err := client.Transcribe(context.Background(), writeImage(t))
	require.Error(t, err)
	errType, _ := domain.ErrorTypeOf(err)
	assert.Equal(t, domain.ErrorTypeAPI, errType)
	assert.Contains(t, err.Error(), "status 401")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTranscribe_MissingKey(t *testing.T) {
	_, err := NewClient("", "").Transcribe(context.Background(), writeImage(t))
	require.Error(t, err)
	errType, _ := domain.ErrorTypeOf(err)
	assert.Equal(t, domain.ErrorTypeAPI, errType)
}

func TestCalculateBackoff(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 5, InitialBackoff: time.Second, MaxBackoff: 3 * time.Second}
	assert.Equal(t, time.Second, calculateBackoff(0, cfg))
	assert.Equal(t, 2*time.Second, calculateBackoff(1, cfg))
	assert.Equal(t, 3*time.Second, calculateBackoff(4, cfg))
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, shouldRetry(http.StatusTooManyRequests))
	assert.True(t, shouldRetry(http.StatusBadGateway))
	assert.False(t, shouldRetry(http.StatusBadRequest))
	assert.False(t, shouldRetry(http.StatusUnauthorized))
}

func TestStreamParser_SkipsNoise(t *testing.T) {
	input := ": keep-alive\n\ndata: {not json}\n\n" + sse("a", "b")
	ch := make(chan string, 8)
	require.NoError(t, NewStreamParser(strings.NewReader(input)).ParseAll(context.Background(), ch))
	close(ch)

	var got []string
	for c := range ch {
		got = append(got, c)
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestRetryAfter(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 1, InitialBackoff: time.Second, MaxBackoff: 10 * time.Second}
	resp := func(v string) *http.Response {
		return &http.Response{Header: http.Header{"Retry-After": []string{v}}}
	}

	d, ok := retryAfter(resp("4"), cfg)
	assert.True(t, ok)
	assert.Equal(t, 4*time.Second, d)

	d, _ = retryAfter(resp("120"), cfg)
	assert.Equal(t, 10*time.Second, d)

	_, ok = retryAfter(resp("Wed, 21 Oct 2015 07:28:00 GMT"), cfg)
	assert.False(t, ok)
}

func TestStreamParser_ProviderError(t *testing.T) {
	input := "data: {\"error\":{\"code\":502,\"message\":\"upstream timeout\"}}\n\n"
	err := NewStreamParser(strings.NewReader(input)).ParseAll(context.Background(), make(chan string, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream timeout")
}
