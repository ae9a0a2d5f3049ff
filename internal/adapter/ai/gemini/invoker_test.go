package gemini

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
	"github.com/fairyhunter13/ai-content-publisher/internal/generation"
	"github.com/fairyhunter13/ai-content-publisher/internal/keyring"
)

func newServer(t *testing.T, status int, body string) (*httptest.Server, *string) {
	t.Helper()
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		if !strings.Contains(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &gotKey
}

func TestInvoker_Success(t *testing.T) {
	srv, gotKey := newServer(t, http.StatusOK, `{
		"candidates":[{"content":{"role":"model","parts":[{"text":"# Kediler\n"},{"text":"Kediler bağımsızdır."}]}}],
		"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":7,"totalTokenCount":12}
	}`)
	inv := New(srv.URL, srv.Client())

	out, err := inv.Generate(context.Background(), domain.Credential{Secret: "k-123"}, "gemini-1.5-flash", "kediler")
	require.NoError(t, err)
	assert.Equal(t, "# Kediler\nKediler bağımsızdır.", out.Text)
	assert.Equal(t, 12, out.Tokens)
	assert.Equal(t, "k-123", *gotKey)
}

func TestInvoker_EstimatesTokensWhenMissing(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"merhaba dünya"}]}}]}`)
	inv := New(srv.URL, srv.Client())

	out, err := inv.Generate(context.Background(), domain.Credential{Secret: "k"}, "gemini-1.5-flash", "selam")
	require.NoError(t, err)
	assert.Positive(t, out.Tokens)
}

func TestInvoker_EmptyCandidates(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"candidates":[]}`)
	inv := New(srv.URL, srv.Client())

	out, err := inv.Generate(context.Background(), domain.Credential{Secret: "k"}, "gemini-1.5-flash", "selam")
	require.NoError(t, err)
	assert.Empty(t, out.Text)
}

func TestInvoker_QuotaErrorIsClassified(t *testing.T) {
	srv, _ := newServer(t, http.StatusTooManyRequests, `{"error":{"code":429,"message":"Resource has been exhausted (e.g. check quota).","status":"RESOURCE_EXHAUSTED"}}`)
	inv := New(srv.URL, srv.Client())

	_, err := inv.Generate(context.Background(), domain.Credential{Secret: "k"}, "gemini-1.5-flash", "selam")
	require.Error(t, err)
	var perr *generation.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 429, perr.StatusCode())
	assert.True(t, keyring.IsQuotaError(err))
}

func TestInvoker_BadRequestIsNotQuota(t *testing.T) {
	srv, _ := newServer(t, http.StatusBadRequest, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`)
	inv := New(srv.URL, srv.Client())

	_, err := inv.Generate(context.Background(), domain.Credential{Secret: "k"}, "gemini-1.5-flash", "selam")
	require.Error(t, err)
	assert.False(t, keyring.IsQuotaError(err))
}
