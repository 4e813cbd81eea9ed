package textextract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsSupported(t *testing.T) {
	require.True(t, IsSupported("application/pdf"))
	require.True(t, IsSupported(" Application/PDF "))
	require.False(t, IsSupported("image/png"))
	require.False(t, IsSupported(""))
}

func TestExtract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/tika", r.URL.Path)
		require.Equal(t, "application/pdf", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte("  Flight LIS-MAD, 2026-05-02 09:40\n"))
	}))
	defer server.Close()

	extractor := NewExtractor(Config{ServerURL: server.URL})
	text, err := extractor.Extract(context.Background(), "application/pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	require.Equal(t, "Flight LIS-MAD, 2026-05-02 09:40", text)
}

func TestExtractTruncates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("abcdefghij"))
	}))
	defer server.Close()

	extractor := NewExtractor(Config{ServerURL: server.URL, MaxChars: 4})
	text, err := extractor.Extract(context.Background(), "text/plain", []byte("x"))
	require.NoError(t, err)
	require.Equal(t, "abcd", text)
}

func TestExtractServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	extractor := NewExtractor(Config{ServerURL: server.URL})
	_, err := extractor.Extract(context.Background(), "application/pdf", []byte("x"))
	require.Error(t, err)
}
