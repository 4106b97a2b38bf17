package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgharvest/pkg/config"
	errs "imgharvest/pkg/errors"
	"imgharvest/pkg/logger"
)

func newTestClient(timeout time.Duration) *Client {
	return NewClient(timeout, logger.NewTestLogger())
}

func requireNetworkError(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.KindNetwork, e.Kind)
	assert.Equal(t, code, e.Code)
}

func TestFetchText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, "<html><body>hello</body></html>")
	}))
	defer server.Close()

	client := newTestClient(5 * time.Second)
	client.SetHeader("X-Test", "yes")

	body, err := client.FetchText(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html><body>hello</body></html>", body)
}

func TestFetchTextNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := newTestClient(5*time.Second).FetchText(context.Background(), server.URL)
	requireNetworkError(t, err, http.StatusNotFound)
}

func TestFetchTextConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(time.Second).FetchText(context.Background(), url)
	requireNetworkError(t, err, 0)
}

func TestFetchTextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	start := time.Now()
	_, err := newTestClient(50*time.Millisecond).FetchText(context.Background(), server.URL)
	requireNetworkError(t, err, 0)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetchTextInvalidURL(t *testing.T) {
	_, err := newTestClient(time.Second).FetchText(context.Background(), "://bad")
	requireNetworkError(t, err, 0)
}

func TestFetchTextCharsetConversion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=ISO-8859-1")
		_, _ = w.Write([]byte{'c', 'a', 'f', 0xe9})
	}))
	defer server.Close()

	body, err := newTestClient(5*time.Second).FetchText(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "café", body)
}

func TestFetchTextCompressedBodies(t *testing.T) {
	const page = "<html><body><div class=\"card\">compressed</div></body></html>"

	gzipped := func() []byte {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write([]byte(page))
		_ = zw.Close()
		return buf.Bytes()
	}()
	brotlied := func() []byte {
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		_, _ = bw.Write([]byte(page))
		_ = bw.Close()
		return buf.Bytes()
	}()

	tests := []struct {
		name     string
		encoding string
		payload  []byte
	}{
		{"gzip", "gzip", gzipped},
		{"brotli", "br", brotlied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Contains(t, r.Header.Get("Accept-Encoding"), tt.encoding)
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.Header().Set("Content-Encoding", tt.encoding)
				_, _ = w.Write(tt.payload)
			}))
			defer server.Close()

			body, err := newTestClient(5*time.Second).FetchText(context.Background(), server.URL)
			require.NoError(t, err)
			assert.Equal(t, page, body)
		})
	}
}

func TestFetchTextUnsupportedEncoding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "zstd")
		_, _ = w.Write([]byte("???"))
	}))
	defer server.Close()

	_, err := newTestClient(5*time.Second).FetchText(context.Background(), server.URL)
	requireNetworkError(t, err, http.StatusOK)
}

func TestFetchStream(t *testing.T) {
	payload := bytes.Repeat([]byte{0x89, 'P', 'N', 'G'}, 1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	stream, err := newTestClient(5*time.Second).FetchStream(context.Background(), server.URL+"/a.png")
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, "image/png", stream.ContentType)
	assert.Equal(t, int64(len(payload)), stream.ContentLength)
	assert.Equal(t, server.URL+"/a.png", stream.URL)

	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestFetchStreamCanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(5*time.Second).FetchStream(ctx, server.URL)
	requireNetworkError(t, err, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSetHeaders(t *testing.T) {
	client := newTestClient(time.Second)
	client.SetHeaders(map[string]string{"Referer": "https://example.com", "User-Agent": "custom"})

	assert.Equal(t, "https://example.com", client.headers["Referer"])
	assert.Equal(t, "custom", client.headers["User-Agent"])
}

func TestNewClientFromConfig(t *testing.T) {
	var gotUA, gotReferer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClientFromConfig(config.HTTPConfig{
		Timeout:   time.Second,
		UserAgent: "imgharvest-test/1.0",
		Headers:   map[string]string{"Referer": "https://example.com/"},
	}, logger.NewNopLogger())

	_, err := client.FetchText(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "imgharvest-test/1.0", gotUA)
	assert.Equal(t, "https://example.com/", gotReferer)
}
