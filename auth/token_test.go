package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesium-ml/baselayer/config"
	"github.com/cesium-ml/baselayer/logger"
)

type stubFetcher struct {
	token string
	err   error
	calls int
}

func (s *stubFetcher) Fetch(ctx context.Context) (string, error) {
	s.calls++
	return s.token, s.err
}

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "auth_token.yaml")
	store := NewFileTokenStore(path)

	token, err := store.Get()
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, store.Set("abc.def.ghi"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "auth_token: abc.def.ghi")

	token, err = NewFileTokenStore(path).Get()
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	require.NoError(t, store.Erase())
	token, err = store.Get()
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, store.Erase())
}

func TestFileTokenStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth_token.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth_token: [unterminated"), 0600))

	_, err := NewFileTokenStore(path).Get()
	assert.Error(t, err)

	// Set recovers by rewriting the file.
	require.NoError(t, NewFileTokenStore(path).Set("fresh"))
	token, err := NewFileTokenStore(path).Get()
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)
}

func TestHTTPTokenFetcher(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantToken string
		wantErr   bool
	}{
		{
			name:      "success",
			status:    http.StatusOK,
			body:      `{"status":"success","data":{"token":"tok-1"}}`,
			wantToken: "tok-1",
		},
		{
			name:    "gateway unavailable",
			status:  http.StatusBadGateway,
			body:    `<html>bad gateway</html>`,
			wantErr: true,
		},
		{
			name:    "unauthorized",
			status:  http.StatusUnauthorized,
			body:    `{"status":"error","message":"not logged in"}`,
			wantErr: true,
		},
		{
			name:    "missing token",
			status:  http.StatusOK,
			body:    `{"status":"success","data":{}}`,
			wantErr: true,
		},
		{
			name:    "not json",
			status:  http.StatusOK,
			body:    `token`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotCookie string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if c, err := r.Cookie("session"); err == nil {
					gotCookie = c.Value
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			fetcher := NewHTTPTokenFetcher(&config.AuthConfig{
				TokenURL:          srv.URL,
				SessionCookieName: "session",
				SessionCookie:     "s3cret",
				RequestTimeout:    1000,
			})

			token, err := fetcher.Fetch(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, token)
			assert.Equal(t, "s3cret", gotCookie)
		})
	}
}

func TestTokenSourceResolve(t *testing.T) {
	t.Run("stored token wins", func(t *testing.T) {
		fetcher := &stubFetcher{token: "fetched"}
		source := NewTokenSource(NewMemoryTokenStore("stored"), fetcher, logger.Nop())

		token, err := source.Resolve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "stored", token)
		assert.Equal(t, 0, fetcher.calls)
	})

	t.Run("fetched token is stored", func(t *testing.T) {
		store := NewMemoryTokenStore("")
		fetcher := &stubFetcher{token: "fetched"}
		source := NewTokenSource(store, fetcher, logger.Nop())

		token, err := source.Resolve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "fetched", token)

		stored, _ := store.Get()
		assert.Equal(t, "fetched", stored)

		_, err = source.Resolve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, fetcher.calls)
	})

	t.Run("fetch failure", func(t *testing.T) {
		source := NewTokenSource(NewMemoryTokenStore(""), &stubFetcher{err: errors.New("502")}, logger.Nop())

		_, err := source.Resolve(context.Background())
		assert.ErrorIs(t, err, ErrTokenUnavailable)
	})

	t.Run("invalidate", func(t *testing.T) {
		store := NewMemoryTokenStore("stale")
		source := NewTokenSource(store, &stubFetcher{token: "new"}, logger.Nop())

		require.NoError(t, source.Invalidate())
		token, err := source.Resolve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "new", token)
	})
}

func TestHTTPTokenFetcherTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	fetcher := NewHTTPTokenFetcher(&config.AuthConfig{TokenURL: srv.URL, RequestTimeout: 50})

	start := time.Now()
	_, err := fetcher.Fetch(context.Background())
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
