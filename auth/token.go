package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/cesium-ml/baselayer/config"
	"github.com/cesium-ml/baselayer/logger"
)

const TOKEN_KEY = "auth_token"

var ErrTokenUnavailable = errors.New("auth: token unavailable")

// TokenStore keeps the socket token between runs. Get returns "" when no
// token is stored.
type TokenStore interface {
	Get() (string, error)
	Set(token string) error
	Erase() error
}

type TokenFetcher interface {
	Fetch(ctx context.Context) (string, error)
}

type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
}

func NewMemoryTokenStore(token string) *MemoryTokenStore {
	return &MemoryTokenStore{token: token}
}

func (m *MemoryTokenStore) Get() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemoryTokenStore) Set(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryTokenStore) Erase() error {
	return m.Set("")
}

// FileTokenStore persists tokens in a small YAML key/value file.
type FileTokenStore struct {
	mu   sync.Mutex
	path string
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

func (f *FileTokenStore) load() (map[string]string, error) {
	values := map[string]string{}

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	if values == nil {
		values = map[string]string{}
	}
	return values, nil
}

func (f *FileTokenStore) save(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	data, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to marshal token file: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

func (f *FileTokenStore) Get() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return "", err
	}
	return values[TOKEN_KEY], nil
}

func (f *FileTokenStore) Set(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		values = map[string]string{}
	}
	values[TOKEN_KEY] = token
	return f.save(values)
}

func (f *FileTokenStore) Erase() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := values[TOKEN_KEY]; !ok {
		return nil
	}
	delete(values, TOKEN_KEY)
	return f.save(values)
}

type tokenResponse struct {
	Status string `json:"status"`
	Data   struct {
		Token string `json:"token"`
	} `json:"data"`
}

// HTTPTokenFetcher asks the token endpoint for a fresh socket token, sending
// the session cookie so the server knows who is asking.
type HTTPTokenFetcher struct {
	URL    string
	Cookie *http.Cookie
	Client *http.Client
}

func NewHTTPTokenFetcher(cfg *config.AuthConfig) *HTTPTokenFetcher {
	f := &HTTPTokenFetcher{
		URL:    cfg.TokenURL,
		Client: &http.Client{Timeout: cfg.GetRequestTimeout()},
	}
	if cfg.SessionCookie != "" {
		f.Cookie = &http.Cookie{Name: cfg.SessionCookieName, Value: cfg.SessionCookie}
	}
	return f
}

func (f *HTTPTokenFetcher) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.Cookie != nil {
		req.AddCookie(f.Cookie)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("token endpoint returned %s", resp.Status)
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if body.Data.Token == "" {
		return "", fmt.Errorf("token response has no data.token")
	}
	return body.Data.Token, nil
}

// TokenSource resolves the token to present: the stored one if any,
// otherwise a freshly fetched one, which is then stored.
type TokenSource struct {
	store   TokenStore
	fetcher TokenFetcher
	logger  logger.Logger
}

func NewTokenSource(store TokenStore, fetcher TokenFetcher, logger logger.Logger) *TokenSource {
	return &TokenSource{store: store, fetcher: fetcher, logger: logger}
}

func (t *TokenSource) Resolve(ctx context.Context) (string, error) {
	token, err := t.store.Get()
	if err != nil {
		t.logger.Warn("Failed to read stored token: %v", err)
	}
	if token != "" {
		return token, nil
	}

	token, err = t.fetcher.Fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenUnavailable, err)
	}

	if err := t.store.Set(token); err != nil {
		t.logger.Warn("Failed to store token: %v", err)
	}
	return token, nil
}

// Invalidate forgets the stored token so the next Resolve fetches anew.
func (t *TokenSource) Invalidate() error {
	return t.store.Erase()
}
