// Package storage keeps the command-line client's state between runs: the
// server it talks to, the logged-in email and the session cookie.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultFile is the state file used when none is given.
const DefaultFile = "gophtasks-session.json"

// LocalStorage is the on-disk client state.
type LocalStorage struct {
	BaseURL string         `json:"base_url"`
	Email   string         `json:"email,omitempty"`
	Cookies []StoredCookie `json:"cookies"`

	mu   sync.Mutex
	path string
}

// New returns an empty LocalStorage bound to path.
func New(path string) *LocalStorage {
	return &LocalStorage{path: path, Cookies: []StoredCookie{}}
}

// Load reads the state file. A missing file leaves the storage empty.
func (ls *LocalStorage) Load() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	data, err := os.ReadFile(ls.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			ls.Cookies = []StoredCookie{}
			return nil
		}
		return fmt.Errorf("read state: %w", err)
	}
	if err := json.Unmarshal(data, ls); err != nil {
		return fmt.Errorf("parse state %s: %w", ls.path, err)
	}
	return nil
}

// Save writes the state file, readable by the owner only.
func (ls *LocalStorage) Save() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if dir := filepath.Dir(ls.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(ls, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(ls.path, data, 0o600)
}

// Jar returns a cookie jar seeded with the stored cookies for baseURL.
// Cookies saved for a different server are ignored.
func (ls *LocalStorage) Jar(baseURL string) (http.CookieJar, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.BaseURL != baseURL {
		return jar, nil
	}

	now := time.Now()
	cookies := make([]*http.Cookie, 0, len(ls.Cookies))
	for _, c := range ls.Cookies {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: c.Path, Expires: c.Expires})
	}
	jar.SetCookies(u, cookies)
	return jar, nil
}

// Capture copies the jar's cookies for baseURL into the storage.
func (ls *LocalStorage) Capture(jar http.CookieJar, baseURL, email string) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.BaseURL = baseURL
	ls.Email = email
	ls.Cookies = ls.Cookies[:0]
	for _, c := range jar.Cookies(u) {
		ls.Cookies = append(ls.Cookies, StoredCookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	return nil
}

// Clear forgets the session.
func (ls *LocalStorage) Clear() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.Email = ""
	ls.Cookies = []StoredCookie{}
}

// LoggedIn reports whether a session cookie is stored.
func (ls *LocalStorage) LoggedIn() bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return len(ls.Cookies) > 0
}
