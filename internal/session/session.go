// Package session tracks the authenticated identity of a browser session.
//
// A session is either anonymous or bound to a user ID. The ID is resolved
// through an IdentityLoader on every request, so a session whose user no
// longer exists reads as anonymous.
package session

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
)

// CookieName is the name of the session cookie.
const CookieName = "gophtasks_session"

const (
	userIDKey = "user_id"
)

// ErrUnauthorized is returned by RequireAuthenticated for anonymous sessions.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is anything that can be bound to a session.
type Identity interface {
	GetID() int64
}

// IdentityLoader resolves a bound user ID. It returns a nil Identity and a
// nil error when the user does not exist.
type IdentityLoader interface {
	LoadIdentity(ctx context.Context, id int64) (Identity, error)
}

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Category string
	Message  string
}

func init() {
	gob.Register(Flash{})
}

// Options configures the session cookie.
type Options struct {
	// MaxAge is the cookie lifetime in seconds.
	MaxAge int
	// Secure restricts the cookie to HTTPS.
	Secure bool
}

// NewCookieStore returns a signed cookie store for secret.
func NewCookieStore(secret []byte, opts Options) *sessions.CookieStore {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   opts.MaxAge,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	store.MaxAge(opts.MaxAge)
	return store
}

// Manager binds and resolves identities on top of a sessions.Store.
type Manager struct {
	store  sessions.Store
	loader IdentityLoader
}

// NewManager constructs a Manager.
func NewManager(store sessions.Store, loader IdentityLoader) *Manager {
	return &Manager{store: store, loader: loader}
}

type freshKey struct{}

// get returns the request's session. A cookie that fails verification is
// replaced by one fresh, anonymous session, kept in the request context so
// every later call in the same request sees and saves the same object.
func (m *Manager) get(r *http.Request) *sessions.Session {
	if s, ok := r.Context().Value(freshKey{}).(*sessions.Session); ok {
		return s
	}
	s, err := m.store.Get(r, CookieName)
	if err == nil && s != nil {
		return s
	}

	s, _ = m.store.New(r, CookieName)
	if s == nil {
		s = sessions.NewSession(m.store, CookieName)
	}
	s.Values = make(map[interface{}]interface{})
	s.IsNew = true
	*r = *r.WithContext(context.WithValue(r.Context(), freshKey{}, s))
	return s
}

// Login binds the session to identity.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, identity Identity) error {
	s := m.get(r)
	s.Values[userIDKey] = identity.GetID()
	return s.Save(r, w)
}

// Logout returns the session to the anonymous state.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	s := m.get(r)
	delete(s.Values, userIDKey)
	return s.Save(r, w)
}

// boundID returns the user ID stored in the session, if any.
func (m *Manager) boundID(r *http.Request) (int64, bool) {
	id, ok := m.get(r).Values[userIDKey].(int64)
	return id, ok
}

// CurrentUser resolves the bound identity. It returns nil for anonymous
// sessions and for sessions whose user no longer exists.
func (m *Manager) CurrentUser(r *http.Request) (Identity, error) {
	id, ok := m.boundID(r)
	if !ok {
		return nil, nil
	}
	return m.loader.LoadIdentity(r.Context(), id)
}

// Resolve is CurrentUser plus cleanup: a binding to a user that no longer
// exists is dropped from the cookie.
func (m *Manager) Resolve(w http.ResponseWriter, r *http.Request) (Identity, error) {
	_, bound := m.boundID(r)
	identity, err := m.CurrentUser(r)
	if err != nil {
		return nil, err
	}
	if identity == nil && bound {
		if err := m.Logout(w, r); err != nil {
			return nil, err
		}
	}
	return identity, nil
}

// RequireAuthenticated returns the current identity or ErrUnauthorized.
func (m *Manager) RequireAuthenticated(r *http.Request) (Identity, error) {
	identity, err := m.CurrentUser(r)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, ErrUnauthorized
	}
	return identity, nil
}

// AddFlash queues a message for the next page render.
func (m *Manager) AddFlash(w http.ResponseWriter, r *http.Request, category, message string) error {
	s := m.get(r)
	s.AddFlash(Flash{Category: category, Message: message})
	return s.Save(r, w)
}

// Flashes pops the queued messages. It must run before the response body is
// written. The messages are returned even when rewriting the cookie fails.
func (m *Manager) Flashes(w http.ResponseWriter, r *http.Request) ([]Flash, error) {
	s := m.get(r)
	raw := s.Flashes()
	if len(raw) == 0 {
		return nil, nil
	}

	out := make([]Flash, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(Flash); ok {
			out = append(out, f)
		}
	}
	if err := s.Save(r, w); err != nil {
		return out, fmt.Errorf("save session: %w", err)
	}
	return out, nil
}
