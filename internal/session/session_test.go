package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIdentity int64

func (f fakeIdentity) GetID() int64 { return int64(f) }

type fakeLoader struct {
	known map[int64]bool
	err   error
	calls int
}

func (f *fakeLoader) LoadIdentity(_ context.Context, id int64) (Identity, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if !f.known[id] {
		return nil, nil
	}
	return fakeIdentity(id), nil
}

func newTestManager(loader IdentityLoader) *Manager {
	store := NewCookieStore([]byte("0123456789abcdef0123456789abcdef"), Options{MaxAge: 3600})
	return NewManager(store, loader)
}

// carry copies the cookies set in rec onto a new request.
func carry(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestAnonymousByDefault(t *testing.T) {
	m := newTestManager(&fakeLoader{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	id, err := m.CurrentUser(req)
	require.NoError(t, err)
	assert.Nil(t, id)

	_, err = m.RequireAuthenticated(req)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLoginLogout(t *testing.T) {
	loader := &fakeLoader{known: map[int64]bool{42: true}}
	m := newTestManager(loader)

	rec := httptest.NewRecorder()
	require.NoError(t, m.Login(rec, httptest.NewRequest(http.MethodPost, "/", nil), fakeIdentity(42)))

	req := carry(rec)
	id, err := m.RequireAuthenticated(req)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id.GetID())

	// Resolved on every request, never cached.
	req = carry(rec)
	_, _ = m.CurrentUser(req)
	assert.Equal(t, 2, loader.calls)

	out := httptest.NewRecorder()
	require.NoError(t, m.Logout(out, carry(rec)))

	id, err = m.CurrentUser(carry(out))
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestDeletedUserIsAnonymous(t *testing.T) {
	loader := &fakeLoader{known: map[int64]bool{7: true}}
	m := newTestManager(loader)

	rec := httptest.NewRecorder()
	require.NoError(t, m.Login(rec, httptest.NewRequest(http.MethodPost, "/", nil), fakeIdentity(7)))

	delete(loader.known, 7)

	_, err := m.RequireAuthenticated(carry(rec))
	assert.ErrorIs(t, err, ErrUnauthorized)

	cleanup := httptest.NewRecorder()
	id, err := m.Resolve(cleanup, carry(rec))
	require.NoError(t, err)
	assert.Nil(t, id)

	// The stale binding is gone from the rewritten cookie.
	_, bound := m.boundID(carry(cleanup))
	assert.False(t, bound)
}

func TestLoaderError(t *testing.T) {
	m := newTestManager(&fakeLoader{err: errors.New("db down")})

	rec := httptest.NewRecorder()
	require.NoError(t, m.Login(rec, httptest.NewRequest(http.MethodPost, "/", nil), fakeIdentity(1)))

	_, err := m.RequireAuthenticated(carry(rec))
	assert.EqualError(t, err, "db down")
}

func TestTamperedCookieIsAnonymous(t *testing.T) {
	m := newTestManager(&fakeLoader{known: map[int64]bool{1: true}})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "forged"})

	id, err := m.CurrentUser(req)
	require.NoError(t, err)
	assert.Nil(t, id)
}

// latest copies the last cookie set per name in rec onto a new request, as a
// browser would.
func latest(rec *httptest.ResponseRecorder) *http.Request {
	byName := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		byName[c.Name] = c
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range byName {
		req.AddCookie(c)
	}
	return req
}

func TestForeignKeyCookie_LoginThenFlashKeepsLogin(t *testing.T) {
	loader := &fakeLoader{known: map[int64]bool{42: true}}
	m := newTestManager(loader)

	// A cookie signed before a key rotation.
	old := NewManager(NewCookieStore([]byte("ffffffffffffffffffffffffffffffff"), Options{MaxAge: 3600}), loader)
	oldRec := httptest.NewRecorder()
	require.NoError(t, old.Login(oldRec, httptest.NewRequest(http.MethodGet, "/", nil), fakeIdentity(7)))

	req := latest(oldRec)
	req.Method = http.MethodPost
	rec := httptest.NewRecorder()

	id, err := m.Resolve(rec, req)
	require.NoError(t, err)
	assert.Nil(t, id)

	require.NoError(t, m.Login(rec, req, fakeIdentity(42)))
	require.NoError(t, m.AddFlash(rec, req, "success", "Login successful!"))

	next := latest(rec)
	id, err = m.CurrentUser(next)
	require.NoError(t, err)
	require.NotNil(t, id, "login must survive the flash written after it")
	assert.Equal(t, int64(42), id.GetID())

	flashes, err := m.Flashes(httptest.NewRecorder(), next)
	require.NoError(t, err)
	require.Len(t, flashes, 1)
	assert.Equal(t, "Login successful!", flashes[0].Message)
}

func TestFlashes(t *testing.T) {
	m := newTestManager(&fakeLoader{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	require.NoError(t, m.AddFlash(rec, req, "success", "Task added successfully!"))

	next := httptest.NewRecorder()
	flashes, err := m.Flashes(next, carry(rec))
	require.NoError(t, err)
	require.Len(t, flashes, 1)
	assert.Equal(t, Flash{Category: "success", Message: "Task added successfully!"}, flashes[0])

	// Popped: the rewritten cookie carries none.
	flashes, err = m.Flashes(httptest.NewRecorder(), carry(next))
	require.NoError(t, err)
	assert.Empty(t, flashes)
}

func TestFlashes_SaveFailure(t *testing.T) {
	m := newTestManager(&fakeLoader{})
	rec := httptest.NewRecorder()
	require.NoError(t, m.AddFlash(rec, httptest.NewRequest(http.MethodPost, "/", nil), "success", "Task deleted successfully!"))

	req := carry(rec)
	m.get(req).Values["unencodable"] = make(chan int)

	flashes, err := m.Flashes(httptest.NewRecorder(), req)
	require.Error(t, err)
	require.Len(t, flashes, 1)
	assert.Equal(t, "Task deleted successfully!", flashes[0].Message)
}
