package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/GophTasks/internal/credentials"
	"github.com/atinyakov/GophTasks/internal/db"
	"github.com/atinyakov/GophTasks/internal/middleware"
	"github.com/atinyakov/GophTasks/internal/models"
	"github.com/atinyakov/GophTasks/internal/repository"
	handler "github.com/atinyakov/GophTasks/internal/server/handler/http"
	"github.com/atinyakov/GophTasks/internal/service"
	"github.com/atinyakov/GophTasks/internal/session"
)

// newTestServer wires the full stack on a fresh SQLite database.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	conn, err := db.InitSQLite(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_, err = db.Migrate(context.Background(), conn, db.SQLite)
	require.NoError(t, err)

	logger := zap.NewNop()
	users := service.NewUserService(repository.NewUserRepository(conn), credentials.NewStore(bcrypt.MinCost))
	tasks := service.NewTaskService(repository.NewTaskRepository(conn))
	store := session.NewCookieStore([]byte("routes-test-secret-0123456789abc"), session.Options{MaxAge: 3600})
	sessions := session.NewManager(store, users)

	views, err := handler.NewRenderer()
	require.NoError(t, err)
	pages := &handler.Pages{Views: views, Sessions: sessions, Log: logger}
	validate := handler.NewValidator()

	reg := prometheus.NewRegistry()
	router := handler.NewRouter(
		&handler.AuthHandler{Pages: pages, AuthService: users, Validate: validate},
		&handler.TaskHandler{Pages: pages, TaskService: tasks, Validate: validate},
		&handler.APIHandler{TaskService: tasks, Log: logger},
		&handler.OpsHandler{DB: conn, Gatherer: reg, Log: logger},
		sessions,
		middleware.NewMetrics(reg),
		logger,
	)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

// newClient returns a cookie-keeping client that does not follow redirects.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func register(t *testing.T, c *http.Client, base, email string) {
	t.Helper()
	resp, err := c.PostForm(base+"/auth/register", url.Values{
		"email":            {email},
		"password":         {"password123"},
		"confirm_password": {"password123"},
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/dashboard", resp.Header.Get("Location"))
}

func doJSON(t *testing.T, c *http.Client, method, target, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, target, r)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestRouter_TaskLifecycle(t *testing.T) {
	srv := newTestServer(t)
	alice := newClient(t)
	register(t, alice, srv.URL, "alice@example.com")

	status, body := doJSON(t, alice, http.MethodPost, srv.URL+"/api/tasks", `{"name":"Write report","due_date":"2024-06-01"}`)
	require.Equal(t, http.StatusCreated, status, string(body))

	var created models.TaskRecord
	require.NoError(t, json.Unmarshal(body, &created))
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Write report", created.Name)
	assert.False(t, created.Finished)
	assert.Equal(t, "2024-06-01T00:00:00", created.DueDate)
	assert.True(t, strings.HasSuffix(created.TimeStamp, "Z"))

	status, body = doJSON(t, alice, http.MethodGet, srv.URL+"/api/tasks", "")
	require.Equal(t, http.StatusOK, status)
	var list []models.TaskRecord
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, []models.TaskRecord{created}, list)

	status, body = doJSON(t, alice, http.MethodPost, srv.URL+"/api/tasks", `{"name":"x"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `{"error":"Missing required fields: name and due_date"}`, string(body))

	status, body = doJSON(t, alice, http.MethodPost, srv.URL+"/api/tasks", `{"name":"x","due_date":"not-a-date"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `{"error":"Invalid date format. Use ISO 8601 (YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS)"}`, string(body))

	taskURL := fmt.Sprintf("%s/api/tasks/%d", srv.URL, created.ID)
	status, body = doJSON(t, alice, http.MethodPut, taskURL, `{"finished":true}`)
	require.Equal(t, http.StatusOK, status, string(body))
	var updated models.TaskRecord
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.True(t, updated.Finished)
	assert.Equal(t, created.TimeStamp, updated.TimeStamp)

	status, _ = doJSON(t, alice, http.MethodDelete, taskURL, "")
	assert.Equal(t, http.StatusNoContent, status)

	status, body = doJSON(t, alice, http.MethodGet, taskURL, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.JSONEq(t, `{"error":"task not found"}`, string(body))
}

func TestRouter_Isolation(t *testing.T) {
	srv := newTestServer(t)
	alice, bob := newClient(t), newClient(t)
	register(t, alice, srv.URL, "alice@example.com")
	register(t, bob, srv.URL, "bob@example.com")

	status, body := doJSON(t, alice, http.MethodPost, srv.URL+"/api/tasks", `{"name":"secret","due_date":"2024-06-01"}`)
	require.Equal(t, http.StatusCreated, status)
	var task models.TaskRecord
	require.NoError(t, json.Unmarshal(body, &task))
	taskURL := fmt.Sprintf("%s/api/tasks/%d", srv.URL, task.ID)

	status, body = doJSON(t, bob, http.MethodGet, srv.URL+"/api/tasks", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(body))

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		status, body = doJSON(t, bob, method, taskURL, "")
		assert.Equal(t, http.StatusForbidden, status, method)
		assert.JSONEq(t, `{"error":"forbidden"}`, string(body), method)
	}
	status, _ = doJSON(t, bob, http.MethodPut, taskURL, `{"name":"mine now"}`)
	assert.Equal(t, http.StatusForbidden, status)

	resp, err := bob.PostForm(fmt.Sprintf("%s/delete_task/%d", srv.URL, task.ID), nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))

	// Alice's task is untouched.
	status, body = doJSON(t, alice, http.MethodGet, taskURL, "")
	require.Equal(t, http.StatusOK, status)
	var again models.TaskRecord
	require.NoError(t, json.Unmarshal(body, &again))
	assert.Equal(t, task, again)
}

func TestRouter_Anonymous(t *testing.T) {
	srv := newTestServer(t)
	anon := newClient(t)

	status, body := doJSON(t, anon, http.MethodGet, srv.URL+"/api/tasks", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.JSONEq(t, `{"error":"authentication required"}`, string(body))

	for _, path := range []string{"/dashboard", "/add_task", "/update_task/1", "/auth/logout"} {
		resp, err := anon.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusFound, resp.StatusCode, path)
		assert.Equal(t, "/auth/login", resp.Header.Get("Location"), path)
	}

	resp, err := anon.Get(srv.URL + "/auth/login")
	require.NoError(t, err)
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(page), "You must be logged in to access this page.")

	for _, path := range []string{"/", "/about", "/auth/register"} {
		resp, err := anon.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestRouter_LoginLogout(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t)
	register(t, c, srv.URL, "carol@example.com")

	resp, err := c.Get(srv.URL + "/auth/logout")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	status, _ := doJSON(t, c, http.MethodGet, srv.URL+"/api/tasks", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	resp, err = c.PostForm(srv.URL+"/auth/login", url.Values{"email": {"carol@example.com"}, "password": {"wrong-pass"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "/auth/login", resp.Header.Get("Location"))

	resp, err = c.PostForm(srv.URL+"/auth/login", url.Values{"email": {"carol@example.com"}, "password": {"password123"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))

	resp, err = c.Get(srv.URL + "/dashboard")
	require.NoError(t, err)
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(page), "Login successful!")

	resp, err = c.PostForm(srv.URL+"/auth/register", url.Values{
		"email":            {"carol@example.com"},
		"password":         {"password123"},
		"confirm_password": {"password123"},
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "/auth/register", resp.Header.Get("Location"))
}

func TestRouter_PageTaskFlow(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t)
	register(t, c, srv.URL, "dave@example.com")

	resp, err := c.PostForm(srv.URL+"/add_task", url.Values{"name": {"Water plants"}, "due_date": {"2024-08-15"}})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	status, body := doJSON(t, c, http.MethodGet, srv.URL+"/api/tasks", "")
	require.Equal(t, http.StatusOK, status)
	var list []models.TaskRecord
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "2024-08-15T00:00:00", list[0].DueDate)

	resp, err = c.PostForm(fmt.Sprintf("%s/update_task/%d", srv.URL, list[0].ID), url.Values{
		"name": {"Water plants"}, "due_date": {"2024-08-16"}, "finished": {"y"},
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp, err = c.Get(srv.URL + "/dashboard")
	require.NoError(t, err)
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(page), "Task updated successfully!")
	assert.Contains(t, string(page), "2024-08-16")

	resp, err = c.Get(srv.URL + "/update_task/999")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_Ops(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t)

	resp, err := c.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/tasks", bytes.NewBufferString("name=x"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/plain")
	register(t, c, srv.URL, "erin@example.com")
	resp, err = c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	resp, err = c.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	metrics, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(metrics), `http_requests_total{method="GET",route="/healthz",status="200"} 1`)
	assert.Contains(t, string(metrics), `route="/auth/register"`)
}

func TestRouter_LoginOverStaleCookie(t *testing.T) {
	srv := newTestServer(t)
	register(t, newClient(t), srv.URL, "frank@example.com")

	c := newClient(t)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	// Signed with a key the server no longer has.
	c.Jar.SetCookies(u, []*http.Cookie{{Name: session.CookieName, Value: "stale-signature", Path: "/"}})

	resp, err := c.PostForm(srv.URL+"/auth/login", url.Values{"email": {"frank@example.com"}, "password": {"password123"}})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "/dashboard", resp.Header.Get("Location"))

	resp, err = c.Get(srv.URL + "/dashboard")
	require.NoError(t, err)
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(page), "Login successful!")
}
