// Package api is a Go client for the GophTasks server. It drives the login
// and registration forms to obtain a session cookie and then talks to the
// JSON task API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/atinyakov/GophTasks/internal/models"
)

var (
	// ErrInvalidCredentials is returned by Login when the server rejects the
	// email and password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned by Register for an existing email.
	ErrEmailTaken = errors.New("user with this email already exists")
	// ErrFormRejected is returned when the server re-renders a form because
	// of invalid input.
	ErrFormRejected = errors.New("form rejected: check the email format, an 8+ character password and the confirmation")
)

// Error is a non-2xx answer from the JSON API.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
}

// Client talks to one server. The underlying http.Client must carry a
// cookie jar to keep the session.
type Client struct {
	HTTP    *http.Client
	BaseURL string
}

// New returns a Client that keeps cookies in jar and never follows
// redirects, so form outcomes can be read from the Location header.
func New(baseURL string, jar http.CookieJar) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Register creates an account. The server logs the new user in.
func (c *Client) Register(ctx context.Context, email, password string) error {
	loc, err := c.submitForm(ctx, "/auth/register", url.Values{
		"email":            {email},
		"password":         {password},
		"confirm_password": {password},
	})
	if err != nil {
		return err
	}
	switch loc {
	case "/dashboard":
		return nil
	case "/auth/register":
		return ErrEmailTaken
	}
	return ErrFormRejected
}

// Login starts a session.
func (c *Client) Login(ctx context.Context, email, password string) error {
	loc, err := c.submitForm(ctx, "/auth/login", url.Values{
		"email":    {email},
		"password": {password},
	})
	if err != nil {
		return err
	}
	switch loc {
	case "/dashboard":
		return nil
	case "/auth/login":
		return ErrInvalidCredentials
	}
	return ErrFormRejected
}

// Logout ends the session.
func (c *Client) Logout(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/auth/logout", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// submitForm posts values and returns the redirect target, or "" when the
// server answered with a page.
func (c *Client) submitForm(ctx context.Context, path string, values url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, strings.NewReader(values.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		return resp.Header.Get("Location"), nil
	case resp.StatusCode == http.StatusOK:
		return "", nil
	}
	return "", &Error{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
}

// ListTasks returns the user's tasks.
func (c *Client) ListTasks(ctx context.Context) ([]models.TaskRecord, error) {
	var out []models.TaskRecord
	if err := c.doJSON(ctx, http.MethodGet, "/api/tasks", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTask adds a task due at dueDate (ISO-8601).
func (c *Client) CreateTask(ctx context.Context, name, dueDate string) (*models.TaskRecord, error) {
	body := map[string]string{"name": name, "due_date": dueDate}
	var out models.TaskRecord
	if err := c.doJSON(ctx, http.MethodPost, "/api/tasks", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TaskPatch lists the fields to change. Nil fields are left as is.
type TaskPatch struct {
	Name     *string `json:"name,omitempty"`
	DueDate  *string `json:"due_date,omitempty"`
	Finished *bool   `json:"finished,omitempty"`
}

// UpdateTask changes the given fields of a task.
func (c *Client) UpdateTask(ctx context.Context, id int64, patch TaskPatch) (*models.TaskRecord, error) {
	var out models.TaskRecord
	if err := c.doJSON(ctx, http.MethodPut, taskPath(id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, taskPath(id), nil, nil)
}

func taskPath(id int64) string {
	return "/api/tasks/" + strconv.FormatInt(id, 10)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(data))
		}
		return &Error{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}
	return nil
}
