package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/GophTasks/internal/middleware"
	"github.com/atinyakov/GophTasks/internal/models"
	"github.com/atinyakov/GophTasks/internal/session"
)

type stubLoader struct{}

func (stubLoader) LoadIdentity(_ context.Context, id int64) (session.Identity, error) {
	return &models.User{ID: id}, nil
}

func newTestPages(t *testing.T) *Pages {
	t.Helper()
	views, err := NewRenderer()
	require.NoError(t, err)
	store := session.NewCookieStore([]byte("test-secret-key-0123456789abcdef"), session.Options{MaxAge: 3600})
	return &Pages{
		Views:    views,
		Sessions: session.NewManager(store, stubLoader{}),
		Log:      zap.NewNop(),
	}
}

// asUser marks the request as made by userID.
func asUser(r *http.Request, userID int64) *http.Request {
	return r.WithContext(middleware.WithIdentity(r.Context(), &models.User{ID: userID}))
}

// withID sets the {id} route parameter.
func withID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

type mockTaskService struct {
	ListFunc     func(ctx context.Context, userID int64) ([]models.Task, error)
	CreateFunc   func(ctx context.Context, userID int64, name string, due time.Time) (*models.Task, error)
	GetOwnedFunc func(ctx context.Context, taskID, requesterID int64) (*models.Task, error)
	UpdateFunc   func(ctx context.Context, taskID, requesterID int64, upd models.TaskUpdate) (*models.Task, error)
	DeleteFunc   func(ctx context.Context, taskID, requesterID int64) error
}

func (m *mockTaskService) ListForUser(ctx context.Context, userID int64) ([]models.Task, error) {
	return m.ListFunc(ctx, userID)
}

func (m *mockTaskService) Create(ctx context.Context, userID int64, name string, due time.Time) (*models.Task, error) {
	return m.CreateFunc(ctx, userID, name, due)
}

func (m *mockTaskService) GetOwned(ctx context.Context, taskID, requesterID int64) (*models.Task, error) {
	return m.GetOwnedFunc(ctx, taskID, requesterID)
}

func (m *mockTaskService) Update(ctx context.Context, taskID, requesterID int64, upd models.TaskUpdate) (*models.Task, error) {
	return m.UpdateFunc(ctx, taskID, requesterID, upd)
}

func (m *mockTaskService) Delete(ctx context.Context, taskID, requesterID int64) error {
	return m.DeleteFunc(ctx, taskID, requesterID)
}

type mockAuthService struct {
	RegisterFunc     func(ctx context.Context, email, password string) (*models.User, error)
	AuthenticateFunc func(ctx context.Context, email, password string) (*models.User, error)
}

func (m *mockAuthService) Register(ctx context.Context, email, password string) (*models.User, error) {
	return m.RegisterFunc(ctx, email, password)
}

func (m *mockAuthService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	return m.AuthenticateFunc(ctx, email, password)
}
