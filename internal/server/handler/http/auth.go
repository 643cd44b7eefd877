package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/atinyakov/GophTasks/internal/models"
	"github.com/atinyakov/GophTasks/internal/service"
)

// AuthService defines the methods required for user registration and login.
type AuthService interface {
	// Register creates a new user account.
	Register(ctx context.Context, email, password string) (*models.User, error)
	// Authenticate returns the user for valid credentials and nil otherwise.
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

// AuthHandler serves the registration, login and logout pages.
type AuthHandler struct {
	*Pages
	AuthService AuthService
	Validate    *validator.Validate
}

// RegisterPage renders an empty registration form.
func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	data := h.data(w, r, "Register")
	data.Form = RegisterForm{}
	h.render(w, http.StatusOK, "register", data)
}

// Register creates an account from the submitted form and logs the new user
// in. Invalid input re-renders the form; a taken email redirects back with a
// flash message.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	form := parseRegisterForm(r)

	errs, err := fieldErrors(h.Validate.Struct(form))
	if err != nil {
		h.internalError(w, "validate register form", err)
		return
	}
	if len(errs) > 0 {
		h.registerInvalid(w, r, form, errs)
		return
	}

	user, err := h.AuthService.Register(r.Context(), form.Email, form.Password)
	var verr *service.ValidationError
	switch {
	case errors.Is(err, service.ErrDuplicateEmail):
		h.flash(w, r, "danger", "User with this email already exists.")
		h.redirect(w, r, "/auth/register")
		return
	case errors.As(err, &verr):
		h.registerInvalid(w, r, form, map[string]string{verr.Field: verr.Message})
		return
	case err != nil:
		h.internalError(w, "register user", err)
		return
	}

	if err := h.Sessions.Login(w, r, user); err != nil {
		h.internalError(w, "start session", err)
		return
	}
	h.Log.Info("user registered", zap.Int64("user_id", user.ID))
	h.flash(w, r, "success", "Registration successful!")
	h.redirect(w, r, "/dashboard")
}

func (h *AuthHandler) registerInvalid(w http.ResponseWriter, r *http.Request, form RegisterForm, errs map[string]string) {
	data := h.data(w, r, "Register")
	data.Form = RegisterForm{Email: form.Email}
	data.Errors = errs
	h.render(w, http.StatusOK, "register", data)
}

// LoginPage renders an empty login form.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	data := h.data(w, r, "Login")
	data.Form = LoginForm{}
	h.render(w, http.StatusOK, "login", data)
}

// Login checks the submitted credentials and binds the user to the session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	form := parseLoginForm(r)

	errs, err := fieldErrors(h.Validate.Struct(form))
	if err != nil {
		h.internalError(w, "validate login form", err)
		return
	}
	if len(errs) > 0 {
		data := h.data(w, r, "Login")
		data.Form = LoginForm{Email: form.Email}
		data.Errors = errs
		h.render(w, http.StatusOK, "login", data)
		return
	}

	user, err := h.AuthService.Authenticate(r.Context(), form.Email, form.Password)
	if err != nil {
		h.internalError(w, "authenticate", err)
		return
	}
	if user == nil {
		h.flash(w, r, "danger", "Invalid credentials. Please try again.")
		h.redirect(w, r, "/auth/login")
		return
	}

	if err := h.Sessions.Login(w, r, user); err != nil {
		h.internalError(w, "start session", err)
		return
	}
	h.flash(w, r, "success", "Login successful!")
	h.redirect(w, r, "/dashboard")
}

// Logout clears the session and returns to the landing page.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Logout(w, r); err != nil {
		h.internalError(w, "end session", err)
		return
	}
	h.flash(w, r, "info", "You have been logged out.")
	h.redirect(w, r, "/")
}

// Unauthorized sends anonymous page requests to the login form.
func (h *AuthHandler) Unauthorized(w http.ResponseWriter, r *http.Request) {
	h.flash(w, r, "warning", "You must be logged in to access this page.")
	h.redirect(w, r, "/auth/login")
}
