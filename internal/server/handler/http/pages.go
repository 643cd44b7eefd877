package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/GophTasks/internal/middleware"
	"github.com/atinyakov/GophTasks/internal/session"
)

// SessionManager is the part of the session layer the page handlers use.
type SessionManager interface {
	Login(w http.ResponseWriter, r *http.Request, identity session.Identity) error
	Logout(w http.ResponseWriter, r *http.Request) error
	AddFlash(w http.ResponseWriter, r *http.Request, category, message string) error
	Flashes(w http.ResponseWriter, r *http.Request) ([]session.Flash, error)
}

// Pages holds what every server-rendered handler needs.
type Pages struct {
	Views    *Renderer
	Sessions SessionManager
	Log      *zap.Logger
}

// data starts the template data for a page. It consumes pending flashes, so
// call it before anything is written to w.
func (p *Pages) data(w http.ResponseWriter, r *http.Request, title string) PageData {
	flashes, err := p.Sessions.Flashes(w, r)
	if err != nil {
		p.Log.Warn("pop flashes", zap.Error(err))
	}
	return PageData{
		Title:    title,
		LoggedIn: middleware.IdentityFromContext(r.Context()) != nil,
		Flashes:  flashes,
	}
}

func (p *Pages) render(w http.ResponseWriter, status int, name string, data PageData) {
	if err := p.Views.Render(w, status, name, data); err != nil {
		p.Log.Error("render page", zap.String("page", name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (p *Pages) flash(w http.ResponseWriter, r *http.Request, category, message string) {
	if err := p.Sessions.AddFlash(w, r, category, message); err != nil {
		p.Log.Warn("add flash", zap.Error(err))
	}
}

func (p *Pages) redirect(w http.ResponseWriter, r *http.Request, url string) {
	http.Redirect(w, r, url, http.StatusFound)
}

func (p *Pages) internalError(w http.ResponseWriter, msg string, err error) {
	p.Log.Error(msg, zap.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

// Index renders the landing page.
func (p *Pages) Index(w http.ResponseWriter, r *http.Request) {
	p.render(w, http.StatusOK, "index", p.data(w, r, "Home"))
}

// About renders the about page.
func (p *Pages) About(w http.ResponseWriter, r *http.Request) {
	p.render(w, http.StatusOK, "about", p.data(w, r, "About"))
}

// taskID reads the {id} URL parameter.
func taskID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
