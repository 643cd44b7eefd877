package http

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/atinyakov/GophTasks/internal/models"
	"github.com/atinyakov/GophTasks/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"index", "about", "register", "login", "dashboard", "task_form"}

// PageData is the value every page template is executed with.
type PageData struct {
	Title      string
	LoggedIn   bool
	Flashes    []session.Flash
	Form       any
	Errors     map[string]string
	Tasks      []models.Task
	Action     string
	SubmitText string
}

// Renderer executes the embedded page templates inside the shared layout.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses the layout once per page.
func NewRenderer() (*Renderer, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{pages: pages}, nil
}

// Render writes the named page with the given status. The page is rendered
// into a buffer first so a template error never produces a partial body.
func (rn *Renderer) Render(w http.ResponseWriter, status int, name string, data PageData) error {
	t, ok := rn.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	if data.Errors == nil {
		data.Errors = map[string]string{}
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
