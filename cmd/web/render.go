package main

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/normicyte/normicyte/internal/contexthelpers"
	"github.com/normicyte/normicyte/internal/errors"
	"github.com/normicyte/normicyte/ui"
)

func init() {
	// scs serialises session values with gob.
	gob.Register(webauthn.SessionData{})
}

// BaseTemplateData carries the fields every page template needs.
type BaseTemplateData struct {
	Authenticated bool
	CurrentPath   string
}

func newBaseTemplateData(r *http.Request) BaseTemplateData {
	return BaseTemplateData{
		Authenticated: contexthelpers.IsAuthenticated(r.Context()),
		CurrentPath:   contexthelpers.CurrentPath(r.Context()),
	}
}

// pageTemplate parses the base layout together with the page template named
// pageName under ui/templates/pages.
func pageTemplate(pageName string) (*template.Template, error) {
	// The FuncMap has to exist before parsing. Render overrides these with the
	// per-request values.
	t, err := template.New(pageName).Funcs(template.FuncMap{
		"nonce": func() string {
			panic("not implemented")
		},
		"csrf": func() string {
			panic("not implemented")
		},
		"addOne": func(i int) int {
			return i + 1
		},
		"contains": func(haystack []string, needle string) bool {
			return slices.Contains(haystack, needle)
		},
	}).ParseFS(ui.Files,
		"templates/base.gohtml",
		"templates/partials/*.gohtml",
		fmt.Sprintf("templates/pages/%s.gohtml", pageName),
	)
	if err != nil {
		return nil, errors.Wrap(err, "parse template", slog.String("template", pageName))
	}
	return t, nil
}

func (app *application) render(w http.ResponseWriter, r *http.Request, status int, pageName string, data any) {
	t, err := pageTemplate(pageName)
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	ctx := r.Context()
	nonce := fmt.Sprintf("nonce=\"%s\"", contexthelpers.CSPNonce(ctx))
	csrf := fmt.Sprintf("<input type=\"hidden\" name=\"csrf_token\" value=\"%s\"/>", contexthelpers.CSRFToken(ctx))
	t.Funcs(template.FuncMap{
		"nonce": func() template.HTMLAttr {
			return template.HTMLAttr(nonce) //nolint:gosec // the nonce is not user-provided.
		},
		"csrf": func() template.HTML {
			return template.HTML(csrf) //nolint:gosec // the token is not user-provided.
		},
	})

	buf := new(bytes.Buffer)
	if err = t.ExecuteTemplate(buf, "base", data); err != nil {
		app.serverError(w, r, errors.Wrap(err, "execute template", slog.String("template", pageName)))
		return
	}

	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderPartial renders one named template without the base layout, used for
// htmx swap responses.
func (app *application) renderPartial(w http.ResponseWriter, r *http.Request, pageName string, block string, data any) {
	t, err := pageTemplate(pageName)
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	csrf := fmt.Sprintf("<input type=\"hidden\" name=\"csrf_token\" value=\"%s\"/>", contexthelpers.CSRFToken(r.Context()))
	t.Funcs(template.FuncMap{
		"csrf": func() template.HTML {
			return template.HTML(csrf) //nolint:gosec // the token is not user-provided.
		},
	})

	buf := new(bytes.Buffer)
	if err = t.ExecuteTemplate(buf, block, data); err != nil {
		app.serverError(w, r, errors.Wrap(err, "execute partial", slog.String("block", block)))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
