// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package view

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"github.com/hashicorp/capdemo/auth"
	"github.com/hashicorp/capdemo/session"
	"github.com/hashicorp/go-hclog"
)

//go:embed templates/page.html
var templates embed.FS

// Command paths served by the Page.  Each accepts a POST and redirects back
// to "/".
const (
	SignInPath       = "/signin"
	SignOutPath      = "/signout"
	ClearPath        = "/clear"
	RevokePath       = "/revoke"
	SignOutLocalPath = "/signout-local"
)

const defaultPageTitle = "OIDC session"

// Page is the http.Handler of the session page.  Command errors are logged
// and not rendered.
type Page struct {
	controller *auth.Controller
	store      *session.Store
	logger     hclog.Logger
	title      string
	tmpl       *template.Template
	mux        *http.ServeMux
}

type pageData struct {
	Title    string
	State    string
	Displays Displays
	Claims   string
}

// NewPage creates the session page for the controller and its store.
//
// Supported options: WithLogger, WithTitle
func NewPage(c *auth.Controller, s *session.Store, opt ...Option) (*Page, error) {
	const op = "view.NewPage"
	if c == nil {
		return nil, fmt.Errorf("%s: controller is nil: %w", op, auth.ErrNilParameter)
	}
	if s == nil {
		return nil, fmt.Errorf("%s: session store is nil: %w", op, auth.ErrNilParameter)
	}
	opts := getPageOpts(opt...)
	tmpl, err := template.ParseFS(templates, "templates/page.html")
	if err != nil {
		return nil, fmt.Errorf("%s: unable to parse template: %w", op, err)
	}
	p := &Page{
		controller: c,
		store:      s,
		logger:     opts.withLogger.Named("view"),
		title:      opts.withTitle,
		tmpl:       tmpl,
		mux:        http.NewServeMux(),
	}
	p.mux.HandleFunc("/", p.handleIndex)
	p.mux.HandleFunc(SignInPath, p.command("sign in", func(ctx context.Context) error {
		_, err := c.SignIn(ctx, auth.DefaultScopes...)
		return err
	}))
	p.mux.HandleFunc(SignOutPath, p.command("sign out", c.SignOut))
	p.mux.HandleFunc(ClearPath, p.command("clear", func(context.Context) error {
		c.ClearLocal()
		return nil
	}))
	p.mux.HandleFunc(RevokePath, p.command("revoke", c.Revoke))
	p.mux.HandleFunc(SignOutLocalPath, p.command("sign out without redirect", c.SignOutWithoutRedirect))
	return p, nil
}

// ServeHTTP implements http.Handler.
func (p *Page) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mux.ServeHTTP(w, req)
}

func (p *Page) handleIndex(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/" {
		http.NotFound(w, req)
		return
	}
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	data := pageData{
		Title:    p.title,
		State:    p.controller.State().String(),
		Displays: Current(p.store),
	}
	if id, ok := p.store.Get(session.IDToken); ok && len(id.Claims) > 0 {
		claims, err := json.MarshalIndent(id.Claims, "", "  ")
		if err != nil {
			p.logger.Error("unable to encode id_token claims", "error", err)
		} else {
			data.Claims = string(claims)
		}
	}
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, data); err != nil {
		p.logger.Error("unable to render page", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

// command runs fn for a POST and redirects back to the page.
func (p *Page) command(name string, fn func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		if err := fn(req.Context()); err != nil {
			if reason, ok := auth.ReasonOf(err); ok {
				p.logger.Error("command failed", "command", name, "reason", reason, "error", err)
			} else {
				p.logger.Error("command failed", "command", name, "error", err)
			}
		} else {
			p.logger.Debug("command completed", "command", name)
		}
		http.Redirect(w, req, "/", http.StatusSeeOther)
	}
}
