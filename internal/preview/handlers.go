package preview

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/geocine/geopress/internal/markdown"
	"github.com/geocine/geopress/internal/models"
	"github.com/geocine/geopress/internal/slug"
	"github.com/geocine/geopress/internal/toc"
	"github.com/go-chi/chi/v5"
)

const (
	maxRenderBody      = 4 << 20
	defaultSearchLimit = 10
	maxSearchLimit     = 100
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.current()
	out, err := snap.html.IndexPage(snap.rc)
	if err != nil {
		s.log.Error("index page failed", "error", err)
		http.Error(w, "failed to render index", http.StatusInternalServerError)
		return
	}
	writeHTML(w, http.StatusOK, out)
}

func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	s.serveArticle(w, r, strings.TrimSuffix(chi.URLParam(r, "slug"), ".html"))
}

// serveArticle renders an article page. Drafts are served too, so they can
// be previewed before publishing. A body that fails to render still gets a
// page with the fallback placeholder.
func (s *Server) serveArticle(w http.ResponseWriter, r *http.Request, name string) {
	snap := s.current()
	a, ok := snap.rc.Site.Find(name)
	if !ok {
		if target, ok := findAlias(snap.rc.Site, name); ok {
			http.Redirect(w, r, "/"+target.URL(), http.StatusMovedPermanently)
			return
		}
		s.notFound(w, snap)
		return
	}
	page, err := snap.html.RenderArticle(r.Context(), snap.rc, a)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		s.log.Error("article page failed", "slug", a.Slug, "error", err)
		http.Error(w, "failed to render article", http.StatusInternalServerError)
		return
	}
	writeHTML(w, http.StatusOK, page.HTML)
}

// handleFile serves everything the static build would have written:
// article pages by file name, fingerprinted assets, the search index, and
// files from the static directory.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean("/"+chi.URLParam(r, "*")), "/")
	snap := s.current()

	switch {
	case name == "" || name == "index.html":
		s.handleIndex(w, r)
		return
	case name == "searchindex.json":
		writeJSON(w, http.StatusOK, snap.index)
		return
	}

	if data, ok := snap.assets[name]; ok {
		if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		w.Write(data)
		return
	}

	target := filepath.Join(s.root, "static", filepath.FromSlash(name))
	if fi, err := os.Stat(target); err == nil && !fi.IsDir() {
		http.ServeFile(w, r, target)
		return
	}

	if strings.HasSuffix(name, ".html") {
		s.serveArticle(w, r, strings.TrimSuffix(path.Base(name), ".html"))
		return
	}
	s.notFound(w, snap)
}

func (s *Server) notFound(w http.ResponseWriter, snap snapshot) {
	out, err := snap.html.NotFoundPage(snap.rc)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeHTML(w, http.StatusNotFound, out)
}

func findAlias(site *models.Site, name string) (*models.Article, bool) {
	for _, a := range site.Articles {
		for _, alias := range a.Aliases {
			if slug.Generate(alias) == name {
				return a, true
			}
		}
	}
	return nil, false
}

type postSummary struct {
	Slug    string   `json:"slug"`
	Title   string   `json:"title"`
	Date    string   `json:"date,omitempty"`
	Tags    []string `json:"tags"`
	Summary string   `json:"summary,omitempty"`
	Draft   bool     `json:"draft"`
	URL     string   `json:"url"`
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	snap := s.current()
	posts := make([]postSummary, 0, len(snap.rc.Site.Articles))
	for _, a := range snap.rc.Site.Articles {
		p := postSummary{
			Slug:    a.Slug,
			Title:   a.Title,
			Tags:    a.Tags,
			Summary: a.Summary,
			Draft:   a.Draft,
			URL:     "/" + a.URL(),
		}
		if p.Tags == nil {
			p.Tags = []string{}
		}
		if !a.Date.IsZero() {
			p.Date = a.Date.Format("2006-01-02")
		}
		posts = append(posts, p)
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

func (s *Server) handleParsePost(w http.ResponseWriter, r *http.Request) {
	snap := s.current()
	a, ok := snap.rc.Site.Find(chi.URLParam(r, "slug"))
	if !ok {
		jsonError(w, "post not found", http.StatusNotFound)
		return
	}
	s.writeParse(w, r, snap.html.Markdown(), a.Body)
}

func (s *Server) handlePostTOC(w http.ResponseWriter, r *http.Request) {
	snap := s.current()
	a, ok := snap.rc.Site.Find(chi.URLParam(r, "slug"))
	if !ok {
		jsonError(w, "post not found", http.StatusNotFound)
		return
	}
	nodes := snap.html.Markdown().TOC(a.Body)
	if nodes == nil {
		nodes = []*toc.Node{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"toc": nodes})
}

// handleRender parses a Markdown document posted by an editor. The body is
// either raw Markdown or a JSON object {"markdown": "..."}.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRenderBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "document too large", http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "failed to read body", http.StatusBadRequest)
		return
	}

	src := string(body)
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "application/json" {
		var req struct {
			Markdown string `json:"markdown"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			jsonError(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		src = req.Markdown
	}

	s.writeParse(w, r, s.current().html.Markdown(), src)
}

func (s *Server) writeParse(w http.ResponseWriter, r *http.Request, md *markdown.Renderer, src string) {
	res, err := md.Parse(r.Context(), src)
	if err != nil {
		if markdown.IsRenderFailure(err) {
			s.log.Error("render failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to render markdown",
				"code":  "RENDER_FAILED",
			})
			return
		}
		if r.Context().Err() != nil {
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit := defaultSearchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxSearchLimit)
	}

	results, err := s.current().index.Search(q, limit)
	if err != nil {
		s.log.Error("search failed", "query", q, "error", err)
		jsonError(w, "search failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q, "results": results})
}

func writeHTML(w http.ResponseWriter, code int, out string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	io.WriteString(w, out)
}
