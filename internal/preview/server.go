// Package preview serves the site straight from the Markdown sources, with
// a JSON API for editors and live reload when files change.
package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/geocine/geopress/internal/config"
	"github.com/geocine/geopress/internal/loader"
	"github.com/geocine/geopress/internal/markdown"
	"github.com/geocine/geopress/internal/renderer"
	"github.com/geocine/geopress/internal/search"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// LiveReloadPath is the SSE endpoint pages subscribe to
const LiveReloadPath = "/__livereload"

const shutdownTimeout = 5 * time.Second

// Server is the preview HTTP server
type Server struct {
	root   string
	cfg    *config.Config
	log    *slog.Logger
	broker *Broker
	router chi.Router

	mu     sync.RWMutex
	html   *renderer.HtmlRenderer
	rc     *renderer.RenderContext
	assets map[string][]byte
	index  *search.Index
}

// snapshot is one consistent view of the loaded site
type snapshot struct {
	html   *renderer.HtmlRenderer
	rc     *renderer.RenderContext
	assets map[string][]byte
	index  *search.Index
}

// NewServer loads the site under root and prepares the routes
func NewServer(ctx context.Context, root string, cfg *config.Config, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		root:   root,
		cfg:    cfg,
		log:    log,
		broker: NewBroker(),
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Broker returns the live-reload broker
func (s *Server) Broker() *Broker {
	return s.broker
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)
	r.Get(LiveReloadPath, s.broker.ServeHTTP)

	r.Get("/", s.handleIndex)
	r.Get("/posts/{slug}", s.handleArticle)

	r.Route("/api", func(r chi.Router) {
		r.Get("/posts", s.handleListPosts)
		r.Get("/posts/{slug}", s.handleParsePost)
		r.Get("/posts/{slug}/toc", s.handlePostTOC)
		r.Post("/render", s.handleRender)
		r.Get("/search", s.handleSearch)
	})

	r.Get("/*", s.handleFile)

	s.router = r
}

// Reload re-reads the articles, templates and theme, rebuilds the search
// index, then tells connected browsers to refresh. On error the previously
// loaded site keeps being served.
func (s *Server) Reload(ctx context.Context) error {
	html, err := renderer.NewFromConfig(s.root, s.cfg, s.log)
	if err != nil {
		return err
	}
	site, err := loader.NewArticleLoader(s.root, s.cfg).WithLogger(s.log).Load()
	if err != nil {
		return err
	}
	rc := &renderer.RenderContext{
		Root:                   s.root,
		Site:                   site,
		Config:                 s.cfg,
		LiveReloadEndpointPath: LiveReloadPath,
		PathToRoot:             "/",
	}
	assets, err := html.Assets(rc)
	if err != nil {
		return fmt.Errorf("failed to prepare assets: %w", err)
	}

	index, err := search.NewIndex()
	if err != nil {
		return err
	}
	for _, a := range site.Published() {
		res, err := html.Markdown().Parse(ctx, a.Body)
		if err != nil {
			if !markdown.IsRenderFailure(err) {
				return err
			}
			s.log.Warn("article not indexed for search", "slug", a.Slug, "error", err)
			continue
		}
		if err := index.AddArticle(a.Slug, a.Title, a.Tags, res.HTML); err != nil {
			s.log.Warn("article not indexed for search", "slug", a.Slug, "error", err)
		}
	}

	s.mu.Lock()
	previous := s.index
	s.html, s.rc, s.assets, s.index = html, rc, assets, index
	s.mu.Unlock()
	if previous != nil {
		_ = previous.Close()
	}

	s.log.Info("site loaded", "articles", len(site.Articles), "sections", index.Len())
	s.broker.Broadcast("reload")
	return nil
}

func (s *Server) current() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{html: s.html, rc: s.rc, assets: s.assets, index: s.index}
}

// WatchPaths lists the files and directories whose changes trigger a reload
func (s *Server) WatchPaths() []string {
	return []string{
		filepath.Join(s.root, s.cfg.Site.Src),
		filepath.Join(s.root, "theme"),
		filepath.Join(s.root, "static"),
	}
}

// Watch reloads the site whenever a watched file changes, until ctx is done
func (s *Server) Watch(ctx context.Context) error {
	debounce, err := s.cfg.DebounceDuration()
	if err != nil {
		return err
	}
	return Watch(ctx, s.WatchPaths(), debounce, s.log, func() {
		s.log.Info("change detected, reloading")
		if err := s.Reload(ctx); err != nil {
			s.log.Error("reload failed", "error", err)
		}
	})
}

// ListenAndServe serves on addr and watches the sources until ctx is done,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(s.broker.Close)

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go func() {
		if err := s.Watch(watchCtx); err != nil {
			s.log.Error("file watching stopped", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("serving", "url", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down preview server: %w", err)
	}
	return nil
}
