package preview

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/geocine/geopress/internal/config"
	"github.com/geocine/geopress/internal/markdown"
	"github.com/geocine/geopress/internal/search"
	"github.com/geocine/geopress/internal/testutil"
	"github.com/geocine/geopress/internal/toc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guidePost = `---
title: Getting Started
date: 2024-02-10
tags: [go]
aliases: [intro]
---
# Getting Started

Welcome.

## Install

Run the installer.

## 第一章 Overview

Text.
`

func newServer(t *testing.T) (*Server, string) {
	t.Helper()
	site := testutil.TempSite(t, "blog")
	testutil.WritePost(t, site, "guide.md", guidePost)
	testutil.WritePost(t, site, "wip.md", "---\ntitle: WIP\ndraft: true\n---\nNot yet.\n")
	testutil.WriteFile(t, site, "static/robots.txt", "User-agent: *\n")

	cfg := config.NewDefaultConfig()
	cfg.Site.Title = "Field Notes"
	s, err := NewServer(context.Background(), site, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(s.Broker().Close)
	return s, site
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestPages(t *testing.T) {
	s, _ := newServer(t)

	rec := get(t, s, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `<a href="/getting-started.html">Getting Started</a>`)
	assert.Contains(t, rec.Body.String(), `new EventSource("/__livereload")`)
	assert.NotContains(t, rec.Body.String(), "WIP")

	for _, target := range []string{"/posts/getting-started", "/getting-started.html", "/posts/getting-started.html"} {
		rec = get(t, s, target)
		require.Equal(t, http.StatusOK, rec.Code, target)
		page := rec.Body.String()
		assert.Contains(t, page, `<h2 id="install">`, target)
		assert.Contains(t, page, `data-toc-id="第一章-overview"`, target)
		assert.Contains(t, page, `href="/css/site-`, target)
	}

	// Drafts are previewable
	rec = get(t, s, "/posts/wip")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not yet.")

	rec = get(t, s, "/posts/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Page not found")

	rec = get(t, s, "/missing.html")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAliasRedirect(t *testing.T) {
	s, _ := newServer(t)

	rec := get(t, s, "/intro.html")
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/getting-started.html", rec.Header().Get("Location"))
}

func TestAssetsAndStaticFiles(t *testing.T) {
	s, _ := newServer(t)

	snap := s.current()
	require.NotEmpty(t, snap.assets)
	for name, data := range snap.assets {
		rec := get(t, s, "/"+name)
		require.Equal(t, http.StatusOK, rec.Code, name)
		assert.Equal(t, data, rec.Body.Bytes(), name)
		assert.Contains(t, rec.Header().Get("Cache-Control"), "immutable")
	}

	rec := get(t, s, "/robots.txt")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User-agent: *\n", rec.Body.String())

	rec = get(t, s, "/../../etc/passwd")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, s, "/searchindex.json")
	require.Equal(t, http.StatusOK, rec.Code)
	var idx search.Index
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &idx))
	assert.Equal(t, snap.index.Len(), idx.Len())
}

func TestParsePostAPI(t *testing.T) {
	s, _ := newServer(t)

	rec := get(t, s, "/api/posts/getting-started")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var res markdown.ParseResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Contains(t, res.HTML, `id="install"`)
	require.Len(t, res.TOC, 1)
	assert.Equal(t, "getting-started", res.TOC[0].ID)
	require.Len(t, res.TOC[0].Children, 2)
	assert.Equal(t, "install", res.TOC[0].Children[0].ID)

	rec = get(t, s, "/api/posts/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"post not found"}`, rec.Body.String())
}

func TestPostTOCAPI(t *testing.T) {
	s, _ := newServer(t)

	rec := get(t, s, "/api/posts/getting-started/toc")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		TOC []*toc.Node `json:"toc"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.TOC, 1)
	assert.Equal(t, "Getting Started", body.TOC[0].Text)
	assert.Equal(t, "第一章-overview", body.TOC[0].Children[1].ID)

	rec = get(t, s, "/api/posts/wip/toc")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"toc":[]}`, rec.Body.String())
}

func TestListPostsAPI(t *testing.T) {
	s, _ := newServer(t)

	rec := get(t, s, "/api/posts")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Posts []postSummary `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Posts, 2)

	bySlug := map[string]postSummary{}
	for _, p := range body.Posts {
		bySlug[p.Slug] = p
	}
	assert.Equal(t, "2024-02-10", bySlug["getting-started"].Date)
	assert.Equal(t, "/getting-started.html", bySlug["getting-started"].URL)
	assert.True(t, bySlug["wip"].Draft)
	assert.Equal(t, []string{}, bySlug["wip"].Tags)
}

func TestRenderAPI(t *testing.T) {
	s, _ := newServer(t)

	post := func(contentType, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/render", strings.NewReader(body))
		req.Header.Set("Content-Type", contentType)
		s.ServeHTTP(rec, req)
		return rec
	}

	rec := post("text/markdown", "# Hello\n\n## World\n")
	require.Equal(t, http.StatusOK, rec.Code)
	var res markdown.ParseResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Contains(t, res.HTML, `id="world"`)
	require.Len(t, res.TOC, 1)
	assert.Equal(t, "world", res.TOC[0].Children[0].ID)

	rec = post("application/json; charset=utf-8", `{"markdown":"## Only"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	res = markdown.ParseResult{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.TOC, 1)
	assert.Equal(t, "only", res.TOC[0].ID)

	rec = post("application/json", `{"markdown":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post("text/markdown", strings.Repeat("a", maxRenderBody+1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	// Empty documents are valid
	rec = post("text/markdown", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"toc":[]`)
}

func TestSearchAPI(t *testing.T) {
	s, _ := newServer(t)

	rec := get(t, s, "/api/search?q=installer")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Query   string          `json:"query"`
		Results []search.Result `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "installer", body.Query)
	require.NotEmpty(t, body.Results)
	assert.Equal(t, "getting-started.html#install", body.Results[0].URL)

	rec = get(t, s, "/api/search?q=")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"query":"","results":[]}`, rec.Body.String())

	// Drafts are not searchable
	rec = get(t, s, "/api/search?q=yet")
	assert.JSONEq(t, `{"query":"yet","results":[]}`, rec.Body.String())

	rec = get(t, s, "/api/search?q=go&limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReload(t *testing.T) {
	s, site := newServer(t)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/posts/fresh").Code)

	testutil.WritePost(t, site, "fresh.md", "# Fresh\n\nNew words.\n")
	require.NoError(t, s.Reload(context.Background()))

	assert.Equal(t, http.StatusOK, get(t, s, "/api/posts/fresh").Code)
	assert.Contains(t, get(t, s, "/api/search?q=words").Body.String(), "fresh.html")

	// A broken theme keeps the previous site
	testutil.WriteFile(t, site, "theme/index.hbs", "{{#if}}")
	assert.Error(t, s.Reload(context.Background()))
	assert.Equal(t, http.StatusOK, get(t, s, "/").Code)
}

func TestLiveReloadStream(t *testing.T) {
	s, _ := newServer(t)
	ts := httptest.NewServer(s)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+LiveReloadPath, nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	lines := bufio.NewReader(resp.Body)
	line, err := lines.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ":ok\n", line)
	require.Equal(t, 1, s.Broker().Clients())

	s.Broker().Broadcast("reload")
	for {
		line, err = lines.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data:") {
			break
		}
	}
	assert.Equal(t, "data: reload\n", line)

	s.Broker().Close()
	assert.Eventually(t, func() bool { return s.Broker().Clients() == 0 }, time.Second, 10*time.Millisecond)
}

func TestDebouncer(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(30*time.Millisecond, func() { calls.Add(1) })
	for i := 0; i < 5; i++ {
		d.Trigger()
	}
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	d.Trigger()
	d.Stop()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWatchReportsChanges(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, []string{dir, dir + "/missing"}, 20*time.Millisecond, nil, func() { calls.Add(1) })
	}()

	// Give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)
	testutil.WriteFile(t, dir, "sub/post.md", "# Hi")
	assert.Eventually(t, func() bool { return calls.Load() > 0 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestIgnoredName(t *testing.T) {
	assert.True(t, ignoredName(".git"))
	assert.True(t, ignoredName("post.md~"))
	assert.True(t, ignoredName(".post.md.swp"))
	assert.True(t, ignoredName("#post.md#"))
	assert.False(t, ignoredName("post.md"))
}
