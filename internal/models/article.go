package models

import (
	"sort"
	"time"
)

// Article is one Markdown post loaded from the site's source directory
type Article struct {
	Slug    string    // URL slug, unique within a site
	Title   string    // Display title
	Date    time.Time // Publication date, zero when unknown
	Tags    []string  // Taxonomy tags from front matter
	Summary string    // Optional teaser from front matter
	Draft   bool      // Drafts are skipped by the site build
	Aliases []string  // Old slugs that redirect to this article
	Body    string    // Markdown body without front matter
	Path    string    // Path relative to the source directory
}

// URL returns the article page path relative to the site root
func (a *Article) URL() string {
	return a.Slug + ".html"
}

// Site is the set of articles making up a blog
type Site struct {
	Title       string
	Description string
	Articles    []*Article
	bySlug      map[string]*Article
}

// NewSite creates a site; articles are sorted newest first, then by slug
func NewSite(title, description string, articles []*Article) *Site {
	sorted := append([]*Article(nil), articles...)
	SortArticles(sorted)

	s := &Site{
		Title:       title,
		Description: description,
		Articles:    sorted,
		bySlug:      make(map[string]*Article, len(sorted)),
	}
	for _, a := range sorted {
		s.bySlug[a.Slug] = a
	}
	return s
}

// Find looks an article up by slug
func (s *Site) Find(slug string) (*Article, bool) {
	a, ok := s.bySlug[slug]
	return a, ok
}

// Published returns the non-draft articles in site order
func (s *Site) Published() []*Article {
	var out []*Article
	for _, a := range s.Articles {
		if !a.Draft {
			out = append(out, a)
		}
	}
	return out
}

// Tags returns every tag used by a published article, sorted
func (s *Site) Tags() []string {
	seen := map[string]bool{}
	var tags []string
	for _, a := range s.Published() {
		for _, t := range a.Tags {
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	sort.Strings(tags)
	return tags
}

// SortArticles orders articles newest first; ties and undated posts fall
// back to slug order
func SortArticles(articles []*Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		a, b := articles[i], articles[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.Slug < b.Slug
	})
}
