// Package search builds a full-text index over article sections and answers
// queries against it. The index serializes to JSON for the static site.
package search

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

// IndexVersion is bumped whenever the JSON layout changes
const IndexVersion = 2

const sectionDocType = "section"

// Field names and their score multipliers
var fieldBoosts = map[string]float64{
	"title":   2,
	"heading": 1.5,
	"tags":    1.5,
	"body":    1,
}

var fieldOrder = []string{"title", "heading", "tags", "body"}

const (
	prefixWeight  = 0.5
	minPrefix     = 3
	snippetLength = 160
)

// Result is one search hit
type Result struct {
	Ref     string  `json:"ref"`
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	Heading string  `json:"heading"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// sectionDoc is what bleve indexes for a Section
type sectionDoc struct {
	Title   string `json:"title"`
	Heading string `json:"heading"`
	Tags    string `json:"tags"`
	Body    string `json:"body"`
}

// Type returns the document type, for bleve's mapping.Classifier interface.
func (sectionDoc) Type() string {
	return sectionDocType
}

// Index is an in-memory bleve index over article sections. It is safe for
// concurrent use.
type Index struct {
	mu       sync.RWMutex
	mapping  *mapping.IndexMappingImpl
	index    bleve.Index
	sections map[string]Section
}

// newIndexMapping analyzes every field as English text: lowercased, stop
// words dropped, stemmed.
func newIndexMapping() *mapping.IndexMappingImpl {
	m := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	for _, field := range fieldOrder {
		textFieldMapping := bleve.NewTextFieldMapping()
		textFieldMapping.Analyzer = en.AnalyzerName
		textFieldMapping.Store = false
		textFieldMapping.IncludeInAll = false
		docMapping.AddFieldMappingsAt(field, textFieldMapping)
	}

	m.DefaultAnalyzer = en.AnalyzerName
	m.AddDocumentMapping(sectionDocType, docMapping)
	m.AddDocumentMapping("_all", bleve.NewDocumentDisabledMapping())
	m.DefaultMapping = bleve.NewDocumentDisabledMapping()
	return m
}

// NewIndex creates an empty index
func NewIndex() (*Index, error) {
	m := newIndexMapping()
	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create search index: %w", err)
	}
	return &Index{
		mapping:  m,
		index:    idx,
		sections: make(map[string]Section),
	}, nil
}

// Len returns the number of indexed sections
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.sections)
}

// AddArticle splits rendered article HTML into sections and indexes them
func (idx *Index) AddArticle(slug, title string, tags []string, html string) error {
	sections, err := SplitSections(slug, title, tags, html)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	batch := idx.index.NewBatch()
	for _, s := range sections {
		if err := batch.Index(s.Ref, docOf(s)); err != nil {
			return fmt.Errorf("failed to index '%s': %w", s.Ref, err)
		}
	}
	if err := idx.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to index article '%s': %w", slug, err)
	}
	for _, s := range sections {
		idx.sections[s.Ref] = s
	}
	return nil
}

// Add indexes one section, replacing any section with the same ref
func (idx *Index) Add(s Section) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if err := idx.index.Index(s.Ref, docOf(s)); err != nil {
		return fmt.Errorf("failed to index '%s': %w", s.Ref, err)
	}
	idx.sections[s.Ref] = s
	return nil
}

func docOf(s Section) sectionDoc {
	return sectionDoc{Title: s.Title, Heading: s.Heading, Tags: s.Tags, Body: s.Body}
}

// RemoveArticle drops every section of the article with the given slug
func (idx *Index) RemoveArticle(slug string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	batch := idx.index.NewBatch()
	var refs []string
	for ref, s := range idx.sections {
		if s.Slug == slug {
			batch.Delete(ref)
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		return nil
	}
	if err := idx.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to remove article '%s': %w", slug, err)
	}
	for _, ref := range refs {
		delete(idx.sections, ref)
	}
	return nil
}

// Search scores sections against the query and returns at most limit hits,
// best first. A limit of zero or less returns every hit. Any query word may
// match; words of three or more characters also match longer indexed words
// as a prefix, at half weight. A query of only stop words finds nothing.
func (idx *Index) Search(q string, limit int) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.index == nil {
		return []Result{}, nil
	}
	terms := idx.terms(q)
	if len(terms) == 0 || len(idx.sections) == 0 {
		return []Result{}, nil
	}

	clauses := make([]query.Query, 0, len(terms)*len(fieldOrder)*2)
	for _, term := range terms {
		for _, field := range fieldOrder {
			tq := bleve.NewTermQuery(term)
			tq.SetField(field)
			tq.SetBoost(fieldBoosts[field])
			clauses = append(clauses, tq)

			if len([]rune(term)) >= minPrefix {
				pq := bleve.NewPrefixQuery(term)
				pq.SetField(field)
				pq.SetBoost(fieldBoosts[field] * prefixWeight)
				clauses = append(clauses, pq)
			}
		}
	}

	size := len(idx.sections)
	if limit > 0 && limit < size {
		size = limit
	}
	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(clauses...), size, 0, false)
	req.SortBy([]string{"-_score", "_id"})

	res, err := idx.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		s, ok := idx.sections[hit.ID]
		if !ok {
			continue
		}
		results = append(results, Result{
			Ref:     hit.ID,
			URL:     s.URL(),
			Title:   s.Title,
			Heading: s.Heading,
			Snippet: snippet(s.Body),
			Score:   hit.Score,
		})
	}
	return results, nil
}

// terms runs the query through the same analyzer as the indexed fields,
// dropping repeats.
func (idx *Index) terms(q string) []string {
	if strings.TrimSpace(q) == "" {
		return nil
	}
	analyzer := idx.mapping.AnalyzerNamed(en.AnalyzerName)
	if analyzer == nil {
		return nil
	}
	seen := make(map[string]bool)
	var terms []string
	for _, tok := range analyzer.Analyze([]byte(q)) {
		term := string(tok.Term)
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		terms = append(terms, term)
	}
	return terms
}

// Close releases the underlying bleve index. It waits for running searches;
// later ones find nothing.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.index == nil {
		return nil
	}
	err := idx.index.Close()
	idx.index = nil
	return err
}

func snippet(body string) string {
	runes := []rune(body)
	if len(runes) <= snippetLength {
		return body
	}
	cut := string(runes[:snippetLength])
	if i := strings.LastIndexByte(cut, ' '); i > snippetLength/2 {
		cut = cut[:i]
	}
	return cut + "…"
}

type indexJSON struct {
	Version int                `json:"version"`
	Fields  []string           `json:"fields"`
	Boosts  map[string]float64 `json:"boosts"`
	Docs    []Section          `json:"docs"`
}

// MarshalJSON exports the indexed sections, sorted by ref. The bleve index
// itself is rebuilt from them on load.
func (idx *Index) MarshalJSON() ([]byte, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	docs := make([]Section, 0, len(idx.sections))
	for _, s := range idx.sections {
		docs = append(docs, s)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Ref < docs[j].Ref })

	return json.Marshal(indexJSON{
		Version: IndexVersion,
		Fields:  fieldOrder,
		Boosts:  fieldBoosts,
		Docs:    docs,
	})
}

// UnmarshalJSON restores an exported index by indexing its sections again.
// The zero Index is a valid target.
func (idx *Index) UnmarshalJSON(data []byte) error {
	var raw indexJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Version != IndexVersion {
		return fmt.Errorf("unsupported search index version %d", raw.Version)
	}

	fresh, err := NewIndex()
	if err != nil {
		return err
	}
	batch := fresh.index.NewBatch()
	for _, s := range raw.Docs {
		if err := batch.Index(s.Ref, docOf(s)); err != nil {
			return fmt.Errorf("failed to index '%s': %w", s.Ref, err)
		}
		fresh.sections[s.Ref] = s
	}
	if err := fresh.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to restore search index: %w", err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.index != nil {
		_ = idx.index.Close()
	}
	idx.mapping, idx.index, idx.sections = fresh.mapping, fresh.index, fresh.sections
	return nil
}
