// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the pms tool: articles
// parsed from PubMed, projects, per-project run metadata, and configuration.
package types

import (
	"fmt"
	"strings"
	"time"
)

// Author is one entry of an article's author list. LastName is always
// non-empty; authors without one are dropped during parsing.
type Author struct {
	LastName string `json:"last_name" yaml:"last_name"`

	// ForeName is the given name, when the source supplies it.
	ForeName *string `json:"fore_name" yaml:"fore_name"`

	// Initials is the initials string (e.g. "JA"), when present.
	Initials *string `json:"initials" yaml:"initials"`

	// Affiliations lists every affiliation text found under the author, in
	// document order.
	Affiliations []string `json:"affiliations" yaml:"affiliations"`
}

// Article is a PubMed record. PMID identifies it across every project in
// the local store. Articles are never modified after parsing.
type Article struct {
	PMID string `json:"pmid" yaml:"pmid"`

	// Title is the article title, or empty if the record has none.
	Title string `json:"title" yaml:"title"`

	// Abstract holds the abstract text. Structured abstracts are flattened
	// to "Label: text" sections separated by a space.
	Abstract string `json:"abstract" yaml:"abstract"`

	Authors  []Author `json:"authors" yaml:"authors"`
	Keywords []string `json:"keywords" yaml:"keywords"`

	// PublicationDate is midnight UTC of the publication day, or nil when
	// the record has no year or an invalid date.
	PublicationDate *time.Time `json:"publication_date" yaml:"publication_date"`

	DOI     *string `json:"doi" yaml:"doi"`
	Journal *string `json:"journal" yaml:"journal"`
}

// String returns a pointer to s. Parsers use it for optional fields.
func String(s string) *string {
	return &s
}

// Value dereferences an optional string, returning "" for nil.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Project is a named collection of articles and the unit of deduplication
// and export.
type Project struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// DateRange is an inclusive publication date filter. Start and End use the
// E-utilities form YYYY/MM/DD.
type DateRange struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

const dateRangeLayout = "2006/01/02"

// ParseDateRange parses "YYYY/MM/DD:YYYY/MM/DD" into a DateRange. Both ends
// must be valid calendar dates and Start must not be after End.
func ParseDateRange(s string) (*DateRange, error) {
	start, end, ok := strings.Cut(s, ":")
	if !ok {
		return nil, fmt.Errorf("date range %q: expected START:END", s)
	}
	from, err := time.Parse(dateRangeLayout, start)
	if err != nil {
		return nil, fmt.Errorf("date range start %q: expected YYYY/MM/DD", start)
	}
	to, err := time.Parse(dateRangeLayout, end)
	if err != nil {
		return nil, fmt.Errorf("date range end %q: expected YYYY/MM/DD", end)
	}
	if from.After(to) {
		return nil, fmt.Errorf("date range %q: start is after end", s)
	}
	return &DateRange{Start: start, End: end}, nil
}

// ProjectMeta is the per-project run metadata kept in project.yaml.
type ProjectMeta struct {
	ProjectName  string     `json:"project_name" yaml:"project_name"`
	Description  string     `json:"description" yaml:"description"`
	CreatedAt    time.Time  `json:"created_at" yaml:"created_at"`
	LastRun      *time.Time `json:"last_run,omitempty" yaml:"last_run,omitempty"`
	ArticleCount int        `json:"article_count" yaml:"article_count"`
	LastQuery    string     `json:"last_query,omitempty" yaml:"last_query,omitempty"`
	DateRange    *DateRange `json:"date_range,omitempty" yaml:"date_range,omitempty"`

	// MeshTerms are the "term"[MeSH] annotations found in the last query.
	// They are not validated against the MeSH vocabulary.
	MeshTerms []string `json:"mesh_terms,omitempty" yaml:"mesh_terms,omitempty"`
}

// QueryRecord is one entry of a project's query history (queries.yaml).
type QueryRecord struct {
	Query     string     `json:"query" yaml:"query"`
	DateRange *DateRange `json:"date_range,omitempty" yaml:"date_range,omitempty"`
	Timestamp time.Time  `json:"timestamp" yaml:"timestamp"`
	Found     int        `json:"found" yaml:"found"`
	New       int        `json:"new" yaml:"new"`
	Stored    int        `json:"stored" yaml:"stored"`
	MeshTerms []string   `json:"mesh_terms,omitempty" yaml:"mesh_terms,omitempty"`
}
