// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest runs the search-deduplicate-fetch-store pipeline for a
// project and manages the project lifecycle across the tracking database
// and the flat record files.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/pms/pkg/types"
)

// ErrProjectNotFound is returned when an operation names a project the
// tracking store does not know.
var ErrProjectNotFound = errors.New("project not found")

// DefaultBatchSize is the number of new IDs fetched and stored per round.
const DefaultBatchSize = 100

// Retriever searches PubMed and fetches article records. Failures degrade
// to empty results; the retriever logs them.
type Retriever interface {
	Search(ctx context.Context, query string, maxResults int, dateRange *types.DateRange) []string
	FetchArticles(ctx context.Context, ids []string, batchSize int) []types.Article
}

// Tracker is the tracking store: projects, article metadata, and links.
type Tracker interface {
	CreateProject(ctx context.Context, p types.Project) error
	GetProject(ctx context.Context, id string) (types.Project, error)
	ProjectExists(ctx context.Context, id string) (bool, error)
	ListProjects(ctx context.Context) ([]types.Project, error)
	DeleteProject(ctx context.Context, id string) error
	FilterUnseen(ctx context.Context, projectID string, ids []string) ([]string, error)
	UpsertArticle(ctx context.Context, pmid string, doi *string, title string) error
	Link(ctx context.Context, projectID, pmid string) error
	CountLinked(ctx context.Context, projectID string) (int, error)
	LinkedPMIDs(ctx context.Context, projectID string) ([]string, error)
}

// RecordStore holds each project's article records and run metadata.
type RecordStore interface {
	// AppendMany writes articles in order and returns n such that
	// articles[:n] are on disk.
	AppendMany(projectID string, articles []types.Article) (int, error)
	ReadAll(projectID string) ([]types.Article, error)
	Get(projectID, pmid string) (*types.Article, error)
	RemoveProject(projectID string) error
	ReadMeta(projectID string) (types.ProjectMeta, error)
	WriteMeta(projectID string, meta types.ProjectMeta) error
	AppendQuery(projectID string, rec types.QueryRecord) error
	History(projectID string) ([]types.QueryRecord, error)
}

// Recorder observes completed runs. internal/metrics implements it.
type Recorder interface {
	RecordRun(projectID string, found, newIDs, fetched, stored int, at time.Time)
}

// SearchOptions bounds one run.
type SearchOptions struct {
	// MaxResults caps the IDs requested from search (default 100).
	MaxResults int

	// DateRange optionally filters by publication date.
	DateRange *types.DateRange

	// BatchSize is the number of new IDs fetched per round (default 100).
	BatchSize int
}

// Result summarizes one run. Stored counts records written. It can be less
// than Fetched when the tracking store rejects an article or a record write
// fails, and Fetched less than New when a fetch batch fails.
type Result struct {
	Found   int
	New     int
	Fetched int
	Stored  int
}

// Orchestrator ties the retriever to the two stores.
type Orchestrator struct {
	client   Retriever
	tracker  Tracker
	records  RecordStore
	recorder Recorder
	log      *zap.Logger
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithRecorder reports each completed run to r.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithClock replaces time.Now for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New returns an Orchestrator.
func New(client Retriever, tracker Tracker, records RecordStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:  client,
		tracker: tracker,
		records: records,
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SearchAndStore searches PubMed for query, fetches the articles the project
// has not seen, and stores them in both stores. Re-running the same query
// stores nothing new. Retrieval failures shrink the result instead of
// failing the run. An article is linked only after its record is written, so
// one that never reached the record file is fetched again next run. The run
// metadata is recorded whenever the project exists and the seen-filter
// succeeds, including when a record write fails.
func (o *Orchestrator) SearchAndStore(ctx context.Context, projectID, query string, opts SearchOptions) (Result, error) {
	var res Result
	if err := o.requireProject(ctx, projectID); err != nil {
		return res, err
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 100
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	log := o.log.With(zap.String("project", projectID), zap.String("query", query))

	ids := o.client.Search(ctx, query, opts.MaxResults, opts.DateRange)
	res.Found = len(ids)
	if res.Found == 0 {
		log.Info("search returned no articles")
		o.finishRun(ctx, projectID, query, opts.DateRange, res)
		return res, nil
	}

	unseen, err := o.tracker.FilterUnseen(ctx, projectID, ids)
	if err != nil {
		return res, fmt.Errorf("filtering seen articles: %w", err)
	}
	res.New = len(unseen)
	if res.New == 0 {
		log.Info("no new articles", zap.Int("found", res.Found))
		o.finishRun(ctx, projectID, query, opts.DateRange, res)
		return res, nil
	}

	for start := 0; start < len(unseen); start += opts.BatchSize {
		batch := unseen[start:min(start+opts.BatchSize, len(unseen))]

		articles := o.client.FetchArticles(ctx, batch, opts.BatchSize)
		res.Fetched += len(articles)

		tracked := o.upsert(ctx, log, articles)
		n, err := o.records.AppendMany(projectID, tracked)
		n = min(max(n, 0), len(tracked))
		res.Stored += n
		o.link(ctx, log, projectID, tracked[:n])
		if err != nil {
			log.Error("storing articles failed", zap.Int("stored", res.Stored), zap.Error(err))
			o.finishRun(ctx, projectID, query, opts.DateRange, res)
			return res, fmt.Errorf("storing articles: %w", err)
		}
	}

	log.Info("search complete",
		zap.Int("found", res.Found),
		zap.Int("new", res.New),
		zap.Int("fetched", res.Fetched),
		zap.Int("stored", res.Stored),
	)
	o.finishRun(ctx, projectID, query, opts.DateRange, res)
	return res, nil
}

// upsert records each article's metadata in the tracking store and returns
// those it accepted. A rejected article is not written or linked, so the next
// run retries it.
func (o *Orchestrator) upsert(ctx context.Context, log *zap.Logger, articles []types.Article) []types.Article {
	tracked := make([]types.Article, 0, len(articles))
	for _, a := range articles {
		if err := o.tracker.UpsertArticle(ctx, a.PMID, a.DOI, a.Title); err != nil {
			log.Error("tracking article failed", zap.String("pmid", a.PMID), zap.Error(err))
			continue
		}
		tracked = append(tracked, a)
	}
	return tracked
}

// link marks written articles as seen by the project. A failed link leaves
// the article eligible next run, which appends its record again.
func (o *Orchestrator) link(ctx context.Context, log *zap.Logger, projectID string, written []types.Article) {
	for _, a := range written {
		if err := o.tracker.Link(ctx, projectID, a.PMID); err != nil {
			log.Error("linking article failed", zap.String("pmid", a.PMID), zap.Error(err))
		}
	}
}

// finishRun updates project.yaml and appends to the query history. Failures
// are logged; the articles are already stored.
func (o *Orchestrator) finishRun(ctx context.Context, projectID, query string, dr *types.DateRange, res Result) {
	now := o.now().UTC()
	mesh := ExtractMeshTerms(query)
	log := o.log.With(zap.String("project", projectID))

	if o.recorder != nil {
		o.recorder.RecordRun(projectID, res.Found, res.New, res.Fetched, res.Stored, now)
	}

	meta, err := o.records.ReadMeta(projectID)
	if errors.Is(err, fs.ErrNotExist) {
		meta, err = o.initialMeta(ctx, projectID)
	}
	if err != nil {
		log.Error("reading project metadata failed", zap.Error(err))
		return
	}

	count, err := o.tracker.CountLinked(ctx, projectID)
	if err != nil {
		log.Error("counting articles failed", zap.Error(err))
		count = meta.ArticleCount
	}

	meta.LastRun = &now
	meta.ArticleCount = count
	meta.LastQuery = query
	if dr != nil {
		meta.DateRange = dr
	}
	meta.MeshTerms = mesh

	if err := o.records.WriteMeta(projectID, meta); err != nil {
		log.Error("writing project metadata failed", zap.Error(err))
	}

	rec := types.QueryRecord{
		Query:     query,
		DateRange: dr,
		Timestamp: now,
		Found:     res.Found,
		New:       res.New,
		Stored:    res.Stored,
		MeshTerms: mesh,
	}
	if err := o.records.AppendQuery(projectID, rec); err != nil {
		log.Error("writing query history failed", zap.Error(err))
	}
}

func (o *Orchestrator) initialMeta(ctx context.Context, projectID string) (types.ProjectMeta, error) {
	p, err := o.tracker.GetProject(ctx, projectID)
	if err != nil {
		return types.ProjectMeta{}, err
	}
	return types.ProjectMeta{
		ProjectName: p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
	}, nil
}

var meshPattern = regexp.MustCompile(`"([^"]+)"\[MeSH(?: Terms)?\]`)

// ExtractMeshTerms returns the quoted terms tagged [MeSH] in query, in
// order and without repeats. The terms are not checked against the MeSH
// vocabulary.
func ExtractMeshTerms(query string) []string {
	var terms []string
	seen := make(map[string]bool)
	for _, m := range meshPattern.FindAllStringSubmatch(query, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			terms = append(terms, m[1])
		}
	}
	return terms
}

func (o *Orchestrator) requireProject(ctx context.Context, id string) error {
	ok, err := o.tracker.ProjectExists(ctx, id)
	if err != nil {
		return fmt.Errorf("checking project: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	return nil
}
