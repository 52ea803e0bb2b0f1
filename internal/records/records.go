// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package records keeps the flat per-project files: the append-only
// articles.jsonl record log plus the project.yaml run metadata and the
// queries.yaml query history.
package records

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pms/pkg/types"
)

const (
	articlesFile = "articles.jsonl"
	metaFile     = "project.yaml"
	historyFile  = "queries.yaml"

	// maxLineSize bounds one JSONL record. Abstracts with long author
	// lists stay well below it.
	maxLineSize = 16 << 20
)

// Store reads and writes project directories under a data directory. The
// JSONL file is opened per append; there is no cross-process locking.
type Store struct {
	dataDir string
	log     *zap.Logger
}

// New returns a Store rooted at dataDir. A nil logger discards output.
func New(dataDir string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{dataDir: dataDir, log: log}
}

// ProjectDir returns the directory holding the project's files.
func (s *Store) ProjectDir(projectID string) string {
	return filepath.Join(s.dataDir, projectID)
}

func (s *Store) path(projectID, name string) (string, error) {
	if projectID == "" || projectID == "." || projectID == ".." ||
		strings.ContainsAny(projectID, `/\`) {
		return "", fmt.Errorf("invalid project id %q", projectID)
	}
	return filepath.Join(s.ProjectDir(projectID), name), nil
}

// Append writes one article as a JSON line.
func (s *Store) Append(projectID string, a types.Article) error {
	_, err := s.AppendMany(projectID, []types.Article{a})
	return err
}

// AppendMany writes articles in order, one line per write, and returns how
// many were written. It stops at the first failure, so articles[:n] are on
// disk and the rest are not.
func (s *Store) AppendMany(projectID string, articles []types.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}
	path, err := s.path(projectID, articlesFile)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("creating project directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}

	n := 0
	for _, a := range articles {
		line, err := json.Marshal(a)
		if err != nil {
			f.Close()
			return n, fmt.Errorf("encoding article %s: %w", a.PMID, err)
		}
		line = append(line, '\n')
		if _, err := f.Write(line); err != nil {
			f.Close()
			return n, fmt.Errorf("writing article %s: %w", a.PMID, err)
		}
		n++
	}
	if err := f.Close(); err != nil {
		return n, fmt.Errorf("closing %s: %w", path, err)
	}
	return n, nil
}

// ReadAll returns the project's articles in append order. A missing file
// yields no articles. Malformed lines are logged and skipped.
func (s *Store) ReadAll(projectID string) ([]types.Article, error) {
	var articles []types.Article
	err := s.scan(projectID, func(a types.Article) bool {
		articles = append(articles, a)
		return true
	})
	return articles, err
}

// Get returns the first record with pmid, or nil when there is none.
func (s *Store) Get(projectID, pmid string) (*types.Article, error) {
	var found *types.Article
	err := s.scan(projectID, func(a types.Article) bool {
		if a.PMID == pmid {
			found = &a
			return false
		}
		return true
	})
	return found, err
}

func (s *Store) scan(projectID string, fn func(types.Article) bool) error {
	path, err := s.path(projectID, articlesFile)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var a types.Article
		if err := json.Unmarshal(line, &a); err != nil {
			s.log.Warn("skipping malformed record",
				zap.String("file", path), zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		if !fn(a) {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// RemoveProject deletes the project's directory and everything in it.
func (s *Store) RemoveProject(projectID string) error {
	path, err := s.path(projectID, "")
	if err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

// ReadMeta loads project.yaml. The error wraps fs.ErrNotExist when the
// project has no metadata yet.
func (s *Store) ReadMeta(projectID string) (types.ProjectMeta, error) {
	var meta types.ProjectMeta
	if err := s.readYAML(projectID, metaFile, &meta); err != nil {
		return types.ProjectMeta{}, err
	}
	return meta, nil
}

// WriteMeta replaces project.yaml.
func (s *Store) WriteMeta(projectID string, meta types.ProjectMeta) error {
	return s.writeYAML(projectID, metaFile, &meta)
}

// AppendQuery adds rec to the end of the project's query history.
func (s *Store) AppendQuery(projectID string, rec types.QueryRecord) error {
	history, err := s.History(projectID)
	if err != nil {
		return err
	}
	history = append(history, rec)
	return s.writeYAML(projectID, historyFile, &history)
}

// History returns the project's query history, oldest first.
func (s *Store) History(projectID string) ([]types.QueryRecord, error) {
	var history []types.QueryRecord
	err := s.readYAML(projectID, historyFile, &history)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return history, err
}

func (s *Store) readYAML(projectID, name string, v any) error {
	path, err := s.path(projectID, name)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// writeYAML writes through a temporary file so readers never see a
// partial document.
func (s *Store) writeYAML(projectID, name string, v any) error {
	path, err := s.path(projectID, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating project directory: %w", err)
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
