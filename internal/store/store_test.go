// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pms/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "pms.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createProject(t *testing.T, s *Store, id string) {
	t.Helper()
	require.NoError(t, s.CreateProject(context.Background(), types.Project{ID: id, Name: "Project " + id}))
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pms.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.CreateProject(ctx, types.Project{ID: "p1", Name: "One"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	ok, err := s.ProjectExists(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateProject(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateProject(ctx, types.Project{
		ID: "p1", Name: "Sepsis", Description: "ICU sepsis cohort", CreatedAt: created,
	}))

	got, err := s.GetProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Sepsis", got.Name)
	assert.Equal(t, "ICU sepsis cohort", got.Description)
	assert.True(t, created.Equal(got.CreatedAt))

	err = s.CreateProject(ctx, types.Project{ID: "p1", Name: "Again"})
	assert.ErrorIs(t, err, ErrProjectExists)

	err = s.CreateProject(ctx, types.Project{ID: "p2"})
	assert.Error(t, err)
}

func TestGetProject_NotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.GetProject(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrProjectNotFound)

	ok, err := s.ProjectExists(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListProjects(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateProject(ctx, types.Project{ID: "b", Name: "B", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, s.CreateProject(ctx, types.Project{ID: "a", Name: "A", CreatedAt: base}))

	projects, err = s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "a", projects[0].ID)
	assert.Equal(t, "b", projects[1].ID)
	assert.Empty(t, projects[0].Description)
}

func TestFilterUnseen(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	createProject(t, s, "p1")
	createProject(t, s, "p2")

	for _, id := range []string{"2", "4"} {
		require.NoError(t, s.UpsertArticle(ctx, id, nil, "title "+id))
		require.NoError(t, s.Link(ctx, "p1", id))
	}

	got, err := s.FilterUnseen(ctx, "p1", []string{"5", "4", "3", "2", "1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"5", "3", "1"}, got)

	// Links are per project.
	got, err = s.FilterUnseen(ctx, "p2", []string{"2", "4"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "4"}, got)

	got, err = s.FilterUnseen(ctx, "p1", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFilterUnseen_ManyIDs(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	createProject(t, s, "p1")

	ids := make([]string, 1200)
	for i := range ids {
		ids[i] = strconv.Itoa(i + 1)
	}
	for _, id := range ids[:700] {
		require.NoError(t, s.UpsertArticle(ctx, id, nil, ""))
		require.NoError(t, s.Link(ctx, "p1", id))
	}

	got, err := s.FilterUnseen(ctx, "p1", ids)
	require.NoError(t, err)
	assert.Equal(t, ids[700:], got)
}

func TestUpsertArticle_KeepsLinks(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	createProject(t, s, "p1")
	createProject(t, s, "p2")

	require.NoError(t, s.UpsertArticle(ctx, "100", nil, "first"))
	require.NoError(t, s.Link(ctx, "p1", "100"))

	doi := "10.1000/x"
	require.NoError(t, s.UpsertArticle(ctx, "100", &doi, "second"))
	require.NoError(t, s.Link(ctx, "p2", "100"))

	for _, p := range []string{"p1", "p2"} {
		n, err := s.CountLinked(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, 1, n, p)
	}

	var title, gotDOI string
	require.NoError(t, s.db.QueryRow(`SELECT title, doi FROM articles WHERE pmid = '100'`).Scan(&title, &gotDOI))
	assert.Equal(t, "second", title)
	assert.Equal(t, doi, gotDOI)
}

func TestLink_Idempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	createProject(t, s, "p1")

	require.NoError(t, s.UpsertArticle(ctx, "1", nil, ""))
	require.NoError(t, s.Link(ctx, "p1", "1"))
	require.NoError(t, s.Link(ctx, "p1", "1"))

	n, err := s.CountLinked(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLink_UnknownProject(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertArticle(ctx, "1", nil, ""))
	assert.Error(t, s.Link(ctx, "nope", "1"))
}

func TestDeleteProject_CascadesLinks(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	createProject(t, s, "p1")
	createProject(t, s, "p2")

	for _, id := range []string{"1", "2"} {
		require.NoError(t, s.UpsertArticle(ctx, id, nil, ""))
		require.NoError(t, s.Link(ctx, "p1", id))
	}
	require.NoError(t, s.Link(ctx, "p2", "1"))

	require.NoError(t, s.DeleteProject(ctx, "p1"))

	n, err := s.CountLinked(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, n)

	pmids, err := s.LinkedPMIDs(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, pmids)

	assert.ErrorIs(t, s.DeleteProject(ctx, "p1"), ErrProjectNotFound)
}

func TestLinkedPMIDs(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	createProject(t, s, "p1")

	for _, id := range []string{"30", "10", "20"} {
		require.NoError(t, s.UpsertArticle(ctx, id, nil, ""))
		require.NoError(t, s.Link(ctx, "p1", id))
	}

	pmids, err := s.LinkedPMIDs(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "20", "30"}, pmids)
}

func TestStore_DatabaseErrors(t *testing.T) {
	errDB := errors.New("disk I/O error")

	tests := []struct {
		name  string
		setup func(sqlmock.Sqlmock)
		call  func(*Store) error
	}{
		{
			name: "filter unseen",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta("SELECT pmid FROM project_articles")).WillReturnError(errDB)
			},
			call: func(s *Store) error {
				_, err := s.FilterUnseen(context.Background(), "p1", []string{"1"})
				return err
			},
		},
		{
			name: "upsert article",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta("INSERT INTO articles")).WillReturnError(errDB)
			},
			call: func(s *Store) error {
				return s.UpsertArticle(context.Background(), "1", nil, "t")
			},
		},
		{
			name: "link",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta("INSERT OR IGNORE INTO project_articles")).WillReturnError(errDB)
			},
			call: func(s *Store) error {
				return s.Link(context.Background(), "p1", "1")
			},
		},
		{
			name: "count linked",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM project_articles")).WillReturnError(errDB)
			},
			call: func(s *Store) error {
				_, err := s.CountLinked(context.Background(), "p1")
				return err
			},
		},
		{
			name: "project exists",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM projects")).WillReturnError(errDB)
			},
			call: func(s *Store) error {
				_, err := s.ProjectExists(context.Background(), "p1")
				return err
			},
		},
		{
			name: "delete project",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta("DELETE FROM projects")).WillReturnError(errDB)
			},
			call: func(s *Store) error {
				return s.DeleteProject(context.Background(), "p1")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()

			tt.setup(mock)
			err = tt.call(&Store{db: db})
			assert.ErrorIs(t, err, errDB)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGetProject_ScanError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, description, created_at FROM projects")).
		WillReturnError(sql.ErrConnDone)

	_, err = (&Store{db: db}).GetProject(context.Background(), "p1")
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.False(t, errors.Is(err, ErrProjectNotFound))
}
