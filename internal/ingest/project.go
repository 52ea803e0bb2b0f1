// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/pms/pkg/types"
)

// CreateProject registers a project and writes its initial metadata. An
// empty id gets a random UUID. A taken id fails with the tracker's
// "already exists" error.
func (o *Orchestrator) CreateProject(ctx context.Context, name, description, id string) (types.Project, error) {
	if name == "" {
		return types.Project{}, fmt.Errorf("project name is required")
	}
	if id == "" {
		id = uuid.NewString()
	}
	p := types.Project{
		ID:          id,
		Name:        name,
		Description: description,
		CreatedAt:   o.now().UTC(),
	}
	if err := o.tracker.CreateProject(ctx, p); err != nil {
		return types.Project{}, fmt.Errorf("creating project: %w", err)
	}

	meta := types.ProjectMeta{
		ProjectName: p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
	}
	if err := o.records.WriteMeta(p.ID, meta); err != nil {
		if delErr := o.tracker.DeleteProject(ctx, p.ID); delErr != nil {
			o.log.Error("rolling back project failed", zap.String("project", p.ID), zap.Error(delErr))
		}
		return types.Project{}, fmt.Errorf("writing project metadata: %w", err)
	}

	o.log.Info("project created", zap.String("project", p.ID), zap.String("name", p.Name))
	return p, nil
}

// RemoveProject deletes the project, its links, and its record directory.
// An unknown project fails with ErrProjectNotFound and changes nothing.
func (o *Orchestrator) RemoveProject(ctx context.Context, id string) error {
	if err := o.requireProject(ctx, id); err != nil {
		return err
	}
	if err := o.tracker.DeleteProject(ctx, id); err != nil {
		return fmt.Errorf("removing project: %w", err)
	}
	if err := o.records.RemoveProject(id); err != nil {
		return fmt.Errorf("removing project files: %w", err)
	}
	o.log.Info("project removed", zap.String("project", id))
	return nil
}

// Project returns the project with id.
func (o *Orchestrator) Project(ctx context.Context, id string) (types.Project, error) {
	if err := o.requireProject(ctx, id); err != nil {
		return types.Project{}, err
	}
	return o.tracker.GetProject(ctx, id)
}

// ListProjects returns every project, oldest first.
func (o *Orchestrator) ListProjects(ctx context.Context) ([]types.Project, error) {
	return o.tracker.ListProjects(ctx)
}

// Count returns the number of articles linked to the project.
func (o *Orchestrator) Count(ctx context.Context, id string) (int, error) {
	if err := o.requireProject(ctx, id); err != nil {
		return 0, err
	}
	return o.tracker.CountLinked(ctx, id)
}

// Articles returns the project's stored records in append order.
func (o *Orchestrator) Articles(ctx context.Context, id string) ([]types.Article, error) {
	if err := o.requireProject(ctx, id); err != nil {
		return nil, err
	}
	return o.records.ReadAll(id)
}

// Article returns the project's stored record for pmid, or nil when the
// project has none.
func (o *Orchestrator) Article(ctx context.Context, id, pmid string) (*types.Article, error) {
	if err := o.requireProject(ctx, id); err != nil {
		return nil, err
	}
	return o.records.Get(id, pmid)
}

// Unrecorded returns the PMIDs linked to the project that have no line in
// its record file, in PMID order. Such articles are counted but never
// exported.
func (o *Orchestrator) Unrecorded(ctx context.Context, id string) ([]string, error) {
	if err := o.requireProject(ctx, id); err != nil {
		return nil, err
	}
	linked, err := o.tracker.LinkedPMIDs(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing linked articles: %w", err)
	}
	articles, err := o.records.ReadAll(id)
	if err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	recorded := make(map[string]bool, len(articles))
	for _, a := range articles {
		recorded[a.PMID] = true
	}
	var missing []string
	for _, pmid := range linked {
		if !recorded[pmid] {
			missing = append(missing, pmid)
		}
	}
	return missing, nil
}

// Meta returns the project's run metadata. Projects created before any
// metadata was written get metadata built from the tracking store.
func (o *Orchestrator) Meta(ctx context.Context, id string) (types.ProjectMeta, error) {
	if err := o.requireProject(ctx, id); err != nil {
		return types.ProjectMeta{}, err
	}
	meta, err := o.records.ReadMeta(id)
	if errors.Is(err, fs.ErrNotExist) {
		return o.initialMeta(ctx, id)
	}
	return meta, err
}

// History returns the project's query history, oldest first.
func (o *Orchestrator) History(ctx context.Context, id string) ([]types.QueryRecord, error) {
	if err := o.requireProject(ctx, id); err != nil {
		return nil, err
	}
	return o.records.History(id)
}
