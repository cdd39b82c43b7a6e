// Copyright (c) 2025 The DataBridge Project and its Contributors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package shotgrid talks to the studio's ShotGrid site: browsing projects,
// shots, assets, and tasks for linking, and pushing delivery results back
// (entity status, Version, Note). Deployments without ShotGrid credentials
// run against a fixture-backed mock instead, so the rest of the pipeline
// never needs to know which one it has.
package shotgrid

import (
	"context"

	"github.com/databridge-io/databridge/config"
)

// A Project is one ShotGrid production.
type Project struct {
	ID          int64  `json:"id" mapstructure:"id"`
	Name        string `json:"name" mapstructure:"name"`
	Status      string `json:"sg_status" mapstructure:"sg_status"`
	Description string `json:"sg_description" mapstructure:"sg_description"`
}

// A Shot is one cut of a project, grouped under a sequence.
type Shot struct {
	ID          int64  `json:"id" mapstructure:"id"`
	Code        string `json:"code" mapstructure:"code"`
	Status      string `json:"sg_status_list" mapstructure:"sg_status_list"`
	Description string `json:"description" mapstructure:"description"`
	Sequence    string `json:"sequence" mapstructure:"sequence"`
	CutIn       int64  `json:"sg_cut_in" mapstructure:"sg_cut_in"`
	CutOut      int64  `json:"sg_cut_out" mapstructure:"sg_cut_out"`
}

// An Asset is one buildable element of a project.
type Asset struct {
	ID          int64  `json:"id" mapstructure:"id"`
	Code        string `json:"code" mapstructure:"code"`
	AssetType   string `json:"sg_asset_type" mapstructure:"sg_asset_type"`
	Status      string `json:"sg_status_list" mapstructure:"sg_status_list"`
	Description string `json:"description" mapstructure:"description"`
}

// A Task is one unit of assigned work on a shot or asset.
type Task struct {
	ID        int64    `json:"id" mapstructure:"id"`
	Content   string   `json:"content" mapstructure:"content"`
	Status    string   `json:"sg_status_list" mapstructure:"sg_status_list"`
	Step      string   `json:"step" mapstructure:"step"`
	Assignees []string `json:"assignees" mapstructure:"assignees"`
}

// A HumanUser is one ShotGrid account.
type HumanUser struct {
	ID         int64  `json:"id" mapstructure:"id"`
	Name       string `json:"name" mapstructure:"name"`
	Login      string `json:"login" mapstructure:"login"`
	Email      string `json:"email" mapstructure:"email"`
	Department string `json:"department" mapstructure:"department"`
}

// NewVersion carries the fields for creating a delivery Version.
type NewVersion struct {
	ProjectID   int64
	EntityType  string
	EntityID    int64
	Code        string
	Description string
	Path        string
}

// NewNote carries the fields for creating a Note against an entity.
type NewNote struct {
	ProjectID  int64
	EntityType string
	EntityID   int64
	Subject    string
	Content    string
}

// Client is the surface the pipeline needs from ShotGrid. Read methods
// return nil (not an error) for entities that do not exist.
type Client interface {
	// browse
	Projects(ctx context.Context) ([]Project, error)
	Project(ctx context.Context, id int64) (*Project, error)
	Shots(ctx context.Context, projectID int64, sequence string) ([]Shot, error)
	Shot(ctx context.Context, id int64) (*Shot, error)
	Assets(ctx context.Context, projectID int64, assetType string) ([]Asset, error)
	Asset(ctx context.Context, id int64) (*Asset, error)
	Tasks(ctx context.Context, entityType string, entityID int64) ([]Task, error)
	UserByLogin(ctx context.Context, login string) (*HumanUser, error)

	// delivery completion
	UpdateEntityStatus(ctx context.Context, entityType string, entityID int64, status string) error
	CreateVersion(ctx context.Context, version NewVersion) (int64, error)
	CreateNote(ctx context.Context, note NewNote) (int64, error)
}

// NewClient builds the client the configuration asks for: the REST client
// when ShotGrid is enabled, the fixture-backed mock otherwise.
func NewClient() Client {
	if config.Shotgrid.Enabled {
		return newRestClient()
	}
	return NewMock()
}

// linkable entity types
const (
	EntityShot  = "Shot"
	EntityAsset = "Asset"
)

// ValidEntityType reports whether transfers may link to the given type.
func ValidEntityType(entityType string) bool {
	return entityType == EntityShot || entityType == EntityAsset
}
