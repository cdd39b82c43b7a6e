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

package services

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/databridge-io/databridge/catalog"
	"github.com/databridge-io/databridge/shotgrid"
	"github.com/databridge-io/databridge/transfers"
)

type ShotgridProjectsOutput struct {
	Body []shotgrid.Project `doc:"the active ShotGrid projects"`
}

// handler method for browsing ShotGrid projects
func (service *bridgeService) getShotgridProjects(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
	}) (*ShotgridProjectsOutput, error) {

	if _, err := service.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}
	projects, err := service.Studio.Projects(ctx)
	if err != nil {
		return nil, err
	}
	return &ShotgridProjectsOutput{Body: projects}, nil
}

type ShotgridShotsOutput struct {
	Body []shotgrid.Shot `doc:"the project's shots"`
}

// handler method for browsing a project's shots
func (service *bridgeService) getShotgridShots(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
		ProjectId     int64  `query:"project_id" example:"101" doc:"the ShotGrid project id"`
		Sequence      string `query:"sequence" example:"SEQ010" doc:"(Optional) only shots in this sequence"`
	}) (*ShotgridShotsOutput, error) {

	if _, err := service.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}
	if input.ProjectId <= 0 {
		return nil, huma.Error422UnprocessableEntity("A project_id parameter is required")
	}
	shots, err := service.Studio.Shots(ctx, input.ProjectId, input.Sequence)
	if err != nil {
		return nil, err
	}
	return &ShotgridShotsOutput{Body: shots}, nil
}

type ShotgridAssetsOutput struct {
	Body []shotgrid.Asset `doc:"the project's assets"`
}

// handler method for browsing a project's assets
func (service *bridgeService) getShotgridAssets(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
		ProjectId     int64  `query:"project_id" example:"101" doc:"the ShotGrid project id"`
		AssetType     string `query:"asset_type" example:"Character" doc:"(Optional) only assets of this type"`
	}) (*ShotgridAssetsOutput, error) {

	if _, err := service.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}
	if input.ProjectId <= 0 {
		return nil, huma.Error422UnprocessableEntity("A project_id parameter is required")
	}
	assets, err := service.Studio.Assets(ctx, input.ProjectId, input.AssetType)
	if err != nil {
		return nil, err
	}
	return &ShotgridAssetsOutput{Body: assets}, nil
}

type ShotgridTasksOutput struct {
	Body []shotgrid.Task `doc:"the entity's tasks"`
}

// handler method for browsing an entity's tasks
func (service *bridgeService) getShotgridTasks(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
		EntityType    string `query:"entity_type" example:"Shot" doc:"Shot or Asset"`
		EntityId      int64  `query:"entity_id" example:"1001" doc:"the entity's ShotGrid id"`
	}) (*ShotgridTasksOutput, error) {

	if _, err := service.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}
	if !shotgrid.ValidEntityType(input.EntityType) {
		return nil, huma.Error422UnprocessableEntity(
			fmt.Sprintf("Invalid entity type: '%s'", input.EntityType))
	}
	if input.EntityId <= 0 {
		return nil, huma.Error422UnprocessableEntity("An entity_id parameter is required")
	}
	sgTasks, err := service.Studio.Tasks(ctx, input.EntityType, input.EntityId)
	if err != nil {
		return nil, err
	}
	return &ShotgridTasksOutput{Body: sgTasks}, nil
}

// handler method for attaching ShotGrid coordinates to a transfer. The
// project and entity are resolved against ShotGrid first so the stored
// names are authoritative, then the link lands on the transfer row.
func (service *bridgeService) linkShotgrid(ctx context.Context,
	input *struct {
		Authorization string      `header:"authorization" doc:"Authorization header with bearer access token"`
		TransferId    int64       `path:"transferId" example:"42" doc:"the transfer's id"`
		Body          LinkRequest `doc:"the ShotGrid coordinates"`
	}) (*TransferOutput, error) {

	user, err := service.authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	project, err := service.Studio.Project(ctx, input.Body.ProjectId)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, huma.Error404NotFound(
			fmt.Sprintf("ShotGrid project %d was not found", input.Body.ProjectId))
	}

	params := transfers.LinkParams{
		ProjectID:   project.ID,
		ProjectName: project.Name,
		TaskID:      input.Body.TaskId,
	}
	if input.Body.EntityId != 0 {
		if !shotgrid.ValidEntityType(input.Body.EntityType) {
			return nil, huma.Error422UnprocessableEntity(
				fmt.Sprintf("Invalid entity type: '%s'", input.Body.EntityType))
		}
		params.EntityType = input.Body.EntityType
		params.EntityID = input.Body.EntityId
		switch input.Body.EntityType {
		case shotgrid.EntityShot:
			shot, err := service.Studio.Shot(ctx, input.Body.EntityId)
			if err != nil {
				return nil, err
			}
			if shot == nil {
				return nil, huma.Error404NotFound(
					fmt.Sprintf("ShotGrid shot %d was not found", input.Body.EntityId))
			}
			params.EntityName = shot.Code
		case shotgrid.EntityAsset:
			asset, err := service.Studio.Asset(ctx, input.Body.EntityId)
			if err != nil {
				return nil, err
			}
			if asset == nil {
				return nil, huma.Error404NotFound(
					fmt.Sprintf("ShotGrid asset %d was not found", input.Body.EntityId))
			}
			params.EntityName = asset.Code
		}
	}

	var transfer catalog.Transfer
	err = retryBusy(func() error {
		var err error
		transfer, err = service.Pipeline.Link(ctx, input.TransferId, &user, params)
		return err
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &TransferOutput{Body: transferView(transfer)}, nil
}
