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

package shotgrid

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

var mockProjects = []Project{
	{ID: 101, Name: "Project Phoenix", Status: "Active", Description: "Feature film, hero dragon sequence"},
	{ID: 102, Name: "Project Atlas", Status: "Active", Description: "Animated series, world-building environments"},
	{ID: 103, Name: "Project Nebula", Status: "Active", Description: "VR experience, space exploration"},
}

var mockShots = map[int64][]Shot{
	101: {
		{ID: 1001, Code: "SH010", Status: "ip", Description: "Dragon reveal wide", Sequence: "SEQ010", CutIn: 1001, CutOut: 1120},
		{ID: 1002, Code: "SH020", Status: "ip", Description: "Dragon flight over mountains", Sequence: "SEQ010", CutIn: 1121, CutOut: 1280},
		{ID: 1003, Code: "SH030", Status: "wtg", Description: "Hero close-up reaction", Sequence: "SEQ020", CutIn: 1001, CutOut: 1060},
		{ID: 1004, Code: "SH040", Status: "rdy", Description: "Village establishing shot", Sequence: "SEQ020", CutIn: 1001, CutOut: 1150},
		{ID: 1005, Code: "SH050", Status: "fin", Description: "Dragon landing with dust FX", Sequence: "SEQ030", CutIn: 1001, CutOut: 1200},
	},
	102: {
		{ID: 2001, Code: "SH010", Status: "ip", Description: "Forest canopy flythrough", Sequence: "SEQ010", CutIn: 1001, CutOut: 1100},
		{ID: 2002, Code: "SH020", Status: "ip", Description: "Ancient ruins reveal", Sequence: "SEQ010", CutIn: 1101, CutOut: 1220},
		{ID: 2003, Code: "SH030", Status: "wtg", Description: "River rapids sequence", Sequence: "SEQ020", CutIn: 1001, CutOut: 1180},
		{ID: 2004, Code: "SH040", Status: "rdy", Description: "Mountain summit panorama", Sequence: "SEQ020", CutIn: 1001, CutOut: 1090},
		{ID: 2005, Code: "SH050", Status: "fin", Description: "Crystal cave interior", Sequence: "SEQ030", CutIn: 1001, CutOut: 1250},
	},
	103: {
		{ID: 3001, Code: "SH010", Status: "ip", Description: "Space station approach", Sequence: "SEQ010", CutIn: 1001, CutOut: 1150},
		{ID: 3002, Code: "SH020", Status: "ip", Description: "Asteroid field navigation", Sequence: "SEQ010", CutIn: 1151, CutOut: 1300},
		{ID: 3003, Code: "SH030", Status: "wtg", Description: "Planet surface landing", Sequence: "SEQ020", CutIn: 1001, CutOut: 1200},
		{ID: 3004, Code: "SH040", Status: "rdy", Description: "Nebula gas cloud", Sequence: "SEQ020", CutIn: 1001, CutOut: 1080},
		{ID: 3005, Code: "SH050", Status: "fin", Description: "Warp gate activation", Sequence: "SEQ030", CutIn: 1001, CutOut: 1320},
	},
}

var mockAssets = map[int64][]Asset{
	101: {
		{ID: 4001, Code: "dragon_hero", AssetType: "Character", Status: "ip", Description: "Hero dragon, fully rigged"},
		{ID: 4002, Code: "forest_env", AssetType: "Environment", Status: "ip", Description: "Dense forest environment"},
		{ID: 4003, Code: "village_env", AssetType: "Environment", Status: "wtg", Description: "Medieval village set"},
		{ID: 4004, Code: "hero_knight", AssetType: "Character", Status: "fin", Description: "Knight protagonist"},
	},
	102: {
		{ID: 5001, Code: "ancient_temple", AssetType: "Environment", Status: "ip", Description: "Ruined temple structure"},
		{ID: 5002, Code: "water_sim", AssetType: "FX", Status: "ip", Description: "River water simulation setup"},
		{ID: 5003, Code: "crystal_cluster", AssetType: "Prop", Status: "wtg", Description: "Glowing crystal formations"},
		{ID: 5004, Code: "explorer_char", AssetType: "Character", Status: "fin", Description: "Explorer character rig"},
	},
	103: {
		{ID: 6001, Code: "space_station", AssetType: "Environment", Status: "ip", Description: "Orbital station exterior/interior"},
		{ID: 6002, Code: "asteroid_field", AssetType: "Environment", Status: "ip", Description: "Procedural asteroid scatter"},
		{ID: 6003, Code: "shuttle_vehicle", AssetType: "Vehicle", Status: "wtg", Description: "Crew shuttle with cockpit"},
		{ID: 6004, Code: "astronaut_suit", AssetType: "Character", Status: "fin", Description: "Space suit with helmet variants"},
	},
}

var mockTasks = []Task{
	{ID: 9001, Content: "Animation", Status: "ip", Step: "Anim", Assignees: []string{"Sarah Chen"}},
	{ID: 9002, Content: "Lighting", Status: "wtg", Step: "Light", Assignees: []string{"Marcus Johnson"}},
	{ID: 9003, Content: "Compositing", Status: "rdy", Step: "Comp", Assignees: []string{"Kim Tanaka"}},
}

// mockClient serves a small fixed studio so deployments without ShotGrid
// credentials still exercise the full linking and completion flow. Write
// operations only log.
type mockClient struct {
	mutex  sync.Mutex
	nextID int64
}

// NewMock returns the fixture-backed client.
func NewMock() Client {
	slog.Info("ShotGrid disabled; using mock studio data")
	return &mockClient{nextID: 90000}
}

func (m *mockClient) allocateID() int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.nextID++
	return m.nextID
}

func (m *mockClient) Projects(_ context.Context) ([]Project, error) {
	projects := make([]Project, len(mockProjects))
	copy(projects, mockProjects)
	return projects, nil
}

func (m *mockClient) Project(_ context.Context, id int64) (*Project, error) {
	for _, project := range mockProjects {
		if project.ID == id {
			found := project
			return &found, nil
		}
	}
	return nil, nil
}

func (m *mockClient) Shots(_ context.Context, projectID int64, sequence string) ([]Shot, error) {
	var shots []Shot
	for _, shot := range mockShots[projectID] {
		if sequence != "" && shot.Sequence != sequence {
			continue
		}
		shots = append(shots, shot)
	}
	return shots, nil
}

func (m *mockClient) Shot(_ context.Context, id int64) (*Shot, error) {
	for _, shots := range mockShots {
		for _, shot := range shots {
			if shot.ID == id {
				found := shot
				return &found, nil
			}
		}
	}
	return nil, nil
}

func (m *mockClient) Assets(_ context.Context, projectID int64, assetType string) ([]Asset, error) {
	var assets []Asset
	for _, asset := range mockAssets[projectID] {
		if assetType != "" && asset.AssetType != assetType {
			continue
		}
		assets = append(assets, asset)
	}
	return assets, nil
}

func (m *mockClient) Asset(_ context.Context, id int64) (*Asset, error) {
	for _, assets := range mockAssets {
		for _, asset := range assets {
			if asset.ID == id {
				found := asset
				return &found, nil
			}
		}
	}
	return nil, nil
}

func (m *mockClient) Tasks(_ context.Context, _ string, _ int64) ([]Task, error) {
	tasks := make([]Task, len(mockTasks))
	copy(tasks, mockTasks)
	return tasks, nil
}

func (m *mockClient) UserByLogin(_ context.Context, login string) (*HumanUser, error) {
	return &HumanUser{
		ID:         201,
		Name:       titleCase(login),
		Login:      login,
		Email:      login + "@studio.local",
		Department: "VFX",
	}, nil
}

func (m *mockClient) UpdateEntityStatus(_ context.Context, entityType string,
	entityID int64, status string) error {

	slog.Info(fmt.Sprintf("[mock] Updated %s %d status to %s", entityType, entityID, status))
	return nil
}

func (m *mockClient) CreateVersion(_ context.Context, version NewVersion) (int64, error) {
	id := m.allocateID()
	slog.Info(fmt.Sprintf("[mock] Created Version id=%d '%s' for %s %d",
		id, version.Code, version.EntityType, version.EntityID))
	return id, nil
}

func (m *mockClient) CreateNote(_ context.Context, note NewNote) (int64, error) {
	id := m.allocateID()
	slog.Info(fmt.Sprintf("[mock] Created Note id=%d on %s %d: %s",
		id, note.EntityType, note.EntityID, note.Subject))
	return id, nil
}

// titleCase uppercases the first letter of each space-separated word.
func titleCase(text string) string {
	words := strings.Fields(text)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
