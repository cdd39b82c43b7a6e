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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/databridge-io/databridge/config"
)

// restClient reaches a real ShotGrid site over its REST API, authenticating
// as a script user with client credentials.
type restClient struct {
	baseURL    string
	scriptName string
	apiKey     string
	client     http.Client

	// the bearer token is shared across calls and refreshed under the lock
	mutex  sync.Mutex
	token  string
	expiry time.Time
}

func newRestClient() *restClient {
	timeout := time.Duration(config.Shotgrid.TimeoutSeconds) * time.Second
	return &restClient{
		baseURL:    strings.TrimRight(config.Shotgrid.URL, "/"),
		scriptName: config.Shotgrid.ScriptName,
		apiKey:     config.Shotgrid.APIKey,
		client:     SecureHTTPClient(timeout),
	}
}

// array filters require ShotGrid's vendored media type on _search requests
const searchContentType = "application/vnd+shotgrid.api3_array+json"

// entityRecord is the shape every ShotGrid REST read returns: scalar fields
// under attributes, linked entities under relationships.
type entityRecord struct {
	Type          string                     `json:"type"`
	Id            int64                      `json:"id"`
	Attributes    map[string]any             `json:"attributes"`
	Relationships map[string]json.RawMessage `json:"relationships"`
}

// decode merges the record id into its attributes and fills the target
// struct from the result.
func (r entityRecord) decode(target any, entity string) error {
	merged := make(map[string]any, len(r.Attributes)+1)
	for key, value := range r.Attributes {
		merged[key] = value
	}
	merged["id"] = r.Id

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return &DecodeError{Entity: entity, Err: err}
	}
	if err := decoder.Decode(merged); err != nil {
		return &DecodeError{Entity: entity, Err: err}
	}
	return nil
}

// relationName extracts the name of a to-one linked entity.
func (r entityRecord) relationName(key string) string {
	raw, found := r.Relationships[key]
	if !found {
		return ""
	}
	var relation struct {
		Data struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &relation); err != nil {
		return ""
	}
	return relation.Data.Name
}

// relationNames extracts the names of a to-many linked entity list.
func (r entityRecord) relationNames(key string) []string {
	raw, found := r.Relationships[key]
	if !found {
		return nil
	}
	var relation struct {
		Data []struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &relation); err != nil {
		return nil
	}
	names := make([]string, 0, len(relation.Data))
	for _, entity := range relation.Data {
		names = append(names, entity.Name)
	}
	return names
}

// ensureToken fetches or refreshes the script user's bearer token.
func (c *restClient) ensureToken(ctx context.Context) (string, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.token != "" && time.Now().Before(c.expiry.Add(-30*time.Second)) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.scriptName)
	form.Set("client_secret", c.apiKey)

	request, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/auth/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	response, err := c.client.Do(request)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return "", err
	}
	if response.StatusCode != http.StatusOK {
		return "", &RequestError{StatusCode: response.StatusCode, Detail: string(body)}
	}

	var grant struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &grant); err != nil {
		return "", &DecodeError{Entity: "access token", Err: err}
	}
	c.token = grant.AccessToken
	c.expiry = time.Now().Add(time.Duration(grant.ExpiresIn) * time.Second)
	return c.token, nil
}

// do issues one authenticated request and returns the response body.
func (c *restClient) do(ctx context.Context, method, path, contentType string,
	payload []byte) ([]byte, error) {

	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Authorization", "Bearer "+token)
	request.Header.Set("Accept", "application/json")
	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}

	response, err := c.client.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}
	if response.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, &RequestError{StatusCode: response.StatusCode, Detail: string(responseBody)}
	}
	return responseBody, nil
}

// search runs a filtered entity query.
func (c *restClient) search(ctx context.Context, plural string, filters []any,
	fields []string) ([]entityRecord, error) {

	payload, err := json.Marshal(map[string]any{
		"filters": filters,
		"fields":  fields,
	})
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, http.MethodPost,
		fmt.Sprintf("/api/v1/entity/%s/_search", plural), searchContentType, payload)
	if err != nil || body == nil {
		return nil, err
	}

	var result struct {
		Data []entityRecord `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &DecodeError{Entity: plural, Err: err}
	}
	return result.Data, nil
}

// readOne fetches a single entity by id, or nil if it does not exist.
func (c *restClient) readOne(ctx context.Context, plural string, id int64,
	fields []string) (*entityRecord, error) {

	path := fmt.Sprintf("/api/v1/entity/%s/%d?fields=%s",
		plural, id, url.QueryEscape(strings.Join(fields, ",")))
	body, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil || body == nil {
		return nil, err
	}

	var result struct {
		Data entityRecord `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &DecodeError{Entity: plural, Err: err}
	}
	return &result.Data, nil
}

// create inserts an entity and returns its new id.
func (c *restClient) create(ctx context.Context, plural string, fields map[string]any) (int64, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return 0, err
	}
	body, err := c.do(ctx, http.MethodPost,
		fmt.Sprintf("/api/v1/entity/%s", plural), "application/json", payload)
	if err != nil {
		return 0, err
	}

	var result struct {
		Data entityRecord `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, &DecodeError{Entity: plural, Err: err}
	}
	return result.Data.Id, nil
}

// update rewrites fields on an existing entity.
func (c *restClient) update(ctx context.Context, plural string, id int64, fields map[string]any) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPut,
		fmt.Sprintf("/api/v1/entity/%s/%d", plural, id), "application/json", payload)
	return err
}

// pluralOf maps an entity type to its REST collection name.
func pluralOf(entityType string) string {
	if entityType == "HumanUser" {
		return "human_users"
	}
	return strings.ToLower(entityType) + "s"
}

// entityRef composes the linked-entity payload ShotGrid expects.
func entityRef(entityType string, id int64) map[string]any {
	return map[string]any{"type": entityType, "id": id}
}

func (c *restClient) Projects(ctx context.Context) ([]Project, error) {
	records, err := c.search(ctx, "projects",
		[]any{[]any{"sg_status", "is", "Active"}},
		[]string{"name", "sg_status", "sg_description"})
	if err != nil {
		return nil, err
	}
	projects := make([]Project, 0, len(records))
	for _, record := range records {
		var project Project
		if err := record.decode(&project, "Project"); err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, nil
}

func (c *restClient) Project(ctx context.Context, id int64) (*Project, error) {
	record, err := c.readOne(ctx, "projects", id,
		[]string{"name", "sg_status", "sg_description"})
	if err != nil || record == nil {
		return nil, err
	}
	var project Project
	if err := record.decode(&project, "Project"); err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *restClient) Shots(ctx context.Context, projectID int64, sequence string) ([]Shot, error) {
	filters := []any{[]any{"project", "is", entityRef("Project", projectID)}}
	if sequence != "" {
		filters = append(filters, []any{"sg_sequence.Sequence.code", "is", sequence})
	}
	records, err := c.search(ctx, "shots", filters,
		[]string{"code", "sg_status_list", "description", "sg_sequence", "sg_cut_in", "sg_cut_out"})
	if err != nil {
		return nil, err
	}
	shots := make([]Shot, 0, len(records))
	for _, record := range records {
		var shot Shot
		if err := record.decode(&shot, "Shot"); err != nil {
			return nil, err
		}
		shot.Sequence = record.relationName("sg_sequence")
		shots = append(shots, shot)
	}
	return shots, nil
}

func (c *restClient) Shot(ctx context.Context, id int64) (*Shot, error) {
	record, err := c.readOne(ctx, "shots", id,
		[]string{"code", "sg_status_list", "description", "sg_sequence", "sg_cut_in", "sg_cut_out"})
	if err != nil || record == nil {
		return nil, err
	}
	var shot Shot
	if err := record.decode(&shot, "Shot"); err != nil {
		return nil, err
	}
	shot.Sequence = record.relationName("sg_sequence")
	return &shot, nil
}

func (c *restClient) Assets(ctx context.Context, projectID int64, assetType string) ([]Asset, error) {
	filters := []any{[]any{"project", "is", entityRef("Project", projectID)}}
	if assetType != "" {
		filters = append(filters, []any{"sg_asset_type", "is", assetType})
	}
	records, err := c.search(ctx, "assets", filters,
		[]string{"code", "sg_asset_type", "sg_status_list", "description"})
	if err != nil {
		return nil, err
	}
	assets := make([]Asset, 0, len(records))
	for _, record := range records {
		var asset Asset
		if err := record.decode(&asset, "Asset"); err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, nil
}

func (c *restClient) Asset(ctx context.Context, id int64) (*Asset, error) {
	record, err := c.readOne(ctx, "assets", id,
		[]string{"code", "sg_asset_type", "sg_status_list", "description"})
	if err != nil || record == nil {
		return nil, err
	}
	var asset Asset
	if err := record.decode(&asset, "Asset"); err != nil {
		return nil, err
	}
	return &asset, nil
}

func (c *restClient) Tasks(ctx context.Context, entityType string, entityID int64) ([]Task, error) {
	records, err := c.search(ctx, "tasks",
		[]any{[]any{"entity", "is", entityRef(entityType, entityID)}},
		[]string{"content", "sg_status_list", "task_assignees", "step"})
	if err != nil {
		return nil, err
	}
	tasks := make([]Task, 0, len(records))
	for _, record := range records {
		var task Task
		if err := record.decode(&task, "Task"); err != nil {
			return nil, err
		}
		task.Step = record.relationName("step")
		task.Assignees = record.relationNames("task_assignees")
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (c *restClient) UserByLogin(ctx context.Context, login string) (*HumanUser, error) {
	records, err := c.search(ctx, "human_users",
		[]any{[]any{"login", "is", login}},
		[]string{"name", "login", "email", "department"})
	if err != nil || len(records) == 0 {
		return nil, err
	}
	var user HumanUser
	if err := records[0].decode(&user, "HumanUser"); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *restClient) UpdateEntityStatus(ctx context.Context, entityType string,
	entityID int64, status string) error {

	return c.update(ctx, pluralOf(entityType), entityID,
		map[string]any{"sg_status_list": status})
}

func (c *restClient) CreateVersion(ctx context.Context, version NewVersion) (int64, error) {
	fields := map[string]any{
		"project":          entityRef("Project", version.ProjectID),
		"code":             version.Code,
		"description":      version.Description,
		"sg_path_to_movie": version.Path,
		"sg_status_list":   "rev",
	}
	if version.EntityID != 0 {
		fields["entity"] = entityRef(version.EntityType, version.EntityID)
	}
	return c.create(ctx, "versions", fields)
}

func (c *restClient) CreateNote(ctx context.Context, note NewNote) (int64, error) {
	fields := map[string]any{
		"project": entityRef("Project", note.ProjectID),
		"subject": note.Subject,
		"content": note.Content,
	}
	if note.EntityID != 0 {
		fields["note_links"] = []any{entityRef(note.EntityType, note.EntityID)}
	}
	return c.create(ctx, "notes", fields)
}
