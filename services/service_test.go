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

// This file runs the delivery service end to end: a live HTTP server over a
// temporary directory tree, a seeded crew of one account per role, and the
// real queue dispatchers doing the scanning, copying, and verifying.
import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"zombiezen.com/go/sqlite"

	"github.com/databridge-io/databridge/auth"
	"github.com/databridge-io/databridge/bridgetest"
	"github.com/databridge-io/databridge/catalog"
	"github.com/databridge-io/databridge/config"
	"github.com/databridge-io/databridge/journal"
	"github.com/databridge-io/databridge/policy"
	"github.com/databridge-io/databridge/shotgrid"
	"github.com/databridge-io/databridge/store"
	"github.com/databridge-io/databridge/tasks"
	"github.com/databridge-io/databridge/transfers"
	"github.com/databridge-io/databridge/workers"
)

// working directory from which the tests were invoked
var CWD string

// temporary testing directory
var TESTING_DIR string

// service URLs
var (
	baseUrl   = "http://localhost:8043/"
	apiPrefix = "api/v1/"
)

// service instance
var service DeliveryService

// the store behind the running service (the verification test reaches past
// the API to corrupt a staged file)
var testStore *store.Store

// session tokens and account ids by username, minted during setup
var (
	tokens        = make(map[string]string)
	refreshTokens = make(map[string]string)
	userIds       = make(map[string]int64)
)

// every seeded account shares this password
const testPassword = "delivery.test.1"

// the seeded crew: one account per pipeline role, plus a second artist
var crew = []struct {
	username    string
	displayName string
	role        policy.Role
}{
	{"sarah", "Sarah Chen", policy.RoleArtist},
	{"james", "James Park", policy.RoleArtist},
	{"marcus", "Marcus Johnson", policy.RoleTeamLead},
	{"kim", "Kim Tanaka", policy.RoleSupervisor},
	{"alex", "Alex Rivera", policy.RoleLineProducer},
	{"priya", "Priya Sharma", policy.RoleDataTeam},
	{"tom", "Tom Wilson", policy.RoleITTeam},
	{"root", "Root Admin", policy.RoleAdmin},
}

// the tiny upload cap (in GB) keeps the oversize test practical: it works
// out to roughly 10 KB per transfer
const bridgeConfig string = `
service:
  name: DataBridge
  port: 8043
  max_connections: 100
  poll_interval: 1
  data_directory: TESTING_DIR/data
  stale_after_hours: 24
database:
  path: TESTING_DIR/databridge.db
  pool_size: 8
paths:
  staging_root: TESTING_DIR/staging
  production_root: TESTING_DIR/production
  upload_temp: TESTING_DIR/uploads
scan:
  clamav_enabled: false
  timeout_seconds: 30
transfer:
  method: stream
  timeout_seconds: 60
  max_upload_size_gb: 0.00001
auth:
  secret: AUTH_SECRET
mail:
  enabled: false
shotgrid:
  enabled: false
`

// performs testing setup
func setup() {
	bridgetest.EnableDebugLogging()

	// jot down our CWD, create a temporary directory, and change to it
	var err error
	CWD, err = os.Getwd()
	if err != nil {
		log.Panicf("Couldn't get current working directory: %s", err)
	}
	log.Print("Creating testing directory...\n")
	TESTING_DIR, err = os.MkdirTemp(os.TempDir(), "databridge-service-tests-")
	if err != nil {
		log.Panicf("Couldn't create testing directory: %s", err)
	}
	os.Chdir(TESTING_DIR)

	// read in the config file with TESTING_DIR and AUTH_SECRET replaced
	myConfig := strings.ReplaceAll(bridgeConfig, "TESTING_DIR", TESTING_DIR)
	myConfig = strings.ReplaceAll(myConfig, "AUTH_SECRET", bridgetest.FreshSecret())
	err = config.Init([]byte(myConfig))
	if err != nil {
		log.Panicf("Couldn't initialize configuration: %s", err)
	}

	for _, dir := range []string{config.Service.DataDirectory,
		config.Paths.StagingRoot, config.Paths.ProductionRoot} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Panicf("Couldn't create directory %s: %s", dir, err)
		}
	}

	// build the service's dependencies the way the serve command does
	testStore, err = store.Open(config.Database.Path, config.Database.PoolSize)
	if err != nil {
		log.Panicf("Couldn't open the store: %s", err)
	}
	queues := tasks.New(testStore)
	pipeline := transfers.NewPipeline(testStore, queues)
	deliveries, err := journal.Open(filepath.Join(config.Service.DataDirectory, "deliveries.db"))
	if err != nil {
		log.Panicf("Couldn't open the delivery journal: %s", err)
	}
	studio := shotgrid.NewClient()
	workers.New(pipeline, studio, deliveries).Register(queues)

	seedAccounts()

	// Start the service.
	log.Print("Starting test delivery service...\n")
	go func() {
		service, err = New(pipeline, queues, studio, deliveries)
		if err != nil {
			log.Panicf("Couldn't construct the service: %s", err.Error())
		}
		err = service.Start(config.Service.Port)
		if err != nil {
			log.Panicf("Couldn't start delivery service: %s", err.Error())
		}
	}()

	// Give the service time to start up.
	time.Sleep(100 * time.Millisecond)

	fetchTokens()

	// Change back to our original CWD.
	os.Chdir(CWD)
}

// Performs testing breakdown.
func breakdown() {

	if service != nil {
		// Gracefully shut the service down when it finishes its work.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		service.Shutdown(ctx)
	}
	if testStore != nil {
		testStore.Close()
	}

	if TESTING_DIR != "" {
		// Remove the testing directory and its contents.
		log.Printf("Deleting testing directory %s...\n", TESTING_DIR)
		os.RemoveAll(TESTING_DIR)
	}
}

// seeds one account per crew entry with a shared password
func seedAccounts() {
	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		log.Panicf("Couldn't hash the test password: %s", err)
	}
	err = testStore.WithConn(context.Background(), func(conn *sqlite.Conn) error {
		for _, member := range crew {
			user := catalog.User{
				Username:     member.username,
				Email:        member.username + "@studio.local",
				DisplayName:  member.displayName,
				Role:         member.role,
				PasswordHash: hash,
				Active:       true,
			}
			if err := catalog.InsertUser(conn, &user); err != nil {
				return err
			}
			userIds[member.username] = user.ID
		}
		return nil
	})
	if err != nil {
		log.Panicf("Couldn't seed accounts: %s", err)
	}
}

// logs every crew member in through the API, caching their tokens
func fetchTokens() {
	for _, member := range crew {
		payload, _ := json.Marshal(LoginRequest{
			Username: member.username,
			Password: testPassword,
		})
		resp, err := post(baseUrl+apiPrefix+"auth/login", "", bytes.NewReader(payload))
		if err != nil {
			log.Panicf("Couldn't log %s in: %s", member.username, err)
		}
		if resp.StatusCode != http.StatusOK {
			log.Panicf("Logging %s in returned %d", member.username, resp.StatusCode)
		}
		var session TokenResponse
		if err := decode(resp, &session); err != nil {
			log.Panicf("Couldn't decode %s's session: %s", member.username, err)
		}
		tokens[member.username] = session.AccessToken
		refreshTokens[member.username] = session.RefreshToken
	}
}

// sends a GET query with well-formed headers
func get(resource, token string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, resource, http.NoBody)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	}
	return http.DefaultClient.Do(req)
}

// sends a POST query with well-formed headers and a JSON payload
func post(resource, token string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, resource, body)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	}
	req.Header.Add("Content-Type", "application/json")
	return http.DefaultClient.Do(req)
}

// sends a PUT query with well-formed headers and a JSON payload
func put(resource, token string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPut, resource, body)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	req.Header.Add("Content-Type", "application/json")
	return http.DefaultClient.Do(req)
}

// sends a DELETE query with well-formed headers
func delete_(resource, token string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodDelete, resource, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	req.Header.Add("Content-Type", "application/json")
	return http.DefaultClient.Do(req)
}

// sends a multipart POST with one "file" part per named content
func upload(resource, token string, files map[string]string) (*http.Response, error) {
	var buffer bytes.Buffer
	writer := multipart.NewWriter(&buffer)
	for name, content := range files {
		part, err := writer.CreateFormFile("file", name)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write([]byte(content)); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, resource, &buffer)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	req.Header.Add("Content-Type", writer.FormDataContentType())
	return http.DefaultClient.Do(req)
}

// reads and unmarshals a response body
func decode(resp *http.Response, out any) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// creates a transfer through the API as the given user
func createDelivery(assert *assert.Assertions, token, name, category string) TransferResponse {
	payload, _ := json.Marshal(CreateTransferRequest{Name: name, Category: category})
	resp, err := post(baseUrl+apiPrefix+"transfers", token, bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusCreated, resp.StatusCode)
	var transfer TransferResponse
	assert.Nil(decode(resp, &transfer))
	return transfer
}

// uploads the named contents to a transfer
func stageFiles(assert *assert.Assertions, token string, id int64,
	files map[string]string) []FileResponse {
	resp, err := upload(baseUrl+apiPrefix+fmt.Sprintf("transfers/%d/upload", id), token, files)
	assert.Nil(err)
	assert.Equal(http.StatusCreated, resp.StatusCode)
	var staged []FileResponse
	assert.Nil(decode(resp, &staged))
	assert.Equal(len(files), len(staged))
	return staged
}

// submits a transfer for review
func submitDelivery(assert *assert.Assertions, token string, id int64) TransferResponse {
	resp, err := post(baseUrl+apiPrefix+fmt.Sprintf("transfers/%d/submit", id),
		token, strings.NewReader("{}"))
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	var transfer TransferResponse
	assert.Nil(decode(resp, &transfer))
	return transfer
}

// approves the current review stage, expecting success
func approveStage(assert *assert.Assertions, token string, id int64, comment string) TransferResponse {
	payload, _ := json.Marshal(map[string]string{"comment": comment})
	resp, err := post(baseUrl+apiPrefix+fmt.Sprintf("approvals/%d/approve", id),
		token, bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	var transfer TransferResponse
	assert.Nil(decode(resp, &transfer))
	return transfer
}

// fetches a transfer's detail view
func fetchDetail(assert *assert.Assertions, token string, id int64) TransferDetailResponse {
	resp, err := get(baseUrl+apiPrefix+fmt.Sprintf("transfers/%d", id), token)
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	var detail TransferDetailResponse
	assert.Nil(decode(resp, &detail))
	return detail
}

// polls a transfer until the workers move it to the wanted status
func awaitStatus(assert *assert.Assertions, token string, id int64, want string) TransferDetailResponse {
	deadline := time.Now().Add(30 * time.Second)
	for {
		detail := fetchDetail(assert, token, id)
		if detail.Status == want {
			return detail
		}
		if time.Now().After(deadline) {
			assert.Equal(want, detail.Status, "The workers should settle the transfer in time.")
			return detail
		}
		time.Sleep(150 * time.Millisecond)
	}
}

// lists a user's notifications about one transfer
func notificationsAbout(assert *assert.Assertions, token string, transferID int64) []NotificationResponse {
	resp, err := get(baseUrl+apiPrefix+"notifications?limit=200", token)
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	var all []NotificationResponse
	assert.Nil(decode(resp, &all))
	var matching []NotificationResponse
	for _, notification := range all {
		if notification.TransferId != nil && *notification.TransferId == transferID {
			matching = append(matching, notification)
		}
	}
	return matching
}

// collects the transfer ids visible to a user
func visibleIds(assert *assert.Assertions, token string) map[int64]bool {
	resp, err := get(baseUrl+apiPrefix+"transfers?per_page=100", token)
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	var page TransferPageResponse
	assert.Nil(decode(resp, &page))
	ids := make(map[int64]bool)
	for _, transfer := range page.Transfers {
		ids[transfer.Id] = true
	}
	return ids
}

// queries the service's root endpoint
func TestQueryRoot(t *testing.T) {
	assert := assert.New(t)

	resp, err := get(baseUrl, "")
	assert.Nil(err)

	var root ServiceInfoResponse
	assert.Nil(decode(resp, &root))
	assert.Equal("DataBridge", root.Name)
	assert.Equal(version, root.Version)
	assert.Equal("/docs", root.Documentation)
}

// queries the liveness probe
func TestHealth(t *testing.T) {
	assert := assert.New(t)

	resp, err := get(baseUrl+"health", "")
	assert.Nil(err)

	var health HealthResponse
	assert.Nil(decode(resp, &health))
	assert.Equal("ok", health.Status)
	assert.Equal(version, health.Version)
}

// bad credentials and missing tokens are both turned away
func TestAuthRequired(t *testing.T) {
	assert := assert.New(t)

	// a wrong password and an unknown account read identically
	payload, _ := json.Marshal(LoginRequest{Username: "sarah", Password: "wrong"})
	resp, err := post(baseUrl+apiPrefix+"auth/login", "", bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusUnauthorized, resp.StatusCode)

	payload, _ = json.Marshal(LoginRequest{Username: "nobody", Password: testPassword})
	resp, err = post(baseUrl+apiPrefix+"auth/login", "", bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusUnauthorized, resp.StatusCode)

	// API calls need a bearer token
	resp, err = get(baseUrl+apiPrefix+"transfers", "")
	assert.Nil(err)
	assert.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp, err = get(baseUrl+apiPrefix+"transfers", "not-a-real-token")
	assert.Nil(err)
	assert.Equal(http.StatusUnauthorized, resp.StatusCode)
}

// a refresh token mints a fresh access token, and only an access token
func TestRefreshToken(t *testing.T) {
	assert := assert.New(t)

	payload, _ := json.Marshal(map[string]string{"refresh_token": refreshTokens["sarah"]})
	resp, err := post(baseUrl+apiPrefix+"auth/refresh", "", bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)

	var session TokenResponse
	assert.Nil(decode(resp, &session))
	assert.NotEmpty(session.AccessToken)
	assert.Empty(session.RefreshToken)
	assert.Equal("sarah", session.User.Username)

	// the minted access token works
	resp, err = get(baseUrl+apiPrefix+"auth/me", session.AccessToken)
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)

	// an access token is not accepted as a refresh token
	payload, _ = json.Marshal(map[string]string{"refresh_token": tokens["sarah"]})
	resp, err = post(baseUrl+apiPrefix+"auth/refresh", "", bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusUnauthorized, resp.StatusCode)
}

// the whoami endpoint reflects the token's account
func TestCurrentUser(t *testing.T) {
	assert := assert.New(t)

	resp, err := get(baseUrl+apiPrefix+"auth/me", tokens["priya"])
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)

	var user UserResponse
	assert.Nil(decode(resp, &user))
	assert.Equal("priya", user.Username)
	assert.Equal("data_team", user.Role)
	assert.Equal("Priya Sharma", user.DisplayName)
}

// walks one delivery through the whole pipeline: create, upload, submit,
// three human approvals, scan, prepare, execute, verify, delivery record
func TestHappyPathDelivery(t *testing.T) {
	assert := assert.New(t)

	// sarah packages up her scene
	transfer := createDelivery(assert, tokens["sarah"], "Scene_042", "vfx_assets")
	assert.Equal("TRF-00001", transfer.Reference)
	assert.Equal("uploaded", transfer.Status)
	assert.Equal(userIds["sarah"], transfer.ArtistId)

	contents := map[string]string{
		"frame_0001.exr": "exr frame data 0001",
		"frame_0002.exr": "exr frame data 0002",
		"shot_notes.txt": "comp notes for scene 42",
	}
	expectedBytes := int64(0)
	for _, content := range contents {
		expectedBytes += int64(len(content))
	}
	staged := stageFiles(assert, tokens["sarah"], transfer.Id, contents)
	for _, file := range staged {
		assert.NotEmpty(file.ChecksumSha256)
		assert.Equal("pending", file.ScanStatus)
	}

	detail := fetchDetail(assert, tokens["sarah"], transfer.Id)
	assert.Equal(int64(3), detail.TotalFiles)
	assert.Equal(expectedBytes, detail.TotalSizeBytes)
	assert.Equal(3, len(detail.Files))

	submitted := submitDelivery(assert, tokens["sarah"], transfer.Id)
	assert.Equal("pending_team_lead", submitted.Status)

	// the transfer shows up in marcus's review queue
	resp, err := get(baseUrl+apiPrefix+"approvals/pending", tokens["marcus"])
	assert.Nil(err)
	var pending []TransferResponse
	assert.Nil(decode(resp, &pending))
	found := false
	for _, waiting := range pending {
		if waiting.Id == transfer.Id {
			found = true
		}
	}
	assert.True(found)

	resp, err = get(baseUrl+apiPrefix+"approvals/pending/count", tokens["marcus"])
	assert.Nil(err)
	var badge struct {
		Count int `json:"count"`
	}
	assert.Nil(decode(resp, &badge))
	assert.True(badge.Count >= 1)

	// the three human reviews
	assert.Equal("pending_supervisor",
		approveStage(assert, tokens["marcus"], transfer.Id, "Looks good").Status)
	assert.Equal("pending_line_producer",
		approveStage(assert, tokens["kim"], transfer.Id, "").Status)
	assert.Equal("approved",
		approveStage(assert, tokens["alex"], transfer.Id, "Cleared for delivery").Status)

	// the chain records the decisions in order
	resp, err = get(baseUrl+apiPrefix+fmt.Sprintf("approvals/%d/chain", transfer.Id), tokens["sarah"])
	assert.Nil(err)
	var chain []ChainEntryResponse
	assert.Nil(decode(resp, &chain))
	assert.Equal(5, len(chain))
	assert.Equal("team_lead", chain[0].Role)
	assert.Equal("approved", chain[0].Status)
	assert.Equal("Marcus Johnson", chain[0].ApproverName)
	assert.Equal("Looks good", chain[0].Comment)
	assert.Equal("approved", chain[1].Status)
	assert.Equal("approved", chain[2].Status)
	assert.Equal("pending", chain[3].Status)
	assert.Equal("pending", chain[4].Status)

	// priya kicks off the scan; the workers take it from there
	resp, err = post(baseUrl+apiPrefix+fmt.Sprintf("scanning/%d/start", transfer.Id),
		tokens["priya"], strings.NewReader("{}"))
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	var scanning TransferResponse
	assert.Nil(decode(resp, &scanning))
	assert.Equal("scanning", scanning.Status)

	ready := awaitStatus(assert, tokens["sarah"], transfer.Id, "ready_for_transfer")
	assert.NotNil(ready.ScanPassed)
	assert.True(*ready.ScanPassed)
	assert.Contains(ready.ProductionPath, filepath.Join("unlinked", "vfx_assets", "TRF-00001"))

	// the scan report tallies every file clean and checksum-verified
	resp, err = get(baseUrl+apiPrefix+fmt.Sprintf("scanning/%d/status", transfer.Id), tokens["sarah"])
	assert.Nil(err)
	var report ScanStatusResponse
	assert.Nil(decode(resp, &report))
	assert.Equal(3, report.Files.Total)
	assert.Equal(3, report.Files.Clean)
	assert.Equal(3, report.Files.ChecksumVerified)
	assert.Equal(0, report.Files.Infected)

	// tom pushes the files to production
	resp, err = post(baseUrl+apiPrefix+fmt.Sprintf("transfer-ops/%d/execute", transfer.Id),
		tokens["tom"], strings.NewReader("{}"))
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)

	delivered := awaitStatus(assert, tokens["sarah"], transfer.Id, "transferred")
	assert.NotNil(delivered.TransferVerified)
	assert.True(*delivered.TransferVerified)
	assert.Equal("stream", delivered.TransferMethod)

	// the files and the manifest landed in production
	for filename := range contents {
		_, err := os.Stat(filepath.Join(delivered.ProductionPath, filename))
		assert.Nil(err)
	}
	deadline := time.Now().Add(10 * time.Second)
	for {
		if _, err := os.Stat(filepath.Join(delivered.ProductionPath, "manifest.json")); err == nil {
			break
		}
		if time.Now().After(deadline) {
			assert.Fail("The delivery manifest should be written beside the files.")
			break
		}
		time.Sleep(150 * time.Millisecond)
	}

	// the audit trail tells the whole story
	resp, err = get(baseUrl+apiPrefix+fmt.Sprintf("transfers/%d/history", transfer.Id), tokens["sarah"])
	assert.Nil(err)
	var history []HistoryResponse
	assert.Nil(decode(resp, &history))
	assert.True(len(history) >= 9)
	actions := make([]string, 0, len(history))
	for _, entry := range history {
		actions = append(actions, entry.Action)
	}
	assert.Equal("submitted", actions[0])
	assert.Contains(actions, "scan_passed")
	assert.Contains(actions, "transferred")

	// sarah hears that her delivery completed
	completed := false
	for _, notification := range notificationsAbout(assert, tokens["sarah"], transfer.Id) {
		if notification.Type == "transfer_complete" {
			completed = true
		}
	}
	assert.True(completed)

	// the delivery shows up in the journal report
	deadline = time.Now().Add(10 * time.Second)
	for {
		resp, err = get(baseUrl+apiPrefix+"reports/deliveries", tokens["priya"])
		assert.Nil(err)
		assert.Equal(http.StatusOK, resp.StatusCode)
		var records []DeliveryRecordResponse
		assert.Nil(decode(resp, &records))
		matched := false
		for _, record := range records {
			if record.Reference == "TRF-00001" {
				matched = true
				assert.Equal("sarah", record.Artist)
				assert.Equal("transferred", record.Status)
				assert.Equal(3, record.NumFiles)
				assert.Equal(expectedBytes, record.PayloadSize)
			}
		}
		if matched {
			break
		}
		if time.Now().After(deadline) {
			assert.Fail("The delivery should be journaled.")
			break
		}
		time.Sleep(150 * time.Millisecond)
	}

	// artists don't get the delivery report
	resp, err = get(baseUrl+apiPrefix+"reports/deliveries", tokens["sarah"])
	assert.Nil(err)
	assert.Equal(http.StatusForbidden, resp.StatusCode)
}

// a rejection lands on the artist and on everyone who already approved,
// but not on reviewers who never saw it
func TestRejectionNotifiesPriorApprovers(t *testing.T) {
	assert := assert.New(t)

	transfer := createDelivery(assert, tokens["sarah"], "Scene_043_Lighting", "vfx_assets")
	stageFiles(assert, tokens["sarah"], transfer.Id, map[string]string{
		"light_rig.ma": "maya lighting rig",
	})
	submitDelivery(assert, tokens["sarah"], transfer.Id)
	approveStage(assert, tokens["marcus"], transfer.Id, "")

	payload, _ := json.Marshal(map[string]string{"reason": "Frame range is incorrect"})
	resp, err := post(baseUrl+apiPrefix+fmt.Sprintf("approvals/%d/reject", transfer.Id),
		tokens["kim"], bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	var rejected TransferResponse
	assert.Nil(decode(resp, &rejected))
	assert.Equal("rejected", rejected.Status)
	assert.Equal("Frame range is incorrect", rejected.RejectionReason)

	// the artist hears why
	artistHeard := false
	for _, notification := range notificationsAbout(assert, tokens["sarah"], transfer.Id) {
		if notification.Type == "rejected" {
			artistHeard = true
			assert.Contains(notification.Message, "Frame range is incorrect")
		}
	}
	assert.True(artistHeard)

	// marcus approved it earlier, so he hears too
	leadHeard := false
	for _, notification := range notificationsAbout(assert, tokens["marcus"], transfer.Id) {
		if notification.Type == "rejected" {
			leadHeard = true
			assert.Contains(notification.Message, "previously approved")
		}
	}
	assert.True(leadHeard)

	// alex never reviewed it and hears nothing about the rejection
	for _, notification := range notificationsAbout(assert, tokens["alex"], transfer.Id) {
		assert.NotEqual("rejected", notification.Type)
	}

	resp, err = get(baseUrl+apiPrefix+fmt.Sprintf("transfers/%d/history", transfer.Id), tokens["sarah"])
	assert.Nil(err)
	var history []HistoryResponse
	assert.Nil(decode(resp, &history))
	assert.Equal("rejected", history[len(history)-1].Action)
}

// two identical approvals racing on the same stage: one wins, one is told
// the moment has passed
func TestConcurrentApprovalRace(t *testing.T) {
	assert := assert.New(t)

	transfer := createDelivery(assert, tokens["sarah"], "Scene_044_Race", "vfx_assets")
	stageFiles(assert, tokens["sarah"], transfer.Id, map[string]string{
		"race.txt": "contested delivery",
	})
	submitDelivery(assert, tokens["sarah"], transfer.Id)

	statuses := make(chan int, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload, _ := json.Marshal(map[string]string{"comment": "approving"})
			resp, err := post(baseUrl+apiPrefix+fmt.Sprintf("approvals/%d/approve", transfer.Id),
				tokens["marcus"], bytes.NewReader(payload))
			if err != nil {
				statuses <- 0
				return
			}
			resp.Body.Close()
			statuses <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(statuses)

	var results []int
	for status := range statuses {
		results = append(results, status)
	}
	assert.Contains(results, http.StatusOK)
	assert.Contains(results, http.StatusBadRequest)

	detail := fetchDetail(assert, tokens["sarah"], transfer.Id)
	assert.Equal("pending_supervisor", detail.Status)
}

// a file corrupted after scanning is caught by the post-copy verification
func TestChecksumMismatchFailsVerification(t *testing.T) {
	assert := assert.New(t)

	transfer := createDelivery(assert, tokens["sarah"], "Scene_045_Corrupt", "plates")
	stageFiles(assert, tokens["sarah"], transfer.Id, map[string]string{
		"frame_a.exr": "original frame a",
		"frame_b.exr": "original frame b",
	})
	submitDelivery(assert, tokens["sarah"], transfer.Id)
	approveStage(assert, tokens["marcus"], transfer.Id, "")
	approveStage(assert, tokens["kim"], transfer.Id, "")
	approveStage(assert, tokens["alex"], transfer.Id, "")

	resp, err := post(baseUrl+apiPrefix+fmt.Sprintf("scanning/%d/start", transfer.Id),
		tokens["priya"], strings.NewReader("{}"))
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	ready := awaitStatus(assert, tokens["sarah"], transfer.Id, "ready_for_transfer")

	// corrupt one staged file after its checksum was recorded and verified
	err = os.WriteFile(filepath.Join(ready.StagingPath, "frame_a.exr"),
		[]byte("corrupted frame a"), 0644)
	assert.Nil(err)

	resp, err = post(baseUrl+apiPrefix+fmt.Sprintf("transfer-ops/%d/execute", transfer.Id),
		tokens["tom"], strings.NewReader("{}"))
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	failed := awaitStatus(assert, tokens["sarah"], transfer.Id, "scan_failed")
	assert.NotNil(failed.TransferVerified)
	assert.False(*failed.TransferVerified)

	// the audit row names the mismatched file
	resp, err = get(baseUrl+apiPrefix+fmt.Sprintf("transfers/%d/history", transfer.Id), tokens["sarah"])
	assert.Nil(err)
	var history []HistoryResponse
	assert.Nil(decode(resp, &history))
	var mismatched []any
	for _, entry := range history {
		if entry.Action == "verification_failed" {
			names, ok := entry.Metadata["mismatched_files"].([]any)
			assert.True(ok)
			mismatched = names
		}
	}
	assert.Contains(mismatched, "frame_a.exr")

	// both operating teams hear about the failure
	for _, username := range []string{"priya", "tom"} {
		heard := false
		for _, notification := range notificationsAbout(assert, tokens[username], transfer.Id) {
			if notification.Type == "transfer_failed" {
				heard = true
			}
		}
		assert.True(heard)
	}
}

// an admin override skips every stage still waiting and leaves decided
// stages alone
func TestAdminOverrideSkipsPendingStages(t *testing.T) {
	assert := assert.New(t)

	transfer := createDelivery(assert, tokens["sarah"], "Scene_046_Stuck", "vfx_assets")
	stageFiles(assert, tokens["sarah"], transfer.Id, map[string]string{
		"stuck.txt": "waiting on a supervisor",
	})
	submitDelivery(assert, tokens["sarah"], transfer.Id)
	approveStage(assert, tokens["marcus"], transfer.Id, "Fine by me")

	// only admins may force the chain
	payload, _ := json.Marshal(map[string]string{"status": "approved", "reason": "ship it"})
	resp, err := post(baseUrl+apiPrefix+fmt.Sprintf("approvals/%d/override", transfer.Id),
		tokens["kim"], bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp, err = post(baseUrl+apiPrefix+fmt.Sprintf("approvals/%d/override", transfer.Id),
		tokens["root"], bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	var forced TransferResponse
	assert.Nil(decode(resp, &forced))
	assert.Equal("approved", forced.Status)

	resp, err = get(baseUrl+apiPrefix+fmt.Sprintf("approvals/%d/chain", transfer.Id), tokens["root"])
	assert.Nil(err)
	var chain []ChainEntryResponse
	assert.Nil(decode(resp, &chain))
	assert.Equal(5, len(chain))
	assert.Equal("approved", chain[0].Status)
	assert.Equal("Marcus Johnson", chain[0].ApproverName)
	for _, entry := range chain[1:] {
		assert.Equal("skipped", entry.Status)
		assert.Contains(entry.Comment, "ship it")
	}

	resp, err = get(baseUrl+apiPrefix+fmt.Sprintf("transfers/%d/history", transfer.Id), tokens["root"])
	assert.Nil(err)
	var history []HistoryResponse
	assert.Nil(decode(resp, &history))
	assert.Equal("admin_override", history[len(history)-1].Action)

	// the artist is told their transfer moved
	overridden := false
	for _, notification := range notificationsAbout(assert, tokens["sarah"], transfer.Id) {
		if notification.Type == "system" && strings.Contains(notification.Subject, "override") {
			overridden = true
		}
	}
	assert.True(overridden)
}

// each role sees exactly its slice of the pipeline
func TestVisibilityByRole(t *testing.T) {
	assert := assert.New(t)

	sarahs := createDelivery(assert, tokens["sarah"], "Sarah_Pending", "vfx_assets")
	stageFiles(assert, tokens["sarah"], sarahs.Id, map[string]string{"a.txt": "sarah's"})
	submitDelivery(assert, tokens["sarah"], sarahs.Id)

	jamess := createDelivery(assert, tokens["james"], "James_Pending", "animations")
	stageFiles(assert, tokens["james"], jamess.Id, map[string]string{"b.txt": "james's"})
	submitDelivery(assert, tokens["james"], jamess.Id)

	// artists see their own and nothing else
	sarahSees := visibleIds(assert, tokens["sarah"])
	assert.True(sarahSees[sarahs.Id])
	assert.False(sarahSees[jamess.Id])

	jamesSees := visibleIds(assert, tokens["james"])
	assert.True(jamesSees[jamess.Id])
	assert.False(jamesSees[sarahs.Id])

	// an invisible transfer reads as missing, not forbidden
	resp, err := get(baseUrl+apiPrefix+fmt.Sprintf("transfers/%d", jamess.Id), tokens["sarah"])
	assert.Nil(err)
	assert.Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// admins see everything
	rootSees := visibleIds(assert, tokens["root"])
	assert.True(rootSees[sarahs.Id])
	assert.True(rootSees[jamess.Id])

	// the data team sees approved work, not transfers still under review;
	// the override test parked one in approved
	priyaSees := visibleIds(assert, tokens["priya"])
	assert.False(priyaSees[sarahs.Id])
	assert.False(priyaSees[jamess.Id])
	approvedSeen := false
	for id := range priyaSees {
		detail := fetchDetail(assert, tokens["root"], id)
		if detail.Status == "approved" {
			approvedSeen = true
		}
	}
	assert.True(approvedSeen)
}

// schema and precondition failures map to 422, 404, and friends
func TestTransferValidation(t *testing.T) {
	assert := assert.New(t)

	// a transfer needs a name
	payload, _ := json.Marshal(CreateTransferRequest{Name: "", Category: "vfx_assets"})
	resp, err := post(baseUrl+apiPrefix+"transfers", tokens["sarah"], bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	// and a known category
	payload, _ = json.Marshal(CreateTransferRequest{Name: "Misfiled", Category: "blooper_reel"})
	resp, err = post(baseUrl+apiPrefix+"transfers", tokens["sarah"], bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	// ill-formed and unknown ids
	resp, err = get(baseUrl+apiPrefix+"transfers/xyzzy", tokens["sarah"])
	assert.Nil(err)
	assert.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	resp, err = get(baseUrl+apiPrefix+"transfers/999999", tokens["sarah"])
	assert.Nil(err)
	assert.Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// an empty transfer cannot be submitted
	empty := createDelivery(assert, tokens["sarah"], "Nothing_Staged", "vfx_assets")
	resp, err = post(baseUrl+apiPrefix+fmt.Sprintf("transfers/%d/submit", empty.Id),
		tokens["sarah"], strings.NewReader("{}"))
	assert.Nil(err)
	assert.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	// a rejection has to give the artist something actionable
	short := createDelivery(assert, tokens["sarah"], "Scene_047_Brief", "vfx_assets")
	stageFiles(assert, tokens["sarah"], short.Id, map[string]string{"c.txt": "content"})
	submitDelivery(assert, tokens["sarah"], short.Id)
	payload, _ = json.Marshal(map[string]string{"reason": "too short"})
	resp, err = post(baseUrl+apiPrefix+fmt.Sprintf("approvals/%d/reject", short.Id),
		tokens["marcus"], bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	// approving out of order is a precondition failure
	fresh := createDelivery(assert, tokens["sarah"], "Scene_048_Unsubmitted", "vfx_assets")
	payload, _ = json.Marshal(map[string]string{"comment": "eager"})
	resp, err = post(baseUrl+apiPrefix+fmt.Sprintf("approvals/%d/approve", fresh.Id),
		tokens["marcus"], bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

// the per-transfer upload cap turns oversized payloads away
func TestUploadCapEnforced(t *testing.T) {
	assert := assert.New(t)

	transfer := createDelivery(assert, tokens["sarah"], "Scene_049_Huge", "renders")

	// ~20 KB against a ~10 KB cap
	resp, err := upload(baseUrl+apiPrefix+fmt.Sprintf("transfers/%d/upload", transfer.Id),
		tokens["sarah"], map[string]string{"huge.mov": strings.Repeat("x", 20000)})
	assert.Nil(err)
	assert.Equal(http.StatusRequestEntityTooLarge, resp.StatusCode)
	resp.Body.Close()

	// the rejected file was not kept
	detail := fetchDetail(assert, tokens["sarah"], transfer.Id)
	assert.Equal(int64(0), detail.TotalFiles)

	// a reasonable file still lands
	stageFiles(assert, tokens["sarah"], transfer.Id, map[string]string{"small.mov": "tiny render"})
}

// staged files can be removed while the transfer is editable, by its owner
func TestFileManagement(t *testing.T) {
	assert := assert.New(t)

	transfer := createDelivery(assert, tokens["sarah"], "Scene_050_Files", "vfx_assets")
	staged := stageFiles(assert, tokens["sarah"], transfer.Id, map[string]string{
		"keep.txt": "keep this one",
		"drop.txt": "delete this one",
	})
	var dropId int64
	for _, file := range staged {
		if file.Filename == "drop.txt" {
			dropId = file.Id
		}
	}

	// only the owner may delete
	resp, err := delete_(baseUrl+apiPrefix+
		fmt.Sprintf("transfers/%d/files/%d", transfer.Id, dropId), tokens["marcus"])
	assert.Nil(err)
	assert.Equal(http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp, err = delete_(baseUrl+apiPrefix+
		fmt.Sprintf("transfers/%d/files/%d", transfer.Id, dropId), tokens["sarah"])
	assert.Nil(err)
	assert.Equal(http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp, err = get(baseUrl+apiPrefix+fmt.Sprintf("transfers/%d/files", transfer.Id), tokens["sarah"])
	assert.Nil(err)
	var files []FileResponse
	assert.Nil(decode(resp, &files))
	assert.Equal(1, len(files))
	assert.Equal("keep.txt", files[0].Filename)

	detail := fetchDetail(assert, tokens["sarah"], transfer.Id)
	assert.Equal(int64(1), detail.TotalFiles)
	assert.Equal(int64(len("keep this one")), detail.TotalSizeBytes)

	// deleting it twice reads as missing
	resp, err = delete_(baseUrl+apiPrefix+
		fmt.Sprintf("transfers/%d/files/%d", transfer.Id, dropId), tokens["sarah"])
	assert.Nil(err)
	assert.Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

// transfer fields can be edited while the transfer is editable
func TestUpdateTransferFields(t *testing.T) {
	assert := assert.New(t)

	transfer := createDelivery(assert, tokens["sarah"], "Scene_051_Edit", "vfx_assets")

	priority := "high"
	notes := "rush delivery for friday screening"
	payload, _ := json.Marshal(UpdateTransferRequest{
		Notes:    &notes,
		Priority: &priority,
		Tags:     []string{"lighting", "urgent"},
	})
	resp, err := put(baseUrl+apiPrefix+fmt.Sprintf("transfers/%d", transfer.Id),
		tokens["sarah"], bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	var updated TransferResponse
	assert.Nil(decode(resp, &updated))
	assert.Equal("high", updated.Priority)
	assert.Equal(notes, updated.Notes)
	assert.Equal([]string{"lighting", "urgent"}, updated.Tags)

	// unknown priorities are refused
	bogus := "blazing"
	payload, _ = json.Marshal(UpdateTransferRequest{Priority: &bogus})
	resp, err = put(baseUrl+apiPrefix+fmt.Sprintf("transfers/%d", transfer.Id),
		tokens["sarah"], bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()
}

// owners can walk away from a transfer; others cannot
func TestCancelTransfer(t *testing.T) {
	assert := assert.New(t)

	transfer := createDelivery(assert, tokens["sarah"], "Scene_052_Abandoned", "vfx_assets")
	stageFiles(assert, tokens["sarah"], transfer.Id, map[string]string{"d.txt": "never mind"})

	resp, err := delete_(baseUrl+apiPrefix+fmt.Sprintf("transfers/%d", transfer.Id), tokens["james"])
	assert.Nil(err)
	assert.Equal(http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp, err = delete_(baseUrl+apiPrefix+fmt.Sprintf("transfers/%d", transfer.Id), tokens["sarah"])
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	var cancelled TransferResponse
	assert.Nil(decode(resp, &cancelled))
	assert.Equal("cancelled", cancelled.Status)

	// terminal states stay terminal
	resp, err = delete_(baseUrl+apiPrefix+fmt.Sprintf("transfers/%d", transfer.Id), tokens["sarah"])
	assert.Nil(err)
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

// account management is admin-only, and deactivation cuts off live tokens
func TestUserManagement(t *testing.T) {
	assert := assert.New(t)

	resp, err := get(baseUrl+apiPrefix+"users", tokens["sarah"])
	assert.Nil(err)
	assert.Equal(http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp, err = get(baseUrl+apiPrefix+"users", tokens["root"])
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	var accounts []UserResponse
	assert.Nil(decode(resp, &accounts))
	assert.True(len(accounts) >= len(crew))

	// create a fresh account
	payload, _ := json.Marshal(CreateUserRequest{
		Username:    "newbie",
		Email:       "new.artist@studio.local",
		DisplayName: "New Artist",
		Role:        "artist",
		Department:  "VFX",
		Password:    "changeme.1",
	})
	resp, err = post(baseUrl+apiPrefix+"users", tokens["root"], bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusCreated, resp.StatusCode)
	var newbie UserResponse
	assert.Nil(decode(resp, &newbie))
	assert.Equal("newbie", newbie.Username)

	// usernames are unique
	resp, err = post(baseUrl+apiPrefix+"users", tokens["root"], bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// roles come from the closed set
	payload, _ = json.Marshal(CreateUserRequest{Username: "weird", Role: "wizard"})
	resp, err = post(baseUrl+apiPrefix+"users", tokens["root"], bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	// the new account can log in
	payload, _ = json.Marshal(LoginRequest{Username: "newbie", Password: "changeme.1"})
	resp, err = post(baseUrl+apiPrefix+"auth/login", "", bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	var session TokenResponse
	assert.Nil(decode(resp, &session))

	// edit a field
	title := "Junior VFX Artist"
	payload, _ = json.Marshal(UpdateUserRequest{Title: &title})
	resp, err = put(baseUrl+apiPrefix+fmt.Sprintf("users/%d", newbie.Id),
		tokens["root"], bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	var edited UserResponse
	assert.Nil(decode(resp, &edited))
	assert.Equal(title, edited.Title)

	// admins cannot lock themselves out
	resp, err = delete_(baseUrl+apiPrefix+fmt.Sprintf("users/%d", userIds["root"]), tokens["root"])
	assert.Nil(err)
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// deactivate the new account; its session dies with it
	resp, err = delete_(baseUrl+apiPrefix+fmt.Sprintf("users/%d", newbie.Id), tokens["root"])
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = get(baseUrl+apiPrefix+"auth/me", session.AccessToken)
	assert.Nil(err)
	assert.Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	payload, _ = json.Marshal(LoginRequest{Username: "newbie", Password: "changeme.1"})
	resp, err = post(baseUrl+apiPrefix+"auth/login", "", bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

// browsing the production tracker and linking a transfer to its shot
func TestShotgridBrowseAndLink(t *testing.T) {
	assert := assert.New(t)

	resp, err := get(baseUrl+apiPrefix+"shotgrid/projects", tokens["sarah"])
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	var projects []shotgrid.Project
	assert.Nil(decode(resp, &projects))
	assert.Equal(3, len(projects))
	assert.Equal("Project Phoenix", projects[0].Name)

	resp, err = get(baseUrl+apiPrefix+"shotgrid/shots?project_id=101&sequence=SEQ010", tokens["sarah"])
	assert.Nil(err)
	var shots []shotgrid.Shot
	assert.Nil(decode(resp, &shots))
	assert.Equal(2, len(shots))

	resp, err = get(baseUrl+apiPrefix+"shotgrid/assets?project_id=101&asset_type=Character", tokens["sarah"])
	assert.Nil(err)
	var assets []shotgrid.Asset
	assert.Nil(decode(resp, &assets))
	assert.Equal(2, len(assets))

	resp, err = get(baseUrl+apiPrefix+"shotgrid/tasks?entity_type=Shot&entity_id=1001", tokens["sarah"])
	assert.Nil(err)
	var sgTasks []shotgrid.Task
	assert.Nil(decode(resp, &sgTasks))
	assert.Equal(3, len(sgTasks))

	resp, err = get(baseUrl+apiPrefix+"shotgrid/tasks?entity_type=Sequence&entity_id=1", tokens["sarah"])
	assert.Nil(err)
	assert.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	// link a fresh transfer to a shot; the names come back resolved
	transfer := createDelivery(assert, tokens["sarah"], "Scene_053_Linked", "vfx_assets")
	payload, _ := json.Marshal(LinkRequest{ProjectId: 101, EntityType: "Shot", EntityId: 1001})
	resp, err = post(baseUrl+apiPrefix+fmt.Sprintf("shotgrid/link/%d", transfer.Id),
		tokens["sarah"], bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	var linked TransferResponse
	assert.Nil(decode(resp, &linked))
	assert.Equal("Project Phoenix", linked.ShotgridProjectName)
	assert.Equal("SH010", linked.ShotgridEntityName)
	assert.Equal("Shot", linked.ShotgridEntityType)

	// only the owner may link
	resp, err = post(baseUrl+apiPrefix+fmt.Sprintf("shotgrid/link/%d", transfer.Id),
		tokens["marcus"], bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// unknown projects read as missing
	payload, _ = json.Marshal(LinkRequest{ProjectId: 999})
	resp, err = post(baseUrl+apiPrefix+fmt.Sprintf("shotgrid/link/%d", transfer.Id),
		tokens["sarah"], bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

// the notification inbox: unread filters, badge counts, read receipts
func TestNotificationWorkflow(t *testing.T) {
	assert := assert.New(t)

	// marcus has been reviewing all session, so he has mail
	resp, err := get(baseUrl+apiPrefix+"notifications?unread=true&limit=200", tokens["marcus"])
	assert.Nil(err)
	var unread []NotificationResponse
	assert.Nil(decode(resp, &unread))
	assert.True(len(unread) > 0)

	resp, err = get(baseUrl+apiPrefix+"notifications/unread-count", tokens["marcus"])
	assert.Nil(err)
	var badge struct {
		Count int `json:"count"`
	}
	assert.Nil(decode(resp, &badge))
	assert.Equal(len(unread), badge.Count)

	// a read receipt only works on your own mail
	resp, err = post(baseUrl+apiPrefix+fmt.Sprintf("notifications/%d/read", unread[0].Id),
		tokens["sarah"], strings.NewReader("{}"))
	assert.Nil(err)
	assert.Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp, err = post(baseUrl+apiPrefix+fmt.Sprintf("notifications/%d/read", unread[0].Id),
		tokens["marcus"], strings.NewReader("{}"))
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	var marked struct {
		Marked int `json:"marked"`
	}
	assert.Nil(decode(resp, &marked))
	assert.Equal(1, marked.Marked)

	// clear the rest
	resp, err = post(baseUrl+apiPrefix+"notifications/read-all", tokens["marcus"], strings.NewReader("{}"))
	assert.Nil(err)
	assert.Nil(decode(resp, &marked))
	assert.Equal(len(unread)-1, marked.Marked)

	resp, err = get(baseUrl+apiPrefix+"notifications/unread-count", tokens["marcus"])
	assert.Nil(err)
	assert.Nil(decode(resp, &badge))
	assert.Equal(0, badge.Count)
}

// the dashboard stats reflect what the caller can see
func TestTransferStats(t *testing.T) {
	assert := assert.New(t)

	resp, err := get(baseUrl+apiPrefix+"transfers/stats", tokens["root"])
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	var all TransferStatsResponse
	assert.Nil(decode(resp, &all))
	assert.True(all.Total >= 10)
	assert.True(all.Transferred >= 1)
	assert.True(all.Rejected >= 1)
	assert.True(all.Pending >= 2)

	// sarah's numbers only cover her own transfers
	resp, err = get(baseUrl+apiPrefix+"transfers/stats", tokens["sarah"])
	assert.Nil(err)
	var own TransferStatsResponse
	assert.Nil(decode(resp, &own))
	assert.True(own.Total < all.Total)
}

// the review queue and its badge agree with each other
func TestPendingCountMatchesQueue(t *testing.T) {
	assert := assert.New(t)

	resp, err := get(baseUrl+apiPrefix+"approvals/pending", tokens["marcus"])
	assert.Nil(err)
	var pending []TransferResponse
	assert.Nil(decode(resp, &pending))

	resp, err = get(baseUrl+apiPrefix+"approvals/pending/count", tokens["marcus"])
	assert.Nil(err)
	var badge struct {
		Count int `json:"count"`
	}
	assert.Nil(decode(resp, &badge))
	assert.Equal(len(pending), badge.Count)
}

// runs setup, runs all tests, and does breakdown
func TestMain(m *testing.M) {
	var status int
	setup()
	if TESTING_DIR != "" {
		status = m.Run()
	}
	breakdown()
	os.Exit(status)
}
