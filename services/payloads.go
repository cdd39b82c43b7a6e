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
	"time"

	"github.com/databridge-io/databridge/catalog"
	"github.com/databridge-io/databridge/journal"
	"github.com/databridge-io/databridge/transfers"
)

// this type encodes a JSON object for responding to root queries
type ServiceInfoResponse struct {
	Name          string `json:"name" example:"DataBridge" doc:"The name of the service API"`
	Version       string `json:"version" example:"1.0.0" doc:"The version string (major.minor.patch)"`
	Uptime        int    `json:"uptime" example:"345600" doc:"The time the service has been up (seconds)"`
	Documentation string `json:"documentation" example:"/docs" doc:"The OpenAPI documentation endpoint"`
}

// a response for a liveness probe (GET /health)
type HealthResponse struct {
	Status  string `json:"status" example:"ok" doc:"ok, or degraded when a background component is down"`
	Version string `json:"version" example:"1.0.0"`
	Uptime  int    `json:"uptime" example:"3600"`
}

// a request for a session (POST, fallback or directory credentials)
type LoginRequest struct {
	Username string `json:"username" example:"artist1" doc:"the account's login name"`
	Password string `json:"password" doc:"the account's password"`
}

// a response carrying freshly minted session tokens
type TokenResponse struct {
	AccessToken  string       `json:"access_token" doc:"a short-lived bearer token for API calls"`
	RefreshToken string       `json:"refresh_token,omitempty" doc:"a longer-lived token for minting new access tokens"`
	TokenType    string       `json:"token_type" example:"bearer"`
	User         UserResponse `json:"user"`
}

// a response describing one account
type UserResponse struct {
	Id          int64      `json:"id"`
	Username    string     `json:"username" example:"artist1"`
	Email       string     `json:"email" example:"sarah.chen@studio.local"`
	DisplayName string     `json:"display_name" example:"Sarah Chen"`
	Role        string     `json:"role" example:"artist"`
	Department  string     `json:"department" example:"VFX"`
	Title       string     `json:"title" example:"VFX Artist"`
	Active      bool       `json:"active"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// a request to create an account (POST, admin)
type CreateUserRequest struct {
	Username    string `json:"username" minLength:"1" doc:"the new account's login name"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role" example:"artist" doc:"one of the pipeline roles"`
	Department  string `json:"department,omitempty"`
	Title       string `json:"title,omitempty"`
	Password    string `json:"password,omitempty" doc:"initial password (fallback accounts only)"`
}

// a request to edit an account (PUT, admin); omitted fields keep their values
type UpdateUserRequest struct {
	Email       *string `json:"email,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
	Role        *string `json:"role,omitempty"`
	Department  *string `json:"department,omitempty"`
	Title       *string `json:"title,omitempty"`
	Active      *bool   `json:"active,omitempty"`
	Password    *string `json:"password,omitempty" doc:"replacement password (fallback accounts only)"`
}

// a request for a new transfer (POST)
type CreateTransferRequest struct {
	Name               string `json:"name" minLength:"1" example:"Scene_042" doc:"human name of the delivery"`
	Category           string `json:"category,omitempty" example:"vfx_assets"`
	Priority           string `json:"priority,omitempty" example:"normal"`
	Notes              string `json:"notes,omitempty"`
	ShotgridProjectId  *int64 `json:"shotgrid_project_id,omitempty"`
	ShotgridEntityType string `json:"shotgrid_entity_type,omitempty" example:"Shot"`
	ShotgridEntityId   *int64 `json:"shotgrid_entity_id,omitempty"`
}

// a request to edit a transfer (PUT); omitted fields keep their values, and
// an empty (non-null) tag list clears the tags
type UpdateTransferRequest struct {
	Name     *string  `json:"name,omitempty"`
	Notes    *string  `json:"notes,omitempty"`
	Priority *string  `json:"priority,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// a response describing one transfer
type TransferResponse struct {
	Id                  int64          `json:"id"`
	Reference           string         `json:"reference" example:"TRF-00001"`
	Name                string         `json:"name" example:"Scene_042"`
	Description         string         `json:"description,omitempty"`
	Category            string         `json:"category,omitempty" example:"vfx_assets"`
	Priority            string         `json:"priority" example:"normal"`
	Status              string         `json:"status" example:"uploaded"`
	ArtistId            int64          `json:"artist_id"`
	StagingPath         string         `json:"staging_path,omitempty"`
	ProductionPath      string         `json:"production_path,omitempty"`
	TotalFiles          int64          `json:"total_files"`
	TotalSizeBytes      int64          `json:"total_size_bytes"`
	SizeDisplay         string         `json:"size_display" example:"1.5 GB"`
	ScanResult          map[string]any `json:"scan_result,omitempty"`
	ScanPassed          *bool          `json:"scan_passed,omitempty"`
	ScanStartedAt       *time.Time     `json:"scan_started_at,omitempty"`
	ScanCompletedAt     *time.Time     `json:"scan_completed_at,omitempty"`
	TransferStartedAt   *time.Time     `json:"transfer_started_at,omitempty"`
	TransferCompletedAt *time.Time     `json:"transfer_completed_at,omitempty"`
	TransferVerified    *bool          `json:"transfer_verified,omitempty"`
	TransferMethod      string         `json:"transfer_method,omitempty" example:"rsync"`
	RejectionReason     string         `json:"rejection_reason,omitempty"`
	Notes               string         `json:"notes,omitempty"`
	Tags                []string       `json:"tags,omitempty"`
	ShotgridProjectId   *int64         `json:"shotgrid_project_id,omitempty"`
	ShotgridProjectName string         `json:"shotgrid_project_name,omitempty"`
	ShotgridEntityType  string         `json:"shotgrid_entity_type,omitempty"`
	ShotgridEntityId    *int64         `json:"shotgrid_entity_id,omitempty"`
	ShotgridEntityName  string         `json:"shotgrid_entity_name,omitempty"`
	ShotgridTaskId      *int64         `json:"shotgrid_task_id,omitempty"`
	ShotgridVersionId   *int64         `json:"shotgrid_version_id,omitempty"`
	SubmittedAt         *time.Time     `json:"submitted_at,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// a response pairing a transfer with its files and approval chain (GET)
type TransferDetailResponse struct {
	TransferResponse
	Files     []FileResponse       `json:"files"`
	Approvals []ChainEntryResponse `json:"approvals"`
}

// one page of a transfer listing (GET)
type TransferPageResponse struct {
	Transfers []TransferResponse `json:"transfers"`
	Total     int                `json:"total" doc:"total matches across all pages"`
	Page      int                `json:"page"`
	PerPage   int                `json:"per_page"`
}

// a response summarising visible transfers by pipeline phase (GET)
type TransferStatsResponse struct {
	Total       int `json:"total"`
	Pending     int `json:"pending" doc:"uploaded plus the three human review stages"`
	Approved    int `json:"approved"`
	Scanning    int `json:"scanning" doc:"scanning plus both scan outcomes"`
	Transferred int `json:"transferred"`
	Rejected    int `json:"rejected"`
}

// a response describing one staged file
type FileResponse struct {
	Id               int64     `json:"id"`
	TransferId       int64     `json:"transfer_id"`
	Filename         string    `json:"filename" example:"frame_0001.exr"`
	OriginalPath     string    `json:"original_path,omitempty"`
	SizeBytes        int64     `json:"size_bytes"`
	ChecksumSha256   string    `json:"checksum_sha256,omitempty"`
	ChecksumVerified *bool     `json:"checksum_verified,omitempty"`
	ScanStatus       string    `json:"scan_status" example:"pending"`
	ScanDetail       string    `json:"scan_detail,omitempty"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// one stage of a transfer's approval chain as shown to reviewers
type ChainEntryResponse struct {
	Role         string     `json:"role" example:"team_lead"`
	RoleLabel    string     `json:"role_label" example:"Team Lead Review"`
	Status       string     `json:"status" example:"pending"`
	ApproverName string     `json:"approver_name,omitempty"`
	Comment      string     `json:"comment,omitempty"`
	DecidedAt    *time.Time `json:"decided_at,omitempty"`
}

// one row of a transfer's audit trail
type HistoryResponse struct {
	Id          int64          `json:"id"`
	TransferId  int64          `json:"transfer_id"`
	UserId      *int64         `json:"user_id,omitempty" doc:"null for rows written by the workers"`
	Action      string         `json:"action" example:"submitted"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// one in-app notification
type NotificationResponse struct {
	Id         int64     `json:"id"`
	TransferId *int64    `json:"transfer_id,omitempty"`
	Type       string    `json:"type" example:"approval_required"`
	Subject    string    `json:"subject"`
	Message    string    `json:"message"`
	Read       bool      `json:"read"`
	EmailSent  bool      `json:"email_sent"`
	CreatedAt  time.Time `json:"created_at"`
}

// the live view of one transfer's scan, with per-file tallies (GET)
type ScanStatusResponse struct {
	TransferId      int64             `json:"transfer_id"`
	Reference       string            `json:"reference"`
	Status          string            `json:"status" example:"scanning"`
	ScanStartedAt   *time.Time        `json:"scan_started_at,omitempty"`
	ScanCompletedAt *time.Time        `json:"scan_completed_at,omitempty"`
	ScanPassed      *bool             `json:"scan_passed,omitempty"`
	ScanResult      map[string]any    `json:"scan_result,omitempty"`
	Files           FileTallyResponse `json:"files"`
}

// per-file scan and checksum counts for one transfer
type FileTallyResponse struct {
	Total            int `json:"total"`
	Clean            int `json:"clean"`
	Infected         int `json:"infected"`
	Pending          int `json:"pending"`
	Error            int `json:"error"`
	ChecksumVerified int `json:"checksum_verified"`
	ChecksumFailed   int `json:"checksum_failed"`
}

// a request to attach ShotGrid coordinates to a transfer (POST)
type LinkRequest struct {
	ProjectId  int64  `json:"project_id" doc:"ShotGrid project id"`
	EntityType string `json:"entity_type,omitempty" example:"Shot" doc:"Shot or Asset; empty for a bare project link"`
	EntityId   int64  `json:"entity_id,omitempty"`
	TaskId     *int64 `json:"task_id,omitempty"`
}

// one delivery journal record (GET)
type DeliveryRecordResponse struct {
	Id          string    `json:"id" doc:"the journal record's UUID"`
	Reference   string    `json:"reference" example:"TRF-00001"`
	Artist      string    `json:"artist" example:"artist1"`
	Status      string    `json:"status" example:"transferred"`
	PayloadSize int64     `json:"payload_size"`
	SizeDisplay string    `json:"size_display" example:"1.5 GB"`
	NumFiles    int       `json:"num_files"`
	StartTime   time.Time `json:"start_time"`
	StopTime    time.Time `json:"stop_time"`
	Manifest    []string  `json:"manifest,omitempty" doc:"resource names from the delivery manifest, when one was written"`
}

// DeliveryService defines the interface for the delivery pipeline service.
type DeliveryService interface {
	// Starts the service on the selected port, returning an error that indicates
	// success or failure.
	Start(port int) error
	// Gracefully shuts down the service without interrupting active connections.
	Shutdown(ctx context.Context) error
	// Closes down the service, freeing all resources.
	Close()
}

// maps an account row to its API representation (the password hash never
// leaves the service)
func userView(user catalog.User) UserResponse {
	return UserResponse{
		Id:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        user.Role.String(),
		Department:  user.Department,
		Title:       user.Title,
		Active:      user.Active,
		LastLogin:   user.LastLogin,
		CreatedAt:   user.CreatedAt,
	}
}

// maps a transfer row to its API representation
func transferView(transfer catalog.Transfer) TransferResponse {
	return TransferResponse{
		Id:                  transfer.ID,
		Reference:           transfer.Reference,
		Name:                transfer.Name,
		Description:         transfer.Description,
		Category:            transfer.Category,
		Priority:            string(transfer.Priority),
		Status:              transfer.Status.String(),
		ArtistId:            transfer.ArtistID,
		StagingPath:         transfer.StagingPath,
		ProductionPath:      transfer.ProductionPath,
		TotalFiles:          transfer.TotalFiles,
		TotalSizeBytes:      transfer.TotalSizeBytes,
		SizeDisplay:         transfer.SizeDisplay(),
		ScanResult:          transfer.ScanResult,
		ScanPassed:          transfer.ScanPassed,
		ScanStartedAt:       transfer.ScanStartedAt,
		ScanCompletedAt:     transfer.ScanCompletedAt,
		TransferStartedAt:   transfer.TransferStartedAt,
		TransferCompletedAt: transfer.TransferCompletedAt,
		TransferVerified:    transfer.TransferVerified,
		TransferMethod:      transfer.TransferMethod,
		RejectionReason:     transfer.RejectionReason,
		Notes:               transfer.Notes,
		Tags:                transfer.Tags,
		ShotgridProjectId:   transfer.ShotgridProjectID,
		ShotgridProjectName: transfer.ShotgridProjectName,
		ShotgridEntityType:  transfer.ShotgridEntityType,
		ShotgridEntityId:    transfer.ShotgridEntityID,
		ShotgridEntityName:  transfer.ShotgridEntityName,
		ShotgridTaskId:      transfer.ShotgridTaskID,
		ShotgridVersionId:   transfer.ShotgridVersionID,
		SubmittedAt:         transfer.SubmittedAt,
		CreatedAt:           transfer.CreatedAt,
		UpdatedAt:           transfer.UpdatedAt,
	}
}

func transferViews(listed []catalog.Transfer) []TransferResponse {
	views := make([]TransferResponse, 0, len(listed))
	for _, transfer := range listed {
		views = append(views, transferView(transfer))
	}
	return views
}

func fileView(file catalog.TransferFile) FileResponse {
	return FileResponse{
		Id:               file.ID,
		TransferId:       file.TransferID,
		Filename:         file.Filename,
		OriginalPath:     file.OriginalPath,
		SizeBytes:        file.SizeBytes,
		ChecksumSha256:   file.ChecksumSHA256,
		ChecksumVerified: file.ChecksumVerified,
		ScanStatus:       string(file.ScanStatus),
		ScanDetail:       file.ScanDetail,
		UploadedAt:       file.UploadedAt,
	}
}

func fileViews(files []catalog.TransferFile) []FileResponse {
	views := make([]FileResponse, 0, len(files))
	for _, file := range files {
		views = append(views, fileView(file))
	}
	return views
}

func chainViews(chain []transfers.ChainEntry) []ChainEntryResponse {
	views := make([]ChainEntryResponse, 0, len(chain))
	for _, entry := range chain {
		views = append(views, ChainEntryResponse{
			Role:         entry.Role.String(),
			RoleLabel:    entry.Role.Label(),
			Status:       string(entry.Status),
			ApproverName: entry.ApproverName,
			Comment:      entry.Comment,
			DecidedAt:    entry.DecidedAt,
		})
	}
	return views
}

func historyViews(entries []catalog.HistoryEntry) []HistoryResponse {
	views := make([]HistoryResponse, 0, len(entries))
	for _, entry := range entries {
		views = append(views, HistoryResponse{
			Id:          entry.ID,
			TransferId:  entry.TransferID,
			UserId:      entry.UserID,
			Action:      entry.Action,
			Description: entry.Description,
			Metadata:    entry.Metadata,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return views
}

func notificationViews(notifications []catalog.Notification) []NotificationResponse {
	views := make([]NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		views = append(views, NotificationResponse{
			Id:         n.ID,
			TransferId: n.TransferID,
			Type:       string(n.Type),
			Subject:    n.Subject,
			Message:    n.Message,
			Read:       n.Read,
			EmailSent:  n.EmailSent,
			CreatedAt:  n.CreatedAt,
		})
	}
	return views
}

func deliveryView(record journal.Record) DeliveryRecordResponse {
	view := DeliveryRecordResponse{
		Id:          record.Id.String(),
		Reference:   record.Reference,
		Artist:      record.Artist,
		Status:      record.Status.String(),
		PayloadSize: record.PayloadSize,
		SizeDisplay: record.SizeDisplay(),
		NumFiles:    record.NumFiles,
		StartTime:   record.StartTime,
		StopTime:    record.StopTime,
	}
	if record.Manifest != nil {
		view.Manifest = record.Manifest.ResourceNames()
	}
	return view
}
