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

// Package services exposes the delivery pipeline over HTTP. One service
// instance owns the router, the queue dispatchers, and the maintenance
// sweep; everything else (store, pipeline, journal, ShotGrid client) is
// constructed at startup and passed in.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humamux"
	"github.com/gorilla/mux"
	"golang.org/x/net/netutil"
	"zombiezen.com/go/sqlite"

	"github.com/databridge-io/databridge/auth"
	"github.com/databridge-io/databridge/catalog"
	"github.com/databridge-io/databridge/config"
	"github.com/databridge-io/databridge/journal"
	"github.com/databridge-io/databridge/policy"
	"github.com/databridge-io/databridge/shotgrid"
	"github.com/databridge-io/databridge/tasks"
	"github.com/databridge-io/databridge/transfers"
)

// Version numbers
var majorVersion = 1
var minorVersion = 0
var patchVersion = 0

// Version string
var version = fmt.Sprintf("%d.%d.%d", majorVersion, minorVersion, patchVersion)

// how long the server waits for request headers
const readHeaderTimeout = 30 * time.Second

// This type implements the DeliveryService interface, carrying artist
// uploads through review, scanning, and the copy to production storage.
type bridgeService struct {
	// name of the service
	Name string
	// service version identifier
	Version string
	// time which the service was started
	StartTime time.Time
	// port on which the service currently runs
	Port int
	// router for REST endpoints
	Router *mux.Router
	// API wrapper
	API huma.API
	// HTTP server.
	Server *http.Server

	// transfer pipeline and its queue dispatchers
	Pipeline *transfers.Pipeline
	Queues   *tasks.Queues
	// production tracker client (mock when ShotGrid is disabled)
	Studio shotgrid.Client
	// delivery journal consulted by the reports endpoints
	Deliveries *journal.Journal
	// session token issuer and credential checker
	Issuer        *auth.TokenIssuer
	Authenticator auth.Authenticator

	// closed to halt the stale-transfer sweep
	sweepStop chan struct{}
}

// authorize verifies the bearer access token in the given Authorization
// header and loads the account it names, returning an error describing any
// issue encountered. Deactivated accounts are turned away even when their
// token is still fresh.
func (service *bridgeService) authorize(ctx context.Context,
	authorizationHeader string) (catalog.User, error) {

	if !strings.HasPrefix(authorizationHeader, "Bearer ") {
		return catalog.User{}, huma.Error401Unauthorized("No valid access token was provided")
	}
	token := strings.TrimPrefix(authorizationHeader, "Bearer ")
	claims, err := service.Issuer.Verify(token, auth.AccessToken)
	if err != nil {
		return catalog.User{}, huma.Error401Unauthorized("Invalid or expired access token")
	}

	var user catalog.User
	err = service.Pipeline.Store().WithConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		user, err = catalog.UserByID(conn, claims.UserID)
		return err
	})
	if err != nil {
		return catalog.User{}, huma.Error401Unauthorized("The account behind this token no longer exists")
	}
	if !user.Active {
		return catalog.User{}, huma.Error401Unauthorized(
			fmt.Sprintf("Account '%s' has been deactivated", user.Username))
	}
	return user, nil
}

// authorizeAdmin is authorize plus the admin role requirement carried by
// the user management endpoints.
func (service *bridgeService) authorizeAdmin(ctx context.Context,
	authorizationHeader string) (catalog.User, error) {

	user, err := service.authorize(ctx, authorizationHeader)
	if err != nil {
		return catalog.User{}, err
	}
	if user.Role != policy.RoleAdmin {
		return catalog.User{}, huma.Error403Forbidden("This operation requires the admin role")
	}
	return user, nil
}

type ServiceInfoOutput struct {
	Body ServiceInfoResponse `doc:"information about the service itself"`
}

// handler method for root (no authorization needed for this one)
func (service *bridgeService) getRoot(ctx context.Context,
	input *struct{}) (*ServiceInfoOutput, error) {

	slog.Info("Querying root endpoint...")
	return &ServiceInfoOutput{
		Body: ServiceInfoResponse{
			Name:          service.Name,
			Version:       service.Version,
			Uptime:        int(service.uptime()),
			Documentation: "/docs",
		},
	}, nil
}

type HealthOutput struct {
	Body HealthResponse `doc:"a liveness report for the service"`
}

// handler method for the liveness probe (also unauthenticated)
func (service *bridgeService) getHealth(ctx context.Context,
	input *struct{}) (*HealthOutput, error) {

	status := "ok"
	if !service.Queues.Running() || !service.Deliveries.IsOpen() {
		status = "degraded"
	}
	return &HealthOutput{
		Body: HealthResponse{
			Status:  status,
			Version: service.Version,
			Uptime:  int(service.uptime()),
		},
	}, nil
}

// returns the uptime for the service in seconds
func (service *bridgeService) uptime() float64 {
	return time.Since(service.StartTime).Seconds()
}

// constructs the delivery service over dependencies built at startup
func New(pipeline *transfers.Pipeline, queues *tasks.Queues, studio shotgrid.Client,
	deliveries *journal.Journal) (DeliveryService, error) {

	// validate what the endpoints below cannot run without
	if pipeline == nil || queues == nil {
		return nil, fmt.Errorf("No pipeline was supplied to the service.")
	}
	if deliveries == nil {
		return nil, fmt.Errorf("No delivery journal was supplied to the service.")
	}
	if config.Paths.StagingRoot == "" || config.Paths.ProductionRoot == "" {
		return nil, fmt.Errorf("No staging/production roots were configured.")
	}
	issuer, err := auth.NewTokenIssuer()
	if err != nil {
		return nil, err
	}

	service := new(bridgeService)
	service.Name = config.Service.Name
	service.Version = version
	service.Port = -1
	service.Pipeline = pipeline
	service.Queues = queues
	service.Studio = studio
	service.Deliveries = deliveries
	service.Issuer = issuer
	service.Authenticator = auth.NewAuthenticator(pipeline.Store())
	service.sweepStop = make(chan struct{})

	// set up routing
	service.Router = mux.NewRouter()
	api := humamux.New(service.Router, huma.DefaultConfig(service.Name, service.Version))
	service.API = api
	huma.Get(api, "/", service.getRoot)
	huma.Get(api, "/health", service.getHealth)

	// API v1
	huma.Post(api, "/api/v1/auth/login", service.login)
	huma.Post(api, "/api/v1/auth/refresh", service.refreshToken)
	huma.Get(api, "/api/v1/auth/me", service.getCurrentUser)

	huma.Get(api, "/api/v1/users", service.getUsers)
	huma.Post(api, "/api/v1/users", service.createUser)
	huma.Get(api, "/api/v1/users/{id}", service.getUser)
	huma.Put(api, "/api/v1/users/{id}", service.updateUser)
	huma.Delete(api, "/api/v1/users/{id}", service.deactivateUser)

	huma.Post(api, "/api/v1/transfers", service.createTransfer)
	huma.Get(api, "/api/v1/transfers", service.getTransfers)
	huma.Get(api, "/api/v1/transfers/stats", service.getTransferStats)
	huma.Get(api, "/api/v1/transfers/{id}", service.getTransfer)
	huma.Put(api, "/api/v1/transfers/{id}", service.updateTransfer)
	huma.Delete(api, "/api/v1/transfers/{id}", service.cancelTransfer)
	huma.Post(api, "/api/v1/transfers/{id}/upload", service.uploadFiles)
	huma.Get(api, "/api/v1/transfers/{id}/files", service.getTransferFiles)
	huma.Delete(api, "/api/v1/transfers/{id}/files/{fileId}", service.deleteTransferFile)
	huma.Post(api, "/api/v1/transfers/{id}/submit", service.submitTransfer)
	huma.Get(api, "/api/v1/transfers/{id}/history", service.getTransferHistory)

	huma.Post(api, "/api/v1/approvals/{id}/approve", service.approveTransfer)
	huma.Post(api, "/api/v1/approvals/{id}/reject", service.rejectTransfer)
	huma.Post(api, "/api/v1/approvals/{id}/override", service.overrideTransfer)
	huma.Get(api, "/api/v1/approvals/pending", service.getPendingApprovals)
	huma.Get(api, "/api/v1/approvals/pending/count", service.getPendingApprovalCount)
	huma.Get(api, "/api/v1/approvals/{id}/chain", service.getApprovalChain)

	huma.Post(api, "/api/v1/scanning/{id}/start", service.startScan)
	huma.Post(api, "/api/v1/scanning/{id}/complete", service.completeScan)
	huma.Get(api, "/api/v1/scanning/{id}/status", service.getScanStatus)

	huma.Post(api, "/api/v1/transfer-ops/{id}/execute", service.executeTransfer)
	huma.Post(api, "/api/v1/transfer-ops/{id}/complete", service.completeTransfer)

	huma.Get(api, "/api/v1/notifications", service.getNotifications)
	huma.Get(api, "/api/v1/notifications/unread-count", service.getUnreadCount)
	huma.Post(api, "/api/v1/notifications/read-all", service.markAllNotificationsRead)
	huma.Post(api, "/api/v1/notifications/{id}/read", service.markNotificationRead)

	huma.Get(api, "/api/v1/shotgrid/projects", service.getShotgridProjects)
	huma.Get(api, "/api/v1/shotgrid/shots", service.getShotgridShots)
	huma.Get(api, "/api/v1/shotgrid/assets", service.getShotgridAssets)
	huma.Get(api, "/api/v1/shotgrid/tasks", service.getShotgridTasks)
	huma.Post(api, "/api/v1/shotgrid/link/{transferId}", service.linkShotgrid)

	huma.Get(api, "/api/v1/reports/deliveries", service.getDeliveryReport)

	return service, nil
}

// starts the delivery service
func (service *bridgeService) Start(port int) error {
	slog.Info(fmt.Sprintf("Starting %s service on port %d...", service.Name, port))
	slog.Info(fmt.Sprintf("(Accepting up to %d connections)", config.Service.MaxConnections))

	service.StartTime = time.Now()

	// create a listener that limits the number of incoming connections
	service.Port = port
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return err
	}
	defer listener.Close()
	listener = netutil.LimitListener(listener, config.Service.MaxConnections)

	// start the queue dispatchers and the maintenance sweep
	err = service.Queues.Start()
	if err != nil {
		return err
	}
	go service.sweepStaleTransfers()

	// start the server
	service.Server = &http.Server{
		Handler:           service.Router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	err = service.Server.Serve(listener)

	// we don't report the server closing as an error
	if err != http.ErrServerClosed {
		return err
	}
	return nil
}

// gracefully shuts down the service without interrupting active connections
func (service *bridgeService) Shutdown(ctx context.Context) error {
	service.stopBackground()
	if service.Server != nil {
		return service.Server.Shutdown(ctx)
	}
	return nil
}

// closes down the service abruptly, freeing all resources
func (service *bridgeService) Close() {
	service.stopBackground()
	if service.Server != nil {
		service.Server.Close()
	}
}

// halts the sweep and the queue dispatchers (idempotently)
func (service *bridgeService) stopBackground() {
	select {
	case <-service.sweepStop:
	default:
		close(service.sweepStop)
	}
	if service.Queues.Running() {
		if err := service.Queues.Stop(); err != nil {
			slog.Error(fmt.Sprintf("Stopping queue dispatchers: %s", err.Error()))
		}
	}
}
