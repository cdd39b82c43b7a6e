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
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"zombiezen.com/go/sqlite"

	"github.com/databridge-io/databridge/auth"
	"github.com/databridge-io/databridge/catalog"
)

type TokenOutput struct {
	Body TokenResponse `doc:"session tokens for the authenticated account"`
}

// handler method for exchanging credentials for session tokens
func (service *bridgeService) login(ctx context.Context,
	input *struct {
		Body LoginRequest `doc:"the account's credentials"`
	}) (*TokenOutput, error) {

	user, err := service.Authenticator.Authenticate(ctx,
		input.Body.Username, input.Body.Password)
	if err != nil {
		// credential failures all read the same to the caller
		slog.Info(fmt.Sprintf("Login failed for %s: %s", input.Body.Username, err.Error()))
		return nil, huma.Error401Unauthorized("Invalid username or password")
	}

	accessToken, err := service.Issuer.Issue(user.ID, user.Username, user.Role, auth.AccessToken)
	if err != nil {
		return nil, err
	}
	refreshToken, err := service.Issuer.Issue(user.ID, user.Username, user.Role, auth.RefreshToken)
	if err != nil {
		return nil, err
	}

	err = service.Pipeline.Store().WithConn(ctx, func(conn *sqlite.Conn) error {
		return catalog.TouchLastLogin(conn, user.ID, time.Now().UTC())
	})
	if err != nil {
		slog.Warn(fmt.Sprintf("Recording login time for %s: %s", user.Username, err.Error()))
	}

	slog.Info(fmt.Sprintf("User %s logged in", user.Username))
	return &TokenOutput{
		Body: TokenResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			TokenType:    "bearer",
			User:         userView(user),
		},
	}, nil
}

// handler method for minting a new access token from a refresh token
func (service *bridgeService) refreshToken(ctx context.Context,
	input *struct {
		Body struct {
			RefreshToken string `json:"refresh_token" doc:"a refresh token from a previous login"`
		} `doc:"the refresh request"`
	}) (*TokenOutput, error) {

	claims, err := service.Issuer.Verify(input.Body.RefreshToken, auth.RefreshToken)
	if err != nil {
		return nil, huma.Error401Unauthorized("Invalid or expired refresh token")
	}

	var user catalog.User
	err = service.Pipeline.Store().WithConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		user, err = catalog.UserByID(conn, claims.UserID)
		return err
	})
	if err != nil {
		return nil, huma.Error401Unauthorized("The account behind this token no longer exists")
	}
	if !user.Active {
		return nil, huma.Error401Unauthorized(
			fmt.Sprintf("Account '%s' has been deactivated", user.Username))
	}

	// roles can change between sessions, so the new token carries the
	// current row's role, not the refresh token's
	accessToken, err := service.Issuer.Issue(user.ID, user.Username, user.Role, auth.AccessToken)
	if err != nil {
		return nil, err
	}
	return &TokenOutput{
		Body: TokenResponse{
			AccessToken: accessToken,
			TokenType:   "bearer",
			User:        userView(user),
		},
	}, nil
}

type UserOutput struct {
	Body UserResponse `doc:"one account"`
}

// handler method for introspecting the current session
func (service *bridgeService) getCurrentUser(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
	}) (*UserOutput, error) {

	user, err := service.authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: userView(user)}, nil
}
