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
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"zombiezen.com/go/sqlite"

	"github.com/databridge-io/databridge/auth"
	"github.com/databridge-io/databridge/catalog"
	"github.com/databridge-io/databridge/policy"
)

type UsersOutput struct {
	Body []UserResponse `doc:"all accounts, active and deactivated"`
}

// handler method for listing accounts (admin)
func (service *bridgeService) getUsers(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
	}) (*UsersOutput, error) {

	_, err := service.authorizeAdmin(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	var users []catalog.User
	err = retryBusy(func() error {
		return service.Pipeline.Store().WithConn(ctx, func(conn *sqlite.Conn) error {
			var err error
			users, err = catalog.Users(conn)
			return err
		})
	})
	if err != nil {
		return nil, apiError(err)
	}

	views := make([]UserResponse, 0, len(users))
	for _, user := range users {
		views = append(views, userView(user))
	}
	return &UsersOutput{Body: views}, nil
}

type CreatedUserOutput struct {
	Body   UserResponse `doc:"the new account"`
	Status int
}

// handler method for creating an account (admin)
func (service *bridgeService) createUser(ctx context.Context,
	input *struct {
		Authorization string            `header:"authorization" doc:"Authorization header with bearer access token"`
		Body          CreateUserRequest `doc:"the new account's fields"`
	}) (*CreatedUserOutput, error) {

	actor, err := service.authorizeAdmin(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	role, err := policy.ParseRole(input.Body.Role)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}

	user := catalog.User{
		Username:    input.Body.Username,
		Email:       input.Body.Email,
		DisplayName: input.Body.DisplayName,
		Role:        role,
		Department:  input.Body.Department,
		Title:       input.Body.Title,
		Active:      true,
	}
	if input.Body.Password != "" {
		hash, err := auth.HashPassword(input.Body.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	err = retryBusy(func() error {
		return service.Pipeline.Store().WithConn(ctx, func(conn *sqlite.Conn) error {
			return catalog.InsertUser(conn, &user)
		})
	})
	if err != nil {
		return nil, apiError(err)
	}

	slog.Info(fmt.Sprintf("User %s (%s) created by %s", user.Username, role, actor.Username))
	return &CreatedUserOutput{Body: userView(user), Status: http.StatusCreated}, nil
}

// handler method for reading one account (admin)
func (service *bridgeService) getUser(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
		Id            int64  `path:"id" example:"7" doc:"the account's id"`
	}) (*UserOutput, error) {

	_, err := service.authorizeAdmin(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	var user catalog.User
	err = retryBusy(func() error {
		return service.Pipeline.Store().WithConn(ctx, func(conn *sqlite.Conn) error {
			var err error
			user, err = catalog.UserByID(conn, input.Id)
			return err
		})
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &UserOutput{Body: userView(user)}, nil
}

// handler method for editing an account (admin)
func (service *bridgeService) updateUser(ctx context.Context,
	input *struct {
		Authorization string            `header:"authorization" doc:"Authorization header with bearer access token"`
		Id            int64             `path:"id" example:"7" doc:"the account's id"`
		Body          UpdateUserRequest `doc:"the fields to change"`
	}) (*UserOutput, error) {

	_, err := service.authorizeAdmin(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	var role policy.Role
	if input.Body.Role != nil {
		role, err = policy.ParseRole(*input.Body.Role)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
	}

	var user catalog.User
	err = retryBusy(func() error {
		return service.Pipeline.Store().WithTx(ctx, func(conn *sqlite.Conn) error {
			var err error
			user, err = catalog.UserByID(conn, input.Id)
			if err != nil {
				return err
			}
			if input.Body.Email != nil {
				user.Email = *input.Body.Email
			}
			if input.Body.DisplayName != nil {
				user.DisplayName = *input.Body.DisplayName
			}
			if input.Body.Role != nil {
				user.Role = role
			}
			if input.Body.Department != nil {
				user.Department = *input.Body.Department
			}
			if input.Body.Title != nil {
				user.Title = *input.Body.Title
			}
			if input.Body.Active != nil {
				user.Active = *input.Body.Active
			}
			if input.Body.Password != nil {
				hash, err := auth.HashPassword(*input.Body.Password)
				if err != nil {
					return err
				}
				user.PasswordHash = hash
			}
			return catalog.UpdateUser(conn, &user)
		})
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &UserOutput{Body: userView(user)}, nil
}

// handler method for deactivating an account (admin; accounts are never
// deleted so their history stays attributable)
func (service *bridgeService) deactivateUser(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
		Id            int64  `path:"id" example:"7" doc:"the account's id"`
	}) (*UserOutput, error) {

	actor, err := service.authorizeAdmin(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}
	if actor.ID == input.Id {
		return nil, huma.Error400BadRequest("You cannot deactivate your own account")
	}

	var user catalog.User
	err = retryBusy(func() error {
		return service.Pipeline.Store().WithTx(ctx, func(conn *sqlite.Conn) error {
			var err error
			user, err = catalog.UserByID(conn, input.Id)
			if err != nil {
				return err
			}
			user.Active = false
			return catalog.UpdateUser(conn, &user)
		})
	})
	if err != nil {
		return nil, apiError(err)
	}

	slog.Info(fmt.Sprintf("User %s deactivated by %s", user.Username, actor.Username))
	return &UserOutput{Body: userView(user)}, nil
}
