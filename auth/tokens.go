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

package auth

import (
	"encoding/json"
	"time"

	"github.com/fernet/fernet-go"

	"github.com/databridge-io/databridge/config"
	"github.com/databridge-io/databridge/policy"
)

// TokenKind separates short-lived access tokens from the refresh tokens
// used to mint new ones.
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// Claims is what a session token carries. The fernet envelope supplies the
// timestamp, so expiry never appears here.
type Claims struct {
	UserID   int64       `json:"user_id"`
	Username string      `json:"username"`
	Role     policy.Role `json:"role"`
	Kind     TokenKind   `json:"kind"`
}

// TokenIssuer mints and verifies fernet session tokens. Verification
// enforces the TTL for the token's kind, so an access token cannot be
// stretched into a refresh token's lifetime.
type TokenIssuer struct {
	keys       []*fernet.Key
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenIssuer builds an issuer from the auth configuration.
func NewTokenIssuer() (*TokenIssuer, error) {
	key, err := fernet.DecodeKey(config.Auth.Secret)
	if err != nil {
		return nil, &InvalidKeyError{Err: err}
	}
	return &TokenIssuer{
		keys:       []*fernet.Key{key},
		accessTTL:  time.Duration(config.Auth.AccessTokenMinutes) * time.Minute,
		refreshTTL: time.Duration(config.Auth.RefreshTokenDays) * 24 * time.Hour,
	}, nil
}

// Issue mints a token of the given kind for a user.
func (issuer *TokenIssuer) Issue(userID int64, username string, role policy.Role,
	kind TokenKind) (string, error) {

	payload, err := json.Marshal(Claims{
		UserID:   userID,
		Username: username,
		Role:     role,
		Kind:     kind,
	})
	if err != nil {
		return "", err
	}
	token, err := fernet.EncryptAndSign(payload, issuer.keys[0])
	if err != nil {
		return "", err
	}
	return string(token), nil
}

// Verify checks a token's signature, age, and kind, returning its claims.
func (issuer *TokenIssuer) Verify(token string, kind TokenKind) (Claims, error) {
	ttl := issuer.accessTTL
	if kind == RefreshToken {
		ttl = issuer.refreshTTL
	}
	payload := fernet.VerifyAndDecrypt([]byte(token), ttl, issuer.keys)
	if payload == nil {
		return Claims{}, &InvalidTokenError{}
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Claims{}, &InvalidTokenError{}
	}
	if claims.Kind != kind {
		return Claims{}, &InvalidTokenError{}
	}
	if !claims.Role.Valid() {
		return Claims{}, &InvalidTokenError{}
	}
	return claims, nil
}
