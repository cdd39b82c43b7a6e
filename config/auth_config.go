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

package config

type authConfig struct {
	// the fernet key used to sign session tokens
	// DO NOT STORE THIS IN A CONFIG FILE! Use an environment variable instead
	Secret string `yaml:"secret"`
	// lifetime of an access token, in minutes
	AccessTokenMinutes int `yaml:"access_token_minutes"`
	// lifetime of a refresh token, in days
	RefreshTokenDays int `yaml:"refresh_token_days"`
	// directory-server authentication; when disabled, logins check the
	// seeded fallback accounts
	LDAP ldapConfig `yaml:"ldap"`
}

type ldapConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	BaseDN  string `yaml:"base_dn"`
	BindDN  string `yaml:"bind_dn"`
	// DO NOT STORE THIS IN A CONFIG FILE! Use an environment variable instead
	BindPassword string `yaml:"bind_password"`
}
