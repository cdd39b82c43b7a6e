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

// These tests verify that we can properly configure the delivery pipeline
// with YAML input.
import (
	"fmt"
	"os"

	"github.com/stretchr/testify/assert"
	"testing"
)

// a valid service config entry
const VALID_SERVICE string = `
service:
  port: 8000
  max_connections: 100
  poll_interval: 5
`

// a valid paths config entry
const VALID_PATHS string = `
paths:
  staging_root: /mnt/staging
  production_root: /mnt/production
  upload_temp: /tmp/databridge_uploads
`

// a valid auth config entry
const VALID_AUTH string = `
auth:
  secret: ${DATABRIDGE_AUTH_SECRET}
  access_token_minutes: 480
  refresh_token_days: 7
`

// tests whether config.Init reports an error for blank input
func TestInitRejectsBlankInput(t *testing.T) {
	os.Setenv("DATABRIDGE_AUTH_SECRET", "")
	b := []byte("")
	err := Init(b)
	assert.NotNil(t, err, "Blank config didn't trigger an error.")
}

// tests whether config.Init reports an error for an invalid port
func TestInitRejectsBadPort(t *testing.T) {
	os.Setenv("DATABRIDGE_AUTH_SECRET", "sssht")
	yaml := "service:\n  port: -1\n\n" + VALID_PATHS + VALID_AUTH
	b := []byte(yaml)
	err := Init(b)
	assert.NotNil(t, err, "Config with bad port didn't trigger an error.")
	yaml = "service:\n  port: 1000000\n\n" + VALID_PATHS + VALID_AUTH
	b = []byte(yaml)
	err = Init(b)
	assert.NotNil(t, err, "Config with bad port didn't trigger an error.")
}

// tests whether config.Init reports an error for a missing auth secret
func TestInitRejectsMissingSecret(t *testing.T) {
	os.Setenv("DATABRIDGE_AUTH_SECRET", "")
	yaml := VALID_SERVICE + VALID_PATHS
	err := Init([]byte(yaml))
	assert.NotNil(t, err, "Config with no auth secret didn't trigger an error.")
}

// tests whether config.Init reports an error for an unknown transfer method
func TestInitRejectsBadTransferMethod(t *testing.T) {
	os.Setenv("DATABRIDGE_AUTH_SECRET", "sssht")
	yaml := VALID_SERVICE + VALID_PATHS + VALID_AUTH + `
transfer:
  method: carrier_pigeon
`
	err := Init([]byte(yaml))
	assert.NotNil(t, err, "Config with bad transfer method didn't trigger an error.")
}

// tests whether config.Init reports an error for a zero scan timeout
func TestInitRejectsBadScanTimeout(t *testing.T) {
	os.Setenv("DATABRIDGE_AUTH_SECRET", "sssht")
	yaml := VALID_SERVICE + VALID_PATHS + VALID_AUTH + `
scan:
  timeout_seconds: 0
`
	err := Init([]byte(yaml))
	assert.NotNil(t, err, "Config with zero scan timeout didn't trigger an error.")
}

// tests whether valid config input works as advertised, with defaults
// filled in and environment variables expanded
func TestValidInput(t *testing.T) {
	os.Setenv("DATABRIDGE_AUTH_SECRET", "super-secret-fernet-key")
	yaml := VALID_SERVICE + VALID_PATHS + VALID_AUTH
	err := Init([]byte(yaml))
	assert.Nil(t, err, fmt.Sprintf("Valid YAML input produced an error: %s", err))

	assert.Equal(t, 8000, Service.Port)
	assert.Equal(t, 100, Service.MaxConnections)
	assert.Equal(t, "DataBridge", Service.Name)
	assert.Equal(t, 24, Service.StaleAfterHours)
	assert.Equal(t, "databridge.db", Database.Path)
	assert.Equal(t, "/mnt/staging", Paths.StagingRoot)
	assert.Equal(t, "rsync", Transfer.Method)
	assert.Equal(t, 7200, Transfer.TimeoutSeconds)
	assert.Equal(t, 50.0, Transfer.MaxUploadSizeGB)
	assert.Equal(t, "super-secret-fernet-key", Auth.Secret)
	assert.Equal(t, 480, Auth.AccessTokenMinutes)
	assert.Equal(t, "smtp.yourstudio.com", Mail.Host)
	assert.Equal(t, 587, Mail.Port)
	assert.False(t, Scan.ClamavEnabled)
	assert.False(t, Shotgrid.Enabled)
}
