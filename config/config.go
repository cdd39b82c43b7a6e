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

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// a type with service configuration parameters
type serviceConfig struct {
	// Name the service reports in its API documentation and health endpoint.
	Name string `yaml:"name"`
	// Port on which the service listens.
	Port int `yaml:"port"`
	// Maximum number of allowed incoming connections.
	MaxConnections int `yaml:"max_connections"`
	// Seconds between queue dispatcher polls.
	PollInterval int `yaml:"poll_interval"`
	// Directory holding service-owned data (delivery journal, manifests).
	DataDirectory string `yaml:"data_directory"`
	// Hours a transfer may sit in a worker-driven status before the
	// maintenance sweep flags it.
	StaleAfterHours int  `yaml:"stale_after_hours"`
	Debug           bool `yaml:"debug"`
}

// global config variables
var Service serviceConfig
var Database databaseConfig
var Paths pathsConfig
var Scan scanConfig
var Transfer transferConfig
var Auth authConfig
var Mail mailConfig
var Shotgrid shotgridConfig

// This struct performs the unmarshalling from the YAML config file and then
// copies its fields to the globals above.
type configFile struct {
	Service  serviceConfig  `yaml:"service"`
	Database databaseConfig `yaml:"database"`
	Paths    pathsConfig    `yaml:"paths"`
	Scan     scanConfig     `yaml:"scan"`
	Transfer transferConfig `yaml:"transfer"`
	Auth     authConfig     `yaml:"auth"`
	Mail     mailConfig     `yaml:"mail"`
	Shotgrid shotgridConfig `yaml:"shotgrid"`
}

// This helper reads configuration data, returning an error indicating
// success or failure. All environment variables of the form ${ENV_VAR} are
// expanded.
func readConfig(bytes []byte) error {
	// Before we do anything else, expand any provided environment variables.
	bytes = []byte(os.ExpandEnv(string(bytes)))

	var conf configFile
	conf.Service.Name = "DataBridge"
	conf.Service.Port = 8000
	conf.Service.MaxConnections = 100
	conf.Service.PollInterval = 5
	conf.Service.DataDirectory = "data"
	conf.Service.StaleAfterHours = 24
	conf.Database.Path = "databridge.db"
	conf.Database.PoolSize = 8
	conf.Paths.StagingRoot = "/mnt/staging"
	conf.Paths.ProductionRoot = "/mnt/production"
	conf.Paths.UploadTemp = "/tmp/databridge_uploads"
	conf.Scan.ClamscanPath = "clamscan"
	conf.Scan.TimeoutSeconds = 300
	conf.Transfer.Method = "rsync"
	conf.Transfer.RsyncPath = "rsync"
	conf.Transfer.TimeoutSeconds = 7200
	conf.Transfer.MaxUploadSizeGB = 50.0
	conf.Auth.AccessTokenMinutes = 480
	conf.Auth.RefreshTokenDays = 7
	conf.Mail.Enabled = true
	conf.Mail.Host = "smtp.yourstudio.com"
	conf.Mail.Port = 587
	conf.Mail.From = "databridge@yourstudio.com"
	conf.Mail.TimeoutSeconds = 30
	err := yaml.Unmarshal(bytes, &conf)
	if err != nil {
		log.Printf("Couldn't parse configuration data: %s\n", err)
		return err
	}

	// copy the config data into place
	Service = conf.Service
	Database = conf.Database
	Paths = conf.Paths
	Scan = conf.Scan
	Transfer = conf.Transfer
	Auth = conf.Auth
	Mail = conf.Mail
	Shotgrid = conf.Shotgrid

	return err
}

// This helper validates the given service parameters, returning an
// error indicating success or failure.
func validateServiceParameters(params serviceConfig) error {
	if params.Port < 0 || params.Port > 65535 {
		return fmt.Errorf("Invalid port: %d (must be 0-65535)", params.Port)
	}
	if params.MaxConnections <= 0 {
		return fmt.Errorf("Invalid max_connections: %d (must be positive)",
			params.MaxConnections)
	}
	if params.PollInterval <= 0 {
		return fmt.Errorf("Invalid poll_interval: %d (must be positive)",
			params.PollInterval)
	}
	return nil
}

// This helper validates the given config, returning an error that indicates
// success or failure.
func validateConfig() error {
	err := validateServiceParameters(Service)
	if err != nil {
		return err
	}
	if Database.Path == "" {
		return fmt.Errorf("No database path was provided!")
	}
	if Database.PoolSize <= 0 {
		return fmt.Errorf("Invalid database pool_size: %d (must be positive)",
			Database.PoolSize)
	}
	if Paths.StagingRoot == "" || Paths.ProductionRoot == "" {
		return fmt.Errorf("Staging and production roots must both be provided!")
	}
	if Scan.TimeoutSeconds <= 0 {
		return fmt.Errorf("Invalid scan timeout: %d (must be positive)",
			Scan.TimeoutSeconds)
	}
	if Transfer.Method != "rsync" && Transfer.Method != "stream" {
		return fmt.Errorf("Invalid transfer method: %s (must be rsync or stream)",
			Transfer.Method)
	}
	if Transfer.TimeoutSeconds <= 0 {
		return fmt.Errorf("Invalid transfer timeout: %d (must be positive)",
			Transfer.TimeoutSeconds)
	}
	if Transfer.MaxUploadSizeGB <= 0 {
		return fmt.Errorf("Invalid max upload size: %g GB (must be positive)",
			Transfer.MaxUploadSizeGB)
	}
	if Auth.Secret == "" {
		return fmt.Errorf("No auth secret was provided!")
	}
	return nil
}

// Initializes the delivery pipeline configuration using the given YAML byte
// data.
func Init(yamlData []byte) error {

	// Read the configuration from our YAML file.
	err := readConfig(yamlData)
	if err != nil {
		return err
	}

	// Validate the configuration.
	err = validateConfig()
	return err
}
