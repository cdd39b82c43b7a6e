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

// Package cmd implements the databridge command line: serving the delivery
// API, initializing the pipeline database, and seeding development accounts.
// Every command takes a YAML configuration file as its argument; see
// README.md for the file's layout.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/databridge-io/databridge/config"
)

var rootCommand = &cobra.Command{
	Use:           "databridge",
	Short:         "DataBridge studio data delivery pipeline",
	Long:          "DataBridge moves artist deliveries from upload through review, scanning,\nand verified transfer to production storage.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the databridge command line.
func Execute() error {
	return rootCommand.Execute()
}

func init() {
	rootCommand.AddCommand(serveCommand, initdbCommand, seedCommand)
}

// loadConfig initializes the configuration from the named YAML file. A .env
// file in the working directory, when present, is loaded first so ${VAR}
// references in the configuration can expand without exported variables.
func loadConfig(path string) error {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return fmt.Errorf("loading .env: %w", err)
		}
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading configuration from %s: %w", path, err)
	}
	if err := config.Init(contents); err != nil {
		return fmt.Errorf("initializing configuration: %w", err)
	}
	return nil
}

// configureLogging installs the process-wide structured logger, honoring the
// configuration's debug flag.
func configureLogging() {
	level := slog.LevelInfo
	if config.Service.Debug {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
