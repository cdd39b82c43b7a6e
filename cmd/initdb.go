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

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/databridge-io/databridge/config"
	"github.com/databridge-io/databridge/journal"
	"github.com/databridge-io/databridge/store"
)

var initdbCommand = &cobra.Command{
	Use:   "initdb <config_file>",
	Short: "Create the pipeline database and delivery journal",
	Long:  "Creates the configured SQLite database (applying the schema) and the\ndelivery journal, along with the service's data directory. Running it\nagainst existing files is harmless.",
	Args:  cobra.ExactArgs(1),
	RunE:  initdbMain,
}

func initdbMain(_ *cobra.Command, args []string) error {
	if err := loadConfig(args[0]); err != nil {
		return err
	}
	configureLogging()

	if err := os.MkdirAll(config.Service.DataDirectory, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	db, err := store.Open(config.Database.Path, config.Database.PoolSize)
	if err != nil {
		return err
	}
	db.Close()
	fmt.Printf("Pipeline database ready at %s\n", config.Database.Path)

	journalPath := filepath.Join(config.Service.DataDirectory, "deliveries.db")
	deliveries, err := journal.Open(journalPath)
	if err != nil {
		return err
	}
	deliveries.Close()
	fmt.Printf("Delivery journal ready at %s\n", journalPath)
	return nil
}
