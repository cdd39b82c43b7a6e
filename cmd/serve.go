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
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/databridge-io/databridge/config"
	"github.com/databridge-io/databridge/journal"
	"github.com/databridge-io/databridge/notify"
	"github.com/databridge-io/databridge/services"
	"github.com/databridge-io/databridge/shotgrid"
	"github.com/databridge-io/databridge/store"
	"github.com/databridge-io/databridge/tasks"
	"github.com/databridge-io/databridge/transfers"
	"github.com/databridge-io/databridge/workers"
)

var serveCommand = &cobra.Command{
	Use:   "serve <config_file>",
	Short: "Run the delivery service",
	Args:  cobra.ExactArgs(1),
	RunE:  serveMain,
}

// serveMain wires the pipeline together and runs the service until a
// termination signal arrives.
func serveMain(_ *cobra.Command, args []string) error {
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
	defer db.Close()

	deliveries, err := journal.Open(filepath.Join(config.Service.DataDirectory, "deliveries.db"))
	if err != nil {
		return err
	}
	defer deliveries.Close()

	queues := tasks.New(db)
	pipeline := transfers.NewPipeline(db, queues)
	studio := shotgrid.NewClient()
	workers.New(pipeline, studio, deliveries).Register(queues)
	queues.Register(tasks.QueueNotifications, notify.EmailHandler(db, notify.NewMailer()), true)

	service, err := services.New(pipeline, queues, studio, deliveries)
	if err != nil {
		return err
	}

	// Start the service in a goroutine so it doesn't block.
	go func() {
		if err := service.Start(config.Service.Port); err != nil {
			log.Println(err.Error())
		}
	}()

	// Intercept the SIGINT, SIGHUP, SIGTERM, and SIGQUIT signals, shutting down
	// the service as gracefully as possible if they are encountered.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan,
		syscall.SIGINT,
		syscall.SIGHUP,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	// Block till we receive one of the above signals.
	<-sigChan

	// Create a deadline to wait for.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Wait for connections to close until the deadline elapses.
	service.Shutdown(ctx)
	log.Println("Shutting down")
	return nil
}
