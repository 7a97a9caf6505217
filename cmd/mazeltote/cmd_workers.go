package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mazeltote/mazeltote/app/jobs"
	"github.com/mazeltote/mazeltote/app/services"
	"github.com/mazeltote/mazeltote/pkg/cache"
	"github.com/mazeltote/mazeltote/pkg/database"
	"github.com/mazeltote/mazeltote/pkg/queue"
)

var queueWorkersFlag int

// mazeltote queue:work — process mail jobs outside the web process.
var queueWorkCmd = &cobra.Command{
	Use:   "queue:work",
	Short: "Start the queue worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		queue.UseDB(database.DB)
		if err := cache.Connect(); err != nil {
			fmt.Println("Redis unavailable — using the in-memory queue driver.")
		} else {
			queue.SetDriver(queue.NewRedisDriver(cache.RDB))
		}

		jobs.RegisterAll()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		workers := queueWorkersFlag
		if workers < 1 {
			workers = 5
		}

		fmt.Printf("Queue worker started (%d workers). Press Ctrl+C to stop.\n", workers)
		queue.StartWorkers(ctx, workers)

		<-ctx.Done()
		fmt.Println("\nQueue worker stopped.")
		return nil
	},
}

// mazeltote sweep:run — cancel expired orders once and exit.
var sweepRunCmd = &cobra.Command{
	Use:   "sweep:run",
	Short: "Cancel expired awaiting-payment orders once",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		n, err := services.NewSweeper().Sweep()
		if err != nil {
			return err
		}
		fmt.Printf("Cancelled %d expired order(s).\n", n)
		return nil
	},
}

func init() {
	queueWorkCmd.Flags().IntVarP(&queueWorkersFlag, "workers", "w", 5, "Number of concurrent workers")
}
