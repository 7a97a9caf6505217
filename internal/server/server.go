// Package server wires every subsystem together and runs the HTTP server:
// config, database, cache, queue workers, the scheduler with the order
// expiry sweep, the order-event feed, and the route table.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mazeltote/mazeltote/app/jobs"
	"github.com/mazeltote/mazeltote/app/models"
	"github.com/mazeltote/mazeltote/app/routes"
	"github.com/mazeltote/mazeltote/app/services"
	"github.com/mazeltote/mazeltote/config"
	"github.com/mazeltote/mazeltote/pkg/cache"
	"github.com/mazeltote/mazeltote/pkg/database"
	"github.com/mazeltote/mazeltote/pkg/event"
	"github.com/mazeltote/mazeltote/pkg/logger"
	"github.com/mazeltote/mazeltote/pkg/paypal"
	"github.com/mazeltote/mazeltote/pkg/queue"
	"github.com/mazeltote/mazeltote/pkg/router"
	"github.com/mazeltote/mazeltote/pkg/schedule"
	"github.com/mazeltote/mazeltote/pkg/ws"
)

const shutdownTimeout = 15 * time.Second

// Run boots the application and blocks until SIGINT/SIGTERM.
func Run() error {
	if err := config.Load(); err != nil {
		return fmt.Errorf("server: load config: %w", err)
	}

	if uri := config.LogMongoURI(); uri != "" {
		mh, err := logger.NewMongoHandler(uri, config.LogMongoDB(), "logs")
		if err != nil {
			logger.Warn("server: mongo log sink unavailable", "error", err)
		} else {
			logger.Attach(mh)
			defer mh.Close()
		}
	}

	if err := database.Connect(); err != nil {
		return err
	}
	if err := cache.Connect(); err != nil {
		// Redis is an accelerator here, not a dependency.
		logger.Warn("server: redis unavailable, cache and queue run in-process", "error", err)
	}

	gateway := paypal.New()
	payments := services.NewPaymentService(gateway)
	webhooks := services.NewWebhookService(payments)

	jobs.RegisterAll()
	queue.UseDB(database.DB)
	if cache.RDB != nil {
		queue.SetDriver(queue.NewRedisDriver(cache.RDB))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue.StartWorkers(ctx, config.Int("QUEUE_WORKERS", 4))

	services.NewSweeper().Register()
	schedule.Start(ctx)

	orderHub := ws.NewHub()
	go orderHub.Run()
	wireOrderFeed(orderHub)

	r := router.New()
	if err := routes.Register(r, routes.Deps{
		Payments: payments,
		Webhooks: webhooks,
		Verifier: gateway,
		OrderHub: orderHub,
	}); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + config.AppPort(),
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server: listening", "addr", srv.Addr, "env", config.AppEnv())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// wireOrderFeed forwards order lifecycle events onto the back-office
// WebSocket feed as small JSON frames.
func wireOrderFeed(hub *ws.Hub) {
	push := func(kind string) event.Handler {
		return func(payload interface{}) {
			order, ok := payload.(models.Order)
			if !ok {
				return
			}
			frame, err := json.Marshal(map[string]interface{}{
				"event":    kind,
				"order_id": order.ID,
				"status":   order.Status,
				"total":    order.TotalAmount,
			})
			if err != nil {
				return
			}
			hub.Broadcast <- frame
		}
	}

	event.Listen("order.paid", push("order.paid"))
	event.Listen("order.shipped", push("order.shipped"))
	event.Listen("order.delivered", push("order.delivered"))
	event.Listen("orders.swept", func(payload interface{}) {
		count, ok := payload.(int64)
		if !ok {
			return
		}
		frame, _ := json.Marshal(map[string]interface{}{
			"event": "orders.swept",
			"count": count,
		})
		hub.Broadcast <- frame
	})
}
