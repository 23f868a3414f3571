// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/unclebandit/practicehub-backend/internal/auth"
	"github.com/unclebandit/practicehub-backend/internal/config"
	"github.com/unclebandit/practicehub-backend/internal/controller"
	"github.com/unclebandit/practicehub-backend/internal/db"
	"github.com/unclebandit/practicehub-backend/internal/handler"
	"github.com/unclebandit/practicehub-backend/internal/logger"
	"github.com/unclebandit/practicehub-backend/internal/repository"
	"github.com/unclebandit/practicehub-backend/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "practicehub-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Console:     cfg.App.IsDev(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "server exited", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	conn, err := db.Open(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer conn.Close()

	if cfg.DB.AutoMigrate {
		if err := db.Migrate(ctx, conn); err != nil {
			return err
		}
		logg.Info(ctx, "migrations applied")
	}

	store := repository.NewStore(conn)
	tokens := auth.NewTokenManager(cfg.JWT)

	campaigns := &service.CampaignService{Store: store, Repos: store.Repositories, Logger: logg}
	delivery := &service.DeliveryService{Store: store, Repos: store.Repositories, Logger: logg}
	identity := &service.IdentityService{Store: store, Repos: store.Repositories, Tokens: tokens, Logger: logg}
	practices := &service.PracticeService{Practices: store.Practices, Logger: logg}
	inbox := &service.InboxService{Messages: store.Messages}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router := handler.NewRouter(handler.RouterParams{
		Logger:       logg,
		Metrics:      handler.NewHTTPMetrics(reg),
		Gatherer:     reg,
		Authenticate: handler.Authenticate(tokens, identity, logg),
		Controllers: []handler.Mounter{
			&controller.AuthController{Identity: identity, Logger: logg},
			&controller.PracticeController{Practices: practices, Logger: logg},
			&controller.CampaignController{Campaigns: campaigns, Delivery: delivery, Logger: logg},
			&controller.MessageController{Inbox: inbox, Logger: logg},
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "addr", srv.Addr), "http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info(context.Background(), "shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
