package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Dmitry-Gorlach/baraka/internal/rpc"
	"github.com/Dmitry-Gorlach/baraka/internal/usecase/engine"
	"github.com/Dmitry-Gorlach/baraka/pkg/config"
	"github.com/Dmitry-Gorlach/baraka/pkg/logger"
)

var cfg *config.Config
var log *logger.Logger

func init() {
	cfg = &config.Config{}
	config.MustLoad(cfg)

	l, err := logger.NewLogger(logger.WithLoggingLevel(logger.Level(cfg.LogLevel)))
	if err != nil {
		panic(err)
	}
	log = l
}

func main() {
	defer log.Sync()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	matcher := engine.NewMatchingEngine(log)
	orderRPC := rpc.NewOrderRPC(matcher, log)
	router := rpc.NewRouter(orderRPC, log)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, logger.Field{
				Key:   "action",
				Value: "listen_and_serve",
			})
			sigChan <- syscall.SIGTERM
		}
	}()

	log.Info("matching engine started", logger.Field{
		Key:   "addr",
		Value: cfg.HTTP.Addr,
	})

	sig := <-sigChan
	log.Info("received shutdown signal", logger.Field{
		Key:   "signal",
		Value: sig.String(),
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "shutdown_server",
		})
	}

	log.Info("matching engine shutdown complete")
}
