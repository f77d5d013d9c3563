// The auditworker binary drains the service-time audit queue, delivering
// entries to the upstream backend with retry. Run it only when REDIS_URL is
// configured; without Redis the gateway posts entries synchronously itself.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"serviceflow_gateway/internal/audit"
	"serviceflow_gateway/internal/upstream"
	"serviceflow_gateway/platform/config"
	"serviceflow_gateway/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting audit worker", "env", cfg.Env, "queue", cfg.AsynqQueueName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	up := upstream.New(cfg, log)

	worker, err := audit.NewWorker(cfg, up, log)
	if err != nil {
		log.Error("failed to initialize audit worker", "error", err)
		panic("failed to initialize audit worker: " + err.Error())
	}

	worker.Run(ctx)
	log.Info("audit worker stopped")
}
