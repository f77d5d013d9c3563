package audit

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"serviceflow_gateway/internal/upstream"
	"serviceflow_gateway/platform/config"
	"serviceflow_gateway/platform/logger"
)

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	upstream *upstream.Client
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, up *upstream.Client, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		upstream: up,
		log:      log,
	}

	mux.HandleFunc(TaskServiceTime, w.handleServiceTime)

	return w, nil
}

func (w *Worker) handleServiceTime(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseServiceTimePayload(task)
	if err != nil {
		return err
	}

	if payload.Track != upstream.TrackHP {
		payload.Track = upstream.TrackRDF
	}

	if err := w.upstream.RecordServiceTime(ctx, payload.Entry, payload.Track); err != nil {
		w.log.Error("service time delivery failed",
			"processId", payload.Entry.ProcessID,
			"serviceUnit", payload.Entry.ServiceUnit,
			"error", err)
		return err
	}
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("audit worker stopped", "error", err)
	}
}
