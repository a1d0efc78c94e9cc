package scheduler

import (
	"context"
	"fmt"

	emailsservice "outreach_backend/internal/emails/service"
	scrapejobsservice "outreach_backend/internal/scrapejobs/service"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Worker consumes background tasks: scrape runs and scheduled email sends.
type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	scrapeJobs *scrapejobsservice.Service
	emails     *emailsservice.Service
	log        *logger.Logger
}

// NewWorker creates the task consumer from the scheduler configuration.
func NewWorker(
	cfg config.SchedulerConfig,
	scrapeJobs *scrapejobsservice.Service,
	emails *emailsservice.Service,
	log *logger.Logger,
) (*Worker, error) {
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
		server:     server,
		mux:        mux,
		scrapeJobs: scrapeJobs,
		emails:     emails,
		log:        log,
	}

	mux.HandleFunc(TaskScrapeJobRun, w.handleScrapeJobRun)
	mux.HandleFunc(TaskEmailSend, w.handleEmailSend)

	return w, nil
}

func (w *Worker) handleScrapeJobRun(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseScrapeJobRunPayload(task)
	if err != nil {
		return err
	}

	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		return err
	}

	return w.scrapeJobs.Run(ctx, jobID)
}

func (w *Worker) handleEmailSend(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseEmailSendPayload(task)
	if err != nil {
		return err
	}

	emailID, err := uuid.Parse(payload.EmailID)
	if err != nil {
		return err
	}

	_, err = w.emails.Send(ctx, emailID)
	return err
}

// Run serves tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
